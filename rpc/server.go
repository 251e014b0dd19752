// Package rpc is the HTTP transport for coretable: POST / carries a
// length-prefixed query envelope, POST /stats returns the engine's counters
// as JSON, and every other method or route is "method not allowed". It
// never interprets query semantics itself — it
// decodes a query.Envelope, calls the lock-wrapped engine, and re-encodes
// the result.
package rpc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/colin353/largetable"
	"github.com/colin353/largetable/internal/observ"
	"github.com/colin353/largetable/lock"
	"github.com/colin353/largetable/query"
)

// Server is the fiber-backed RPC front end. It has no auth, rate-limiting
// or static-file serving: coretable has no counterpart for any of those.
type Server struct {
	app    *fiber.App
	engine *lock.Engine
	log    *observ.Logger
}

// New builds a Server over engine. Port formatting and Listen are left to
// the caller (cmd/coretabled) so tests can exercise routing without binding
// a socket.
func New(engine *lock.Engine) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(query.Response{Status: query.StatusInternalError, Message: err.Error()})
		},
	})

	s := &Server{app: app, engine: engine, log: observ.Component("rpc")}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Post("/", s.handleQuery)
	s.app.Post("/stats", s.handleStats)
	s.app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusMethodNotAllowed, "method not allowed")
	})
}

// Listen starts serving on addr (e.g. ":7070").
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// App exposes the underlying fiber.App for tests that want to drive
// requests in-process via app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	env, err := query.ReadFrame(bytes.NewReader(c.Body()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("malformed request frame: %v", err))
	}
	req, err := env.DecodeRequest()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("malformed request payload: %v", err))
	}

	resp := s.dispatch(req)

	respEnv, err := query.NewResponseEnvelope(env.ID, resp)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	var buf bytes.Buffer
	if err := query.WriteFrame(&buf, respEnv); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(buf.Bytes())
}

func (s *Server) dispatch(req query.Request) query.Response {
	switch req.Kind {
	case query.KindSelect:
		return s.doSelect(req)
	case query.KindInsert:
		return s.doInsert(req)
	case query.KindUpdate:
		return s.doUpdate(req)
	default:
		return query.Response{Status: query.StatusInternalError, Message: fmt.Sprintf("unrecognized query kind %q", req.Kind)}
	}
}

func (s *Server) doSelect(req query.Request) query.Response {
	results, err := s.engine.Select(req.Row, req.Columns, req.Timestamp)
	if err != nil {
		return errorResponse(err)
	}
	values := make([]query.Value, len(results))
	for i, r := range results {
		values[i] = query.Value{Found: r.Found, Bytes: r.Value}
	}
	return query.Response{Status: query.StatusData, Values: values}
}

func (s *Server) doInsert(req query.Request) query.Response {
	updates := toUpdates(req.Updates)
	if err := s.engine.Insert(req.Row, updates, req.Timestamp); err != nil {
		return errorResponse(err)
	}
	return query.Response{Status: query.StatusDone}
}

func (s *Server) doUpdate(req query.Request) query.Response {
	updates := toUpdates(req.Updates)
	if err := s.engine.Update(req.Row, updates, req.Timestamp); err != nil {
		return errorResponse(err)
	}
	return query.Response{Status: query.StatusDone}
}

func toUpdates(cvs []query.ColumnValue) []largetable.Update {
	updates := make([]largetable.Update, len(cvs))
	for i, cv := range cvs {
		updates[i] = largetable.Update{Column: cv.Column, Value: cv.Value}
	}
	return updates
}

func errorResponse(err error) query.Response {
	switch {
	case errors.Is(err, largetable.ErrAlreadyExists):
		return query.Response{Status: query.StatusRowAlreadyExists, Message: err.Error()}
	case errors.Is(err, largetable.ErrRowNotFound):
		return query.Response{Status: query.StatusRowNotFound, Message: err.Error()}
	case errors.Is(err, largetable.ErrPartialCommit):
		return query.Response{Status: query.StatusPartialCommit, Message: err.Error()}
	default:
		return query.Response{Status: query.StatusInternalError, Message: err.Error()}
	}
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.engine.Stats()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(stats)
}
