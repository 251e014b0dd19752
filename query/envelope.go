package query

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Envelope wraps a Request or Response with a request ID, so a response can
// be matched back to the request that produced it even if a transport
// pipelines several in flight.
type Envelope struct {
	ID      uuid.UUID       `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// NewRequestEnvelope assigns a fresh request ID and marshals req as the
// payload.
func NewRequestEnvelope(req Request) (Envelope, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling request: %w", err)
	}
	return Envelope{ID: uuid.New(), Payload: payload}, nil
}

// NewResponseEnvelope stamps resp with the ID of the request it answers.
func NewResponseEnvelope(id uuid.UUID, resp Response) (Envelope, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling response: %w", err)
	}
	return Envelope{ID: id, Payload: payload}, nil
}

func (e Envelope) DecodeRequest() (Request, error) {
	var req Request
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return Request{}, fmt.Errorf("decoding request payload: %w", err)
	}
	return req, nil
}

func (e Envelope) DecodeResponse() (Response, error) {
	var resp Response
	if err := json.Unmarshal(e.Payload, &resp); err != nil {
		return Response{}, fmt.Errorf("decoding response payload: %w", err)
	}
	return resp, nil
}

// WriteFrame writes e as a length-prefixed JSON frame: a u32-le byte count
// followed by the JSON encoding of e, the same length-prefixed-record shape
// the commit log uses for its records.
func WriteFrame(w io.Writer, e Envelope) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame written by WriteFrame.
func ReadFrame(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, fmt.Errorf("reading frame body: %w", err)
	}
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	return e, nil
}
