// Package observ provides structured logging for the coretable engine, CLI
// and RPC surface. It wraps log/slog so every component logs through the
// same handler and level configuration instead of reaching for log.Printf
// directly.
package observ

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects the default logger's level, format and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stderr, stdout, or a file path
}

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Init installs the global logger. Call once at startup, before any
// Component loggers are handed out.
func Init(cfg Config) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output = os.Stderr
		} else {
			output = f
		}
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	defaultLogger = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger, tagging every record with its component name.
type Logger struct {
	slog *slog.Logger
}

// Component returns a logger that tags every record with "component": name.
func Component(name string) *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return &Logger{slog: defaultLogger.With("component", name)}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

