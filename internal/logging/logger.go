// Package logging provides structured logging for deckd built on slog.
// All log output passes through a sanitizer that redacts credentials
// before they reach any handler.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is one of json, text, auto. Auto picks text when the
	// output is a terminal and json otherwise.
	Format string
	// Output defaults to os.Stderr when nil.
	Output io.Writer
	// AddSource includes file:line in records.
	AddSource bool
}

// Logger wraps slog.Logger with domain context helpers and a sanitizer
// shared across derived loggers.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// New constructs a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		if isTerminal(out) {
			handler = slog.NewTextHandler(out, opts)
		} else {
			handler = slog.NewJSONHandler(out, opts)
		}
	}

	san := NewSanitizer()
	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(handler, san)),
		sanitizer: san,
	}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return New(Config{Level: "error", Format: "json", Output: io.Discard})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// With returns a derived logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), sanitizer: l.sanitizer}
}

// WithSession tags records with a session identifier.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With("session_id", sessionID)
}

// WithRequest tags records with a workflow request identifier.
func (l *Logger) WithRequest(requestID string) *Logger {
	return l.With("request_id", requestID)
}

// WithPhase tags records with the current workflow phase.
func (l *Logger) WithPhase(phase string) *Logger {
	return l.With("phase", phase)
}

// WithAgent tags records with a content agent name.
func (l *Logger) WithAgent(agent string) *Logger {
	return l.With("agent", agent)
}

// WithContext extracts correlation data from ctx when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l
	if v, ok := ctx.Value(correlationKey{}).(string); ok && v != "" {
		out = out.With("correlation_id", v)
	}
	return out
}

type correlationKey struct{}

// ContextWithCorrelation stores a correlation identifier for WithContext.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}
