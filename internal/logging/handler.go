package logging

import (
	"context"
	"log/slog"
)

// SanitizingHandler wraps another handler and redacts secrets from the
// message and every string attribute, including grouped attrs.
type SanitizingHandler struct {
	inner     slog.Handler
	sanitizer *Sanitizer
}

// NewSanitizingHandler wraps inner with san.
func NewSanitizingHandler(inner slog.Handler, san *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{inner: inner, sanitizer: san}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, h.sanitizer.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, h.sanitizeAttr(a))
	}
	return &SanitizingHandler{inner: h.inner.WithAttrs(clean), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{inner: h.inner.WithGroup(name), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizer.Sanitize(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]any, 0, len(group))
		for _, g := range group {
			clean = append(clean, h.sanitizeAttr(g))
		}
		return slog.Group(a.Key, clean...)
	default:
		return a
	}
}
