package redact

import (
	"context"
	"log/slog"
)

// Handler wraps a slog.Handler and redacts secrets from the message and
// every string-valued attribute before passing the record on.
type Handler struct {
	inner    slog.Handler
	redactor *Redactor
}

// Compile-time check.
var _ slog.Handler = (*Handler)(nil)

// NewHandler wraps inner with r.
func NewHandler(inner slog.Handler, r *Redactor) *Handler {
	return &Handler{inner: inner, redactor: r}
}

// Enabled delegates to the inner handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.attr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs implements slog.Handler. The attributes are redacted once here.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.attr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *Handler) attr(a slog.Attr) slog.Attr {
	// Resolve so LogValuer, error and fmt.Stringer values are final.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, ga := range group {
			redacted[i] = h.attr(ga)
		}
		a.Value = slog.GroupValue(redacted...)
	case slog.KindAny:
		s := a.Value.String()
		if r := h.redactor.Redact(s); r != s {
			a.Value = slog.StringValue(r)
		}
	}
	return a
}
