// Package ctxlogger lets request-scoped slog attributes travel on the
// context, so every log line emitted below a handler carries them.
package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// AppendCtx returns a context carrying the parent's attributes plus attrs.
func AppendCtx(parent context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := parent.Value(ctxKey{}).([]slog.Attr)

	combined := make([]slog.Attr, 0, len(existing)+len(attrs))
	combined = append(combined, existing...)
	combined = append(combined, attrs...)

	return context.WithValue(parent, ctxKey{}, combined)
}

// ContextHandler adds the context's attributes to every record it handles.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}
