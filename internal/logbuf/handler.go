package logbuf

import (
	"context"
	"log/slog"
)

// ComponentKey is the attr key the handler lifts into Entry.Component.
const ComponentKey = "component"

// Handler is an slog.Handler that captures every record into a Buffer
// and delegates to an inner handler for regular output.
type Handler struct {
	inner  slog.Handler
	buf    *Buffer
	attrs  []slog.Attr
	groups []string
}

// NewHandler creates a handler that writes to both buf and inner.
func NewHandler(inner slog.Handler, buf *Buffer) *Handler {
	return &Handler{inner: inner, buf: buf}
}

// Enabled reports true for every level so the buffer captures debug
// records even when the inner handler filters them out.
func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	e := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}

	attrs := make(map[string]any)
	collect := func(a slog.Attr) {
		key := a.Key
		for _, g := range h.groups {
			key = g + "." + key
		}
		val := resolveValue(a.Value)
		if key == ComponentKey {
			if s, ok := val.(string); ok {
				e.Component = s
				return
			}
		}
		attrs[key] = val
	}

	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	if len(attrs) > 0 {
		e.Attrs = attrs
	}
	h.buf.Write(e)

	// The inner handler keeps its own level filter for stdout.
	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

// resolveValue converts slog values to JSON-safe types. Errors become
// strings so they don't serialize to {}.
func resolveValue(v slog.Value) any {
	v = v.Resolve()
	raw := v.Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		inner:  h.inner.WithAttrs(attrs),
		buf:    h.buf,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:  h.inner.WithGroup(name),
		buf:    h.buf,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}
