package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// ContextProvider returns attributes evaluated at log time, such as the
// recording session and simulated time.
type ContextProvider func() []slog.Attr

// Fanout returns a handler that passes every record to each non-nil handler
// accepting its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	var f fanout
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

// Handle keeps going when a handler fails and reports all failures.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// WithDynamicAttrs wraps h so that every record carries the attributes
// returned by p at the moment it is logged.
func WithDynamicAttrs(h slog.Handler, p ContextProvider) slog.Handler {
	if p == nil {
		return h
	}
	return &dynamicHandler{Handler: h, provider: p}
}

type dynamicHandler struct {
	slog.Handler
	provider ContextProvider
}

func (d *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(d.provider()...)
	return d.Handler.Handle(ctx, r)
}

func (d *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dynamicHandler{Handler: d.Handler.WithAttrs(attrs), provider: d.provider}
}

func (d *dynamicHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	return &dynamicHandler{Handler: d.Handler.WithGroup(name), provider: d.provider}
}
