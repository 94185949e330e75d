package trace

import (
	"context"
	"errors"
)

// multiHandler fans out trace events to multiple Handler implementations.
// Each handler receives its own isolated context so that handlers storing
// state under the same context key do not interfere.
type multiHandler struct {
	handlers []Handler
}

// Multi creates a Handler that forwards all events to the given handlers.
func Multi(handlers ...Handler) Handler {
	return &multiHandler{handlers: handlers}
}

type multiCtxKey struct{}

func (m *multiHandler) getContexts(ctx context.Context) []context.Context {
	if v, ok := ctx.Value(multiCtxKey{}).([]context.Context); ok {
		return v
	}
	ctxs := make([]context.Context, len(m.handlers))
	for i := range ctxs {
		ctxs[i] = ctx
	}
	return ctxs
}

func (m *multiHandler) wrapContexts(base context.Context, handlerCtxs []context.Context) context.Context {
	return context.WithValue(base, multiCtxKey{}, handlerCtxs)
}

func (m *multiHandler) start(ctx context.Context, fn func(h Handler, ctx context.Context) context.Context) context.Context {
	parentCtxs := m.getContexts(ctx)
	handlerCtxs := make([]context.Context, len(m.handlers))
	for i, h := range m.handlers {
		handlerCtxs[i] = fn(h, parentCtxs[i])
	}
	return m.wrapContexts(ctx, handlerCtxs)
}

func (m *multiHandler) end(ctx context.Context, fn func(h Handler, ctx context.Context)) {
	ctxs := m.getContexts(ctx)
	for i, h := range m.handlers {
		fn(h, ctxs[i])
	}
}

func (m *multiHandler) StartTurn(ctx context.Context, kind SpanKind) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartTurn(ctx, kind)
	})
}

func (m *multiHandler) EndTurn(ctx context.Context, err error) {
	m.end(ctx, func(h Handler, ctx context.Context) { h.EndTurn(ctx, err) })
}

func (m *multiHandler) StartLLMCall(ctx context.Context) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartLLMCall(ctx)
	})
}

func (m *multiHandler) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	m.end(ctx, func(h Handler, ctx context.Context) { h.EndLLMCall(ctx, data, err) })
}

func (m *multiHandler) StartAction(ctx context.Context, action Action) context.Context {
	return m.start(ctx, func(h Handler, ctx context.Context) context.Context {
		return h.StartAction(ctx, action)
	})
}

func (m *multiHandler) EndAction(ctx context.Context, applied bool, reason string, err error) {
	m.end(ctx, func(h Handler, ctx context.Context) { h.EndAction(ctx, applied, reason, err) })
}

func (m *multiHandler) AddEvent(ctx context.Context, kind string, data any) {
	m.end(ctx, func(h Handler, ctx context.Context) { h.AddEvent(ctx, kind, data) })
}

func (m *multiHandler) Finish(ctx context.Context) error {
	var errs []error
	for _, h := range m.handlers {
		if err := h.Finish(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
