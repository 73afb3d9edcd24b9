package transport

import (
	"context"
	"log/slog"
)

// Middleware wraps a Handler. Chain(a, b)(h) runs a first.
type Middleware func(Handler) Handler

// Chain composes middleware into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Defaults returns the standard chain: Recovery, RequestID, Logging.
func Defaults(logger *slog.Logger) Middleware {
	return Chain(Recovery(), RequestID(), Logging(logger))
}

type requestIDKey struct{}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID stores id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
