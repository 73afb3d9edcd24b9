package transport

import (
	"context"

	"github.com/rhuss/dojo/pkg/api"
)

// RequestID assigns a request ID unless the transport already set one
// (the HTTP adapter copies X-Request-ID).
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.Handle(ctx, req)
		})
	}
}
