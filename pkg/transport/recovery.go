package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/dojo/pkg/api"
)

// Recovery turns a handler panic into a server error.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (out any, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = nil
					err = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Handle(ctx, req)
		})
	}
}
