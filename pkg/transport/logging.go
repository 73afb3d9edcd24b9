package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Logging logs one entry per operation. Cancelled calls log at Info,
// other failures at Error.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (any, error) {
			start := time.Now()
			out, err := next.Handle(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("op", string(req.Op)),
				slog.Duration("duration", time.Since(start)),
			}
			switch {
			case err == nil:
				logger.LogAttrs(ctx, slog.LevelInfo, "operation completed", attrs...)
			case errors.Is(err, context.Canceled):
				logger.LogAttrs(ctx, slog.LevelInfo, "operation cancelled", attrs...)
			default:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "operation failed", attrs...)
			}
			return out, err
		})
	}
}
