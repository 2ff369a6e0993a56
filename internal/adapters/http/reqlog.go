package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

type loggerCtxKey struct{}

// RequestIDLogMiddleware stores a request-scoped logger carrying the Fiber
// request ID, and the trace ID when a span is active, in the user context.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		logger := slog.Default().With("request_id", rid)
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			logger = logger.With("trace_id", sc.TraceID().String())
		}
		c.SetUserContext(context.WithValue(ctx, loggerCtxKey{}, logger))
		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
