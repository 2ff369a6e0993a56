package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are probed constantly and only logged when they fail.
var quietPaths = map[string]bool{
	"/v1/health": true,
	"/v1/ready":  true,
	"/metrics":   true,
}

// AccessLogMiddleware logs HTTP requests with structured slog output: method,
// route pattern, status, latency, bytes sent, the signed-in user and any error.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method := c.Method()
		path := c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		if quietPaths[path] && status < 400 && err == nil {
			return err
		}

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if u := currentUser(c); u != nil {
			attrs = append(attrs, slog.String("uid", u.UID))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		// The request logger already carries request_id.
		LoggerFromCtx(c.UserContext()).LogAttrs(c.UserContext(), level, method+" "+path, attrs...)
		return err
	}
}
