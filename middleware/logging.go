package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/bx-d/corerpc/dispatch"
)

// Logging emits one structured log line per request, with fields
// request_id, service, endpoint, status, duration_ms — grounded on the
// teacher's LoggingMiddleware (ServiceMethod + duration + error), widened
// to zap's structured fields per SPEC_FULL.md's ambient logging section.
func Logging() dispatch.Middleware {
	return LoggingWith(zap.NewNop())
}

// LoggingWith is Logging with an explicit logger, for callers that built
// one via corelog.New instead of accepting the no-op default.
func LoggingWith(log *zap.Logger) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			start := time.Now()
			next(ctx)
			duration := time.Since(start)

			fields := []zap.Field{
				zap.String("request_id", RequestIDFrom(ctx)),
				zap.String("service", ctx.Request.Service),
				zap.String("endpoint", ctx.Request.Endpoint),
				zap.Int("status", ctx.Response.Status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			}
			if ctx.Response.Err != nil {
				fields = append(fields, zap.Error(ctx.Response.Err))
				log.Error("request failed", fields...)
				return
			}
			log.Info("request", fields...)
		}
	}
}
