package middleware

import (
	"strconv"
	"time"

	"github.com/bx-d/corerpc/dispatch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const timingStartKey = "timing:start"

var tracer = otel.Tracer("github.com/bx-d/corerpc/middleware")

// Timing starts a per-request span (named after the target service/endpoint)
// and, on the way back out, sets the X-Response-Time-Ms header so a caller
// can observe server-side latency without a trace collector attached.
func Timing() dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			start := time.Now()
			ctx.Set(timingStartKey, start)

			spanCtx, span := tracer.Start(ctx.StdContext(), ctx.Request.Service+"."+ctx.Request.Endpoint,
				trace.WithAttributes(
					attribute.String("rpc.service", ctx.Request.Service),
					attribute.String("rpc.endpoint", ctx.Request.Endpoint),
				),
			)
			ctx.SetStdContext(spanCtx)

			next(ctx)

			span.SetAttributes(attribute.Int("rpc.status", ctx.Response.Status))
			span.End()

			elapsed := time.Since(start)
			ctx.Response.Headers.Set("X-Response-Time-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
		}
	}
}
