package middleware

import (
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/message"
)

// requestIDKey is the attribute key request_id stores on the Context and
// every later middleware (logging, error_handler) reads back.
const requestIDKey = "request_id"

// RequestID assigns a stable identifier to every Context, reusing an
// inbound X-Request-Id header when the caller already supplied one so a
// request can be traced across a gateway hop.
func RequestID() dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			id := ctx.Request.Headers.Get("X-Request-Id")
			if id == "" {
				id = message.NewID()
			}
			ctx.Set(requestIDKey, id)
			ctx.Response.Headers.Set("X-Request-Id", id)
			next(ctx)
		}
	}
}

// RequestIDFrom returns the request_id assigned by RequestID, or "" if the
// middleware never ran.
func RequestIDFrom(ctx *dispatch.Context) string {
	id, _ := dispatch.Get[string](ctx, requestIDKey)
	return id
}
