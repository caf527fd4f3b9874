package middleware

import (
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rpcerr"
)

// RequestSize rejects any request whose body exceeds maxBytes with a
// BadRequestError before the handler ever sees it.
func RequestSize(maxBytes int) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			if len(ctx.Request.Body) > maxBytes {
				ctx.Response.Err = rpcerr.BadRequest("request body exceeds maximum size")
				return
			}
			next(ctx)
		}
	}
}
