package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rpcerr"
)

// ErrorHandler translates a handler's ctx.Response.Err into the response
// the caller actually receives: an *rpcerr.Error's Kind maps to its
// taxonomy status and body per §7; anything else — a handler that
// returned a bare error instead of throwing one of the typed kinds —
// maps to 500 with a generic "internal error" body (the original error is
// kept only as the cause), same as an unclassified exception in the
// original system. Recovery, the next stage in, guards against the
// handler panicking outright rather than returning an error.
func ErrorHandler() dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			next(ctx)

			if ctx.Response.Err == nil {
				return
			}
			if ctx.Encoded() {
				return
			}

			var rpcErr *rpcerr.Error
			if !rpcerr.As(ctx.Response.Err, &rpcErr) {
				rpcErr = rpcerr.Wrap(rpcerr.KindInternal, "internal error", ctx.Response.Err)
			}

			body, err := json.Marshal(rpcErr.Body())
			if err != nil {
				body = []byte(`{"error":"internal error","type":"InternalError"}`)
			}

			ctx.Response.Status = rpcErr.Status()
			ctx.Response.Body = body
			ctx.Response.ContentType = "application/json"
			if rpcErr.Kind == rpcerr.KindRateLimit {
				ctx.Response.Headers.Set("Retry-After", strconv.Itoa(rpcErr.RetryAfterSecs))
			}
			ctx.MarkEncoded()
		}
	}
}
