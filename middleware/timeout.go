package middleware

import (
	"time"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rpcerr"
)

// Timeout enforces a maximum duration for the remainder of the chain,
// built on dispatch.Context.WithTimeout instead of a raw
// context.WithTimeout, since the attribute bag has to survive into the
// child Context. The
// handler goroutine is not cancelled on timeout, only abandoned — it
// may still write to ctx.Response after this middleware has already
// returned a TimeoutError, which is why downstream middleware never
// reads Response after a timeout without checking Encoded first.
func Timeout(d time.Duration) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			child, cancel := ctx.WithTimeout(d)
			defer cancel()

			done := make(chan struct{})
			go func() {
				next(child)
				close(done)
			}()

			select {
			case <-done:
			case <-child.Done():
				if !ctx.Encoded() {
					ctx.Response.Err = rpcerr.Timeout("request timed out")
				}
			}
		}
	}
}
