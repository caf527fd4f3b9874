package middleware

import (
	"fmt"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rpcerr"
)

// Recovery is the last-resort stage: it catches a handler panic that
// error_handler never saw coming and turns it into a 500, the same
// outcome an unclassified exception gets. It must sit inside
// error_handler in the chain so the synthesized *rpcerr.Error it
// attaches still gets encoded by that stage rather than escaping raw.
func Recovery() dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			defer func() {
				if r := recover(); r != nil {
					ctx.Response.Err = rpcerr.Wrap(rpcerr.KindInternal, "internal error", fmt.Errorf("panic: %v", r))
				}
			}()
			next(ctx)
		}
	}
}
