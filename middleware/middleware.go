// Package middleware implements the canonical dispatch.Context-based
// middleware chain of spec §4.4:
//
//	request_id → logging → timing → error_handler → recovery → cors →
//	compression → request_size → timeout → rate_limit → jwt_auth →
//	RBAC guards
//
// It generalizes the teacher's middleware.Chain/Middleware/HandlerFunc
// onion model (originally built around a bare *message.RPCMessage) to
// dispatch.HandlerFunc, which carries a request/response pair, an
// attribute bag, and cancellation instead.
package middleware

import "github.com/bx-d/corerpc/dispatch"

// CanonicalChain builds the full middleware chain in the order spec §4.4
// names, wiring the handful of stages that need no per-call configuration
// and leaving the configurable ones (rate_limit, jwt_auth, RBAC guards,
// request_size, cors) to be supplied by the caller and appended in the
// same relative position. Most services won't call this directly — it's
// here so the order itself is pinned down in one place rather than
// re-derived at every call site.
func CanonicalChain(configured ...dispatch.Middleware) dispatch.Middleware {
	base := []dispatch.Middleware{
		RequestID(),
		Logging(),
		Timing(),
		ErrorHandler(),
		Recovery(),
	}
	base = append(base, configured...)
	return dispatch.Chain(base...)
}
