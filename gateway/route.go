// Package gateway implements the API gateway of spec §4.6: a radix-tree
// router that resolves an inbound HTTP request to a configured Route,
// a ServiceProxy per backend service applying retry/circuit-breaking/
// transformations, aggregation fan-out, and the always-present
// /health, /metrics, /api/docs endpoints.
package gateway

import (
	"time"

	"github.com/bx-d/corerpc/dispatch"
)

// Route describes one gateway-exposed endpoint (spec §3 Route,
// §4.6 Router). Exactly one of Service/Endpoint (single backend) or
// Aggregate (fan-out) is set.
type Route struct {
	Method   string
	Path     string // path template, ":name" denotes a parameter
	Service  string
	Endpoint string

	Aggregate []AggregateLeg

	ExposedMethods []string
	BlockedMethods []string
	RequiredRoles  []string
	Middleware     []dispatch.Middleware
	Transforms     []Transform
	Timeout        time.Duration
	Retries        int

	// PartialFailure controls how a failing aggregation leg is reported:
	// true embeds an {"error": ...} object under the leg's key, false
	// fails the whole response: the gateway answers 503 "one or more
	// aggregation legs failed", without the failing leg's own error.
	PartialFailure bool
}

// AggregateLeg names one backend called by an aggregation route, merged
// into the response object under Key.
type AggregateLeg struct {
	Key      string
	Service  string
	Endpoint string
}

// exposureAllowed reports whether method passes this route's exposure
// allow/deny lists (spec §4.6 "Method exposure").
func (r *Route) exposureAllowed(method string) bool {
	allowed := len(r.ExposedMethods) == 0
	for _, m := range r.ExposedMethods {
		if m == method {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	for _, m := range r.BlockedMethods {
		if m == method {
			return false
		}
	}
	return true
}
