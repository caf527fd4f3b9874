package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/rpcerr"
)

// fixedWindowCounter is a per-key fixed-window request counter. The
// pool's dial-rate limiter uses golang.org/x/time/rate's token bucket for
// smoothing dial storms; this gateway-facing limiter instead needs a
// window that resets on a wall-clock boundary, so a caller hitting the
// limit sees a stable Retry-After tied to the window's own remaining
// lifetime rather than a token-bucket's smoothed estimate.
type fixedWindowCounter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]*windowState
}

type windowState struct {
	count      int
	windowEnds time.Time
}

func newFixedWindowCounter(limit int, window time.Duration) *fixedWindowCounter {
	return &fixedWindowCounter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowState),
	}
}

// allow reports whether key may proceed, the seconds until its window
// resets (0 when allowed), and the requests remaining in the current
// window after this call (spec §4.4 #10's X-RateLimit-Remaining).
func (f *fixedWindowCounter) allow(key string, now time.Time) (ok bool, retryAfterSecs, remaining int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, exists := f.counts[key]
	if !exists || !now.Before(st.windowEnds) {
		st = &windowState{count: 0, windowEnds: now.Add(f.window)}
		f.counts[key] = st
	}

	if st.count >= f.limit {
		return false, int(st.windowEnds.Sub(now).Seconds()) + 1, 0
	}
	st.count++
	return true, 0, f.limit - st.count
}

// RateLimitKeyFunc derives the bucket key for a request — by caller
// identity, IP, service, or whatever the deployment wants to partition
// on.
type RateLimitKeyFunc func(ctx *dispatch.Context) string

// ByService partitions the limiter by the requested service name.
func ByService(ctx *dispatch.Context) string { return ctx.Request.Service }

// RateLimit rejects requests past limit per window, keyed by keyFn, and
// always reports X-RateLimit-Limit/X-RateLimit-Remaining (0 on rejection)
// per spec §4.4 #10, regardless of the accept/reject outcome.
func RateLimit(limit int, window time.Duration, keyFn RateLimitKeyFunc) dispatch.Middleware {
	counter := newFixedWindowCounter(limit, window)
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(ctx *dispatch.Context) {
			key := keyFn(ctx)
			ok, retryAfter, remaining := counter.allow(key, time.Now())

			ctx.Response.Headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			ctx.Response.Headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				ctx.Response.Err = rpcerr.RateLimit("rate limit exceeded", retryAfter)
				return
			}
			next(ctx)
		}
	}
}
