package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/bx-d/corerpc/codec"
	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/value"
)

// aggregateResult is one leg's outcome, collected for the merge step.
type aggregateResult struct {
	key   string
	value value.Value
	err   error
}

// Aggregate fans out route.Aggregate in parallel, merges each leg's
// decoded body under its configured key, and bounds the whole call by
// timeout — the slowest backend governs latency (spec §4.6). With
// PartialFailure set, exactly one entry per configured key appears in the
// result, win or lose (spec §8 "at-most-one winner"); without it, any
// failing leg makes the result Null with status 502.
func Aggregate(ctx context.Context, route *Route, proxies map[string]*ServiceProxy, headers message.Headers, timeout time.Duration) (value.Value, int) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan aggregateResult, len(route.Aggregate))
	var wg sync.WaitGroup
	for _, leg := range route.Aggregate {
		wg.Add(1)
		go func(leg AggregateLeg) {
			defer wg.Done()
			proxy, ok := proxies[leg.Service]
			if !ok {
				results <- aggregateResult{key: leg.Key, err: errUnknownService(leg.Service)}
				return
			}
			resp, err := proxy.Invoke(ctx, leg.Endpoint, headers, nil, timeout, nil)
			if err != nil {
				results <- aggregateResult{key: leg.Key, err: err}
				return
			}
			c, ok := proxy.Codecs.Lookup(resp.Headers.Get("Content-Type"))
			if !ok {
				c = &codec.JSONCodec{}
			}
			var native any
			if decErr := c.Decode(resp.Body, &native); decErr != nil {
				results <- aggregateResult{key: leg.Key, err: decErr}
				return
			}
			results <- aggregateResult{key: leg.Key, value: value.FromNative(native)}
		}(leg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	merged := make(map[string]value.Value, len(route.Aggregate))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			if route.PartialFailure {
				merged[r.key] = value.NewObject(map[string]value.Value{
					"error": value.NewStr(r.err.Error()),
				})
			}
			continue
		}
		merged[r.key] = r.value
	}

	if firstErr != nil && !route.PartialFailure {
		return value.NewNull(), 502
	}
	return value.NewObject(merged), 200
}

type unknownServiceError struct{ service string }

func (e *unknownServiceError) Error() string {
	return "gateway: unknown aggregation service " + e.service
}

func errUnknownService(service string) error {
	return &unknownServiceError{service: service}
}
