package pool

import (
	"context"
	"time"

	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/transport"
)

// pingHealthChecker sends a lightweight request/response pair over the
// pooled Socket and considers the connection healthy iff a reply arrives
// before the strategy's own timeout — independent of the caller's
// timeout, per spec §4.3 ("its own small timeout and retry budget").
type pingHealthChecker struct {
	endpoint string
	timeout  time.Duration
	retries  int
	interval time.Duration
}

// NewPingHealthChecker builds the "RPC ping" strategy named in spec
// §4.3, with the 3-attempt/200ms/2s defaults the spec gives as an
// example budget.
func NewPingHealthChecker(endpoint string) HealthChecker {
	return &pingHealthChecker{endpoint: endpoint, timeout: 2 * time.Second, retries: 3, interval: 200 * time.Millisecond}
}

func (h *pingHealthChecker) Check(ctx context.Context, sock transport.Socket) bool {
	for attempt := 0; attempt < h.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(h.interval)
		}
		req := &message.Message{
			ID:        message.NewID(),
			Type:      message.Request,
			Endpoint:  h.endpoint,
			Headers:   message.NewHeaders(),
			Timestamp: time.Now(),
		}
		if err := sock.Send(req); err != nil {
			continue
		}
		resp, err := sock.Receive(h.timeout)
		if err != nil || resp == nil {
			continue
		}
		return true
	}
	return false
}

// httpHeadHealthChecker issues a HEAD-shaped request (modeled as a
// Request message targeting "/health") and treats any response with a
// 2xx X-Status-Code as healthy.
type httpHeadHealthChecker struct {
	path    string
	timeout time.Duration
}

func NewHTTPHeadHealthChecker(path string) HealthChecker {
	if path == "" {
		path = "/health"
	}
	return &httpHeadHealthChecker{path: path, timeout: 2 * time.Second}
}

func (h *httpHeadHealthChecker) Check(ctx context.Context, sock transport.Socket) bool {
	req := &message.Message{
		ID:        message.NewID(),
		Type:      message.Request,
		Endpoint:  h.path,
		Headers:   message.NewHeaders(),
		Timestamp: time.Now(),
	}
	if err := sock.Send(req); err != nil {
		return false
	}
	resp, err := sock.Receive(h.timeout)
	if err != nil || resp == nil {
		return false
	}
	status := resp.Headers.Get("X-Status-Code")
	return len(status) > 0 && status[0] == '2'
}

// CompositeMode selects AND or OR combination of sub-strategies.
type CompositeMode int

const (
	CompositeAND CompositeMode = iota
	CompositeOR
)

type compositeHealthChecker struct {
	mode     CompositeMode
	children []HealthChecker
}

// NewCompositeHealthChecker combines several strategies per spec §4.3
// ("a composite that is the AND or OR of sub-strategies").
func NewCompositeHealthChecker(mode CompositeMode, children ...HealthChecker) HealthChecker {
	return &compositeHealthChecker{mode: mode, children: children}
}

func (h *compositeHealthChecker) Check(ctx context.Context, sock transport.Socket) bool {
	if len(h.children) == 0 {
		return true
	}
	for _, c := range h.children {
		ok := c.Check(ctx, sock)
		if h.mode == CompositeAND && !ok {
			return false
		}
		if h.mode == CompositeOR && ok {
			return true
		}
	}
	return h.mode == CompositeAND
}
