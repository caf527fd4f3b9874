// Package client implements the RPC client described in spec §4.5:
// registry resolution → selection → pooled connection → transport send
// → timeout-bounded receive → TransportResponse, wrapped in a per-address
// circuit breaker and a bounded retry policy confined to transport
// errors and 5xx responses.
//
// Call flow:
//
//	Call(ctx, service, endpoint, body)
//	  → Registry.GetService(service)        → candidate nodes
//	  → Balancer.Pick(nodes)                → select one address
//	  → breaker-for-address.Execute(...)     → short-circuits while Open
//	    → pool-for-address.Acquire(ctx)      → pooled Socket
//	    → socket.Send(msg)                   → send request
//	    → socket.Receive(timeout)            → receive with caller's timeout
//	    → pool.Release(conn)                 → return the connection
//	  → retry (backoff) on transport error/5xx, never on 4xx
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/pool"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/selector"
	"github.com/bx-d/corerpc/transport"
)

// TransportRequest is the caller-facing request shape: a service name, an
// endpoint within it, a body, and headers — the same fields the gateway's
// ServiceProxy builds before handing off to the client (spec §4.6).
type TransportRequest struct {
	Service  string
	Endpoint string
	Body     []byte
	Headers  message.Headers
	Timeout  time.Duration
}

// TransportResponse is the translated result of one RPC call (spec §4.5
// step 6).
type TransportResponse struct {
	Status  int
	Body    []byte
	Headers message.Headers
}

// RetryPolicy bounds the client's retry behavior.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy allows up to 3 attempts total (1 initial + 2 retries)
// with exponential backoff starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// BreakerConfig configures the per-address circuit breaker (spec §4.5).
type BreakerConfig struct {
	FailureRatio float64       // Closed → Open once failures/requests exceeds this, given MinRequests
	MinRequests  uint32        // minimum requests in the window before ReadyToTrip is evaluated
	OpenTimeout  time.Duration // Open → HalfOpen cooldown
}

// DefaultBreakerConfig trips once more than 50% of a window of at least 20
// requests have failed and cools down for 30 seconds before probing again.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureRatio: 0.5, MinRequests: 20, OpenTimeout: 30 * time.Second}
}

// Client manages the full RPC call lifecycle: discovery → selection →
// pooled transport → circuit breaker → retry.
type Client struct {
	registry  registry.Registry
	balancer  selector.Balancer
	transport transport.Transport
	retry     RetryPolicy
	breakerCf BreakerConfig
	poolCf    pool.Config

	mu       sync.Mutex
	pools    map[string]*pool.Pool
	breakers map[string]*gobreaker.CircuitBreaker[*TransportResponse]
}

// New creates a client that dials addresses via tr, discovers candidate
// nodes via reg, and picks among them via bal.
func New(reg registry.Registry, bal selector.Balancer, tr transport.Transport) *Client {
	return &Client{
		registry:  reg,
		balancer:  bal,
		transport: tr,
		retry:     DefaultRetryPolicy(),
		breakerCf: DefaultBreakerConfig(),
		poolCf:    pool.DefaultConfig(),
		pools:     make(map[string]*pool.Pool),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*TransportResponse]),
	}
}

// WithRetryPolicy overrides the default retry policy.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// WithBreakerConfig overrides the default circuit breaker configuration.
func (c *Client) WithBreakerConfig(cfg BreakerConfig) *Client {
	c.breakerCf = cfg
	return c
}

// WithPoolConfig overrides the default connection pool configuration used
// for every per-address pool the client creates.
func (c *Client) WithPoolConfig(cfg pool.Config) *Client {
	c.poolCf = cfg
	return c
}

func (c *Client) poolFor(addr string) *pool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[addr]; ok {
		return p
	}
	dial := func() (transport.Socket, error) {
		return c.transport.Dial(addr)
	}
	p := pool.New(addr, c.poolCf, dial, nil)
	c.pools[addr] = p
	return p
}

func (c *Client) breakerFor(addr string) *gobreaker.CircuitBreaker[*TransportResponse] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[addr]; ok {
		return b
	}
	cfg := c.breakerCf
	settings := gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1, // a single successful probe closes the breaker again (HalfOpen → Closed)
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > cfg.FailureRatio
		},
	}
	b := gobreaker.NewCircuitBreaker[*TransportResponse](settings)
	c.breakers[addr] = b
	return b
}

// Call performs one RPC call, following the full §4.5 lifecycle including
// retries and per-address circuit breaking.
func (c *Client) Call(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	if req.Timeout <= 0 {
		req.Timeout = 10 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.InitialDelay
	bo.MaxInterval = c.retry.MaxDelay
	bo.MaxElapsedTime = 0

	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	var lastResp *TransportResponse
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(bo.NextBackOff())
		}

		node, err := c.resolveAndSelect(req.Service)
		if err != nil {
			return nil, err
		}

		resp, err := c.callOnce(ctx, node.DialAddr(), req)
		if err == nil && resp.Status < 500 {
			return resp, nil
		}
		lastErr = err
		lastResp = resp

		if !c.retryable(err, resp) {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func (c *Client) resolveAndSelect(service string) (*registry.Node, error) {
	services, err := c.registry.GetService(service, "*")
	if err != nil {
		return nil, err
	}
	var nodes []registry.Node
	for _, svc := range services {
		nodes = append(nodes, svc.Nodes...)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("client: no nodes for service %q", service)
	}
	return c.balancer.Pick(nodes)
}

func (c *Client) callOnce(ctx context.Context, addr string, req *TransportRequest) (*TransportResponse, error) {
	breaker := c.breakerFor(addr)
	return breaker.Execute(func() (*TransportResponse, error) {
		return c.send(ctx, addr, req)
	})
}

func (c *Client) send(ctx context.Context, addr string, req *TransportRequest) (*TransportResponse, error) {
	p := c.poolFor(addr)
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	headers := req.Headers
	if headers == nil {
		headers = message.NewHeaders()
	}
	headers.Set("X-Timeout", req.Timeout.String())

	msg := &message.Message{
		ID:        message.NewID(),
		Type:      message.Request,
		Target:    req.Service,
		Endpoint:  req.Endpoint,
		Body:      req.Body,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := conn.Socket.Send(msg); err != nil {
		p.Release(conn) // connection is stale; Release's eligibility check will discard it
		return nil, err
	}

	resp, err := conn.Socket.Receive(req.Timeout)
	p.Release(conn)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &transport.Error{Kind: transport.Timeout, Cause: fmt.Errorf("no response within %s", req.Timeout)}
	}

	return &TransportResponse{
		Status:  statusFromHeaders(resp.Headers),
		Body:    resp.Body,
		Headers: resp.Headers,
	}, nil
}

func statusFromHeaders(h message.Headers) int {
	v := h.Get("X-Status-Code")
	status := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return 200
		}
		status = status*10 + int(ch-'0')
	}
	if status == 0 {
		return 200
	}
	return status
}

// retryable reports whether a failed attempt should be retried: transport
// errors and 5xx responses qualify, 4xx never does (spec §4.5).
func (c *Client) retryable(err error, resp *TransportResponse) bool {
	if err != nil {
		var terr *transport.Error
		return transport.As(err, &terr)
	}
	return resp != nil && resp.Status >= 500
}

// Close releases every per-address pool the client has opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, p := range c.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
