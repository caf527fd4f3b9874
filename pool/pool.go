// Package pool implements the bounded, health-checked connection pool
// (spec §4.3). Grounded on the teacher's transport.ConnPool, with its
// channel queue replaced by a mutex-guarded idle slice (the most recently
// released connection is reused first) and socket creation moved outside
// the mutex; generalized from net.Conn to transport.Socket and extended
// with max_lifetime/idle_timeout eligibility, pluggable health-check
// strategies, rolling-average metrics, background pruning supervised by
// a suture.Supervisor so a panicking prune tick restarts instead of
// silently killing the pool's background work, and an optional
// golang.org/x/time/rate token bucket throttling new-socket creation.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bx-d/corerpc/transport"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"
)

// Config mirrors spec §4.3's configuration knobs.
type Config struct {
	MaxSize             int
	MaxIdle             int
	AcquireTimeout      time.Duration
	MaxLifetime         time.Duration
	IdleTimeout         time.Duration
	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration

	// DialRateLimit bounds new-socket creation to this many dials per
	// second (token-bucket, burst DialBurst); zero/negative means
	// unlimited. Protects a remote that just recovered from being
	// stampeded by every blocked Acquire creating a connection at once.
	DialRateLimit float64
	DialBurst     int
}

func DefaultConfig() Config {
	return Config{
		MaxSize:             50,
		MaxIdle:             10,
		AcquireTimeout:      2 * time.Second,
		MaxLifetime:         30 * time.Minute,
		IdleTimeout:         5 * time.Minute,
		HealthCheckEnabled:  true,
		HealthCheckInterval: 30 * time.Second,
	}
}

// HealthChecker probes a Socket and reports whether it is still usable.
// Composite strategies (AND/OR of sub-strategies) satisfy this same
// interface, per spec §4.3.
type HealthChecker interface {
	Check(ctx context.Context, sock transport.Socket) bool
}

// PooledConnection is the unit the pool hands to callers (spec §3
// "Pooled connection").
type PooledConnection struct {
	ID        string
	Socket    transport.Socket
	CreatedAt time.Time
	LastUsed  time.Time
	UseCount  int64

	mu     sync.Mutex
	inUse  bool
	closed bool
}

// Eligible reports whether conn may remain in the idle set, per spec §3:
// ¬closed ∧ age < max_lifetime ∧ idle_age < idle_timeout.
func (c *PooledConnection) Eligible(cfg Config) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.Socket.Closed() {
		return false
	}
	if cfg.MaxLifetime > 0 && time.Since(c.CreatedAt) >= cfg.MaxLifetime {
		return false
	}
	if cfg.IdleTimeout > 0 && time.Since(c.LastUsed) >= cfg.IdleTimeout {
		return false
	}
	return true
}

func (c *PooledConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.Socket.Close()
}

var ErrPoolClosed = errors.New("pool: closed")
var ErrAcquireTimeout = errors.New("pool: acquire timed out")

// Dialer opens a new Socket to the pool's remote address; it is supplied
// by the client package, which knows which transport.Transport variant a
// given address dials through.
type Dialer func() (transport.Socket, error)

// Pool is a bounded set of reusable Sockets for one remote address.
// Invariant (spec §8): total + inflight ≤ max_size, where total counts
// idle + in_use connections and inflight counts dials in progress;
// idle ≤ max_idle. All mutations to total/idle/inflight bookkeeping
// happen under mu; the Dialer call itself (socket creation I/O) runs
// outside the lock with the inflight counter adjusted before/after.
type Pool struct {
	addr   string
	cfg    Config
	dial   Dialer
	health HealthChecker

	mu       sync.Mutex
	idle     []*PooledConnection
	total    int
	inflight int
	waiters  chan struct{}

	metrics *Metrics

	closed    bool
	closeOnce sync.Once
	supervisor *suture.Supervisor
	stopCtx    context.Context
	stopCancel context.CancelFunc

	dialLimiter *rate.Limiter
}

func New(addr string, cfg Config, dial Dialer, health HealthChecker) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		addr:       addr,
		cfg:        cfg,
		dial:       dial,
		health:     health,
		waiters:    make(chan struct{}, 1),
		metrics:    NewMetrics(addr),
		stopCtx:    ctx,
		stopCancel: cancel,
	}

	if cfg.DialRateLimit > 0 {
		burst := cfg.DialBurst
		if burst <= 0 {
			burst = 1
		}
		p.dialLimiter = rate.NewLimiter(rate.Limit(cfg.DialRateLimit), burst)
	}

	p.supervisor = suture.New("pool-"+addr, suture.Spec{})
	if cfg.HealthCheckEnabled {
		p.supervisor.Add(&pruneService{pool: p, interval: cfg.HealthCheckInterval})
	}
	go p.supervisor.Serve(ctx)
	return p
}

// Acquire returns an eligible idle connection if one exists; else creates
// a new one if under max_size; else waits for a release signal until
// acquire_timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	for {
		conn, shouldCreate, err := p.tryAcquireLocked()
		if err != nil {
			return nil, err
		}
		if conn != nil {
			p.metrics.RecordAcquire()
			return conn, nil
		}
		if shouldCreate {
			conn, err := p.createLocked(ctx)
			if err != nil {
				p.metrics.RecordAcquireError()
				return nil, err
			}
			p.metrics.RecordAcquire()
			return conn, nil
		}

		remaining := time.Until(deadline)
		if p.cfg.AcquireTimeout > 0 && remaining <= 0 {
			p.metrics.RecordAcquireTimeout()
			return nil, ErrAcquireTimeout
		}
		if err := p.waitForRelease(ctx, remaining); err != nil {
			if errors.Is(err, ErrAcquireTimeout) {
				p.metrics.RecordAcquireTimeout()
			}
			return nil, err
		}
	}
}

func (p *Pool) tryAcquireLocked() (conn *PooledConnection, shouldCreate bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false, ErrPoolClosed
	}

	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !c.Eligible(p.cfg) {
			c.close()
			p.total--
			continue
		}
		c.mu.Lock()
		c.inUse = true
		c.LastUsed = time.Now()
		c.UseCount++
		c.mu.Unlock()
		return c, false, nil
	}

	if p.total+p.inflight < p.cfg.MaxSize {
		p.inflight++
		return nil, true, nil
	}
	return nil, false, nil
}

func (p *Pool) createLocked(ctx context.Context) (*PooledConnection, error) {
	if p.dialLimiter != nil {
		if err := p.dialLimiter.Wait(ctx); err != nil {
			p.mu.Lock()
			p.inflight--
			p.mu.Unlock()
			return nil, err
		}
	}

	started := time.Now()
	sock, err := p.dial()

	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()

	if err != nil {
		p.metrics.RecordCreationFailure()
		return nil, err
	}
	p.metrics.RecordCreation(time.Since(started))

	now := time.Now()
	conn := &PooledConnection{
		ID:        p.addr + "-" + now.Format("150405.000000000"),
		Socket:    sock,
		CreatedAt: now,
		LastUsed:  now,
		UseCount:  1,
		inUse:     true,
	}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()
	return conn, nil
}

func (p *Pool) waitForRelease(ctx context.Context, timeout time.Duration) error {
	var after <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		after = timer.C
	}
	select {
	case <-p.waiters:
		return nil
	case <-after:
		return ErrAcquireTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCtx.Done():
		return ErrPoolClosed
	}
}

func (p *Pool) signalWaiter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return // Close has closed (or is about to close) the waiters channel
	}
	select {
	case p.waiters <- struct{}{}:
	default:
	}
}

// Release places conn back into the idle set iff it validates and
// idle_count < max_idle; otherwise closes it.
func (p *Pool) Release(conn *PooledConnection) {
	conn.mu.Lock()
	conn.inUse = false
	conn.mu.Unlock()

	p.mu.Lock()
	if p.closed || !conn.Eligible(p.cfg) || len(p.idle) >= p.cfg.MaxIdle {
		p.mu.Unlock()
		conn.close()
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.signalWaiter()
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.signalWaiter()
}

// Prune runs the configured health-check strategy on every idle
// connection and removes the unhealthy ones.
func (p *Pool) Prune(ctx context.Context) {
	p.mu.Lock()
	candidates := make([]*PooledConnection, len(p.idle))
	copy(candidates, p.idle)
	p.mu.Unlock()

	unhealthy := make(map[*PooledConnection]bool)
	for _, c := range candidates {
		started := time.Now()
		ok := c.Eligible(p.cfg)
		if ok && p.health != nil {
			ok = p.health.Check(ctx, c.Socket)
		}
		p.metrics.RecordHealthCheck(time.Since(started), !ok)
		if !ok {
			unhealthy[c] = true
		}
	}
	if len(unhealthy) == 0 {
		return
	}

	p.mu.Lock()
	kept := p.idle[:0:0]
	for _, c := range p.idle {
		if unhealthy[c] {
			continue
		}
		kept = append(kept, c)
	}
	removed := len(p.idle) - len(kept)
	p.idle = kept
	p.total -= removed
	p.mu.Unlock()

	for c := range unhealthy {
		c.close()
	}
}

// Close shuts down background work, closes every idle connection, and
// closes the waiter channel. A connection still in use is closed when it
// is later passed to Release. Idempotent.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		idle := p.idle
		p.idle = nil
		p.mu.Unlock()

		p.stopCancel()
		for _, c := range idle {
			c.close()
		}
		close(p.waiters)
	})
	return nil
}

// Stats is a point-in-time gauge snapshot: total tracked connections,
// idle ones, and dials in flight (in-use connections are Total - Idle).
type Stats struct {
	Total    int
	Idle     int
	InFlight int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Total:    p.total,
		Idle:     len(p.idle),
		InFlight: p.inflight,
	}
}

// pruneService is the suture.Service driving periodic Prune calls; a
// panic inside Prune restarts this service rather than taking down the
// whole supervisor tree.
type pruneService struct {
	pool     *Pool
	interval time.Duration
}

func (s *pruneService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pool.Prune(ctx)
		}
	}
}
