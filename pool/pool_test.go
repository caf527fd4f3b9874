package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/transport"
)

// fakeSocket is a no-op transport.Socket for exercising the pool without
// a real transport dial.
type fakeSocket struct {
	closed bool
}

func (f *fakeSocket) Send(msg *message.Message) error { return nil }
func (f *fakeSocket) Receive(timeout ...time.Duration) (*message.Message, error) {
	return nil, nil
}
func (f *fakeSocket) LocalAddr() string               { return "local" }
func (f *fakeSocket) RemoteAddr() string              { return "remote" }
func (f *fakeSocket) SetReadTimeout(d time.Duration)  {}
func (f *fakeSocket) SetWriteTimeout(d time.Duration) {}
func (f *fakeSocket) Close() error                    { f.closed = true; return nil }
func (f *fakeSocket) Closed() bool                    { return f.closed }

func fakeDialer() Dialer {
	return func() (transport.Socket, error) { return &fakeSocket{}, nil }
}

func TestPoolAcquireRelease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.MaxIdle = 1
	cfg.AcquireTimeout = 100 * time.Millisecond
	cfg.HealthCheckEnabled = false

	p := New("127.0.0.1:0", cfg, fakeDialer(), nil)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if conn == nil {
		t.Fatal("expect a connection")
	}

	p.Release(conn)

	stats := p.Stats()
	if stats.Idle != 1 {
		t.Fatalf("expect 1 idle connection after release, got %d", stats.Idle)
	}
}

func TestPoolAcquireTimeoutWhenExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.AcquireTimeout = 50 * time.Millisecond
	cfg.HealthCheckEnabled = false

	p := New("127.0.0.1:0", cfg, fakeDialer(), nil)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	_ = conn // kept in-use, never released

	_, err = p.Acquire(context.Background())
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expect ErrAcquireTimeout, got %v", err)
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := New("127.0.0.1:0", DefaultConfig(), fakeDialer(), nil)

	if err := p.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
}

func TestPoolDialRateLimitThrottlesCreation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 5
	cfg.HealthCheckEnabled = false
	cfg.DialRateLimit = 20 // dials/sec
	cfg.DialBurst = 1

	p := New("127.0.0.1:0", cfg, fakeDialer(), nil)
	defer p.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		// Acquired connections are kept open (not released) so each
		// Acquire must dial a fresh socket instead of reusing an idle one.
		if _, err := p.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expect dial rate limit to space out connection creation, took only %v", elapsed)
	}
}

func TestPoolPruneEvictsIneligible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.MaxIdle = 1
	cfg.IdleTimeout = 10 * time.Millisecond
	cfg.HealthCheckEnabled = false

	p := New("127.0.0.1:0", cfg, fakeDialer(), nil)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(conn)

	time.Sleep(20 * time.Millisecond)
	p.Prune(context.Background())

	if stats := p.Stats(); stats.Idle != 0 {
		t.Fatalf("expect idle connection pruned after idle_timeout, got %d idle", stats.Idle)
	}
}
