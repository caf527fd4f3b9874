// Loopback variant (spec §4.1 "Loopback (test-only)"): dial(loopback://name)
// resolves to an in-process listener registered under name, with no
// kernel sockets. The shorter loop://name form is accepted too, and is
// the form Addr reports. Grounded on the teacher's in-memory pending-channel
// pattern from ClientTransport, simplified to two directly wired
// channels instead of a sequence-keyed map, since a loopback pair is
// always point-to-point.
package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/bx-d/corerpc/message"
)

var loopRegistry = struct {
	mu        sync.Mutex
	listeners map[string]*loopListener
}{listeners: make(map[string]*loopListener)}

type LoopTransport struct{}

func NewLoopTransport() *LoopTransport { return &LoopTransport{} }

func (t *LoopTransport) Name() string { return "loop" }

func (t *LoopTransport) Listen(address string) (Listener, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(address, "loopback://"), "loop://")
	l := &loopListener{name: name, conns: make(chan *loopSocket, 16), stopCh: make(chan struct{})}

	loopRegistry.mu.Lock()
	loopRegistry.listeners[name] = l
	loopRegistry.mu.Unlock()
	return l, nil
}

func (t *LoopTransport) Dial(address string, opts ...DialOptions) (Socket, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(address, "loopback://"), "loop://")

	loopRegistry.mu.Lock()
	l, ok := loopRegistry.listeners[name]
	loopRegistry.mu.Unlock()
	if !ok {
		return nil, newError(ConnectionRefused, ErrNoSuchLoopback(name))
	}

	client, server := newLoopPair(name)
	select {
	case l.conns <- server:
	case <-l.stopCh:
		return nil, newError(ConnectionRefused, ErrClosed)
	}
	return client, nil
}

type loopListener struct {
	name   string
	conns  chan *loopSocket
	stopCh chan struct{}
	once   sync.Once
}

func (l *loopListener) Addr() string { return "loop://" + l.name }

func (l *loopListener) Accept(timeout ...time.Duration) (Socket, error) {
	var after <-chan time.Time
	if len(timeout) > 0 {
		timer := time.NewTimer(timeout[0])
		defer timer.Stop()
		after = timer.C
	}
	select {
	case s, ok := <-l.conns:
		if !ok {
			return nil, newError(NotConnected, ErrClosed)
		}
		return s, nil
	case <-after:
		return nil, newError(Timeout, nil)
	case <-l.stopCh:
		return nil, newError(NotConnected, ErrClosed)
	}
}

func (l *loopListener) Close() error {
	l.once.Do(func() {
		close(l.stopCh)
		loopRegistry.mu.Lock()
		delete(loopRegistry.listeners, l.name)
		loopRegistry.mu.Unlock()
	})
	return nil
}

// loopSocket pairs with its peer via two unidirectional channels; what
// one side sends, the other receives. Safe under two goroutines — one
// writer, one reader — on the same socket, per spec §5.
type loopSocket struct {
	name   string
	out    chan *message.Message
	in     chan *message.Message
	closed chan struct{}
	once   sync.Once

	readTimeout time.Duration
}

func newLoopPair(name string) (client *loopSocket, server *loopSocket) {
	ab := make(chan *message.Message, 8)
	ba := make(chan *message.Message, 8)
	closed := make(chan struct{})
	client = &loopSocket{name: name, out: ab, in: ba, closed: closed}
	server = &loopSocket{name: name, out: ba, in: ab, closed: closed}
	return client, server
}

func (s *loopSocket) Send(msg *message.Message) error {
	select {
	case s.out <- msg:
		return nil
	case <-s.closed:
		return newError(NotConnected, ErrClosed)
	}
}

func (s *loopSocket) Receive(timeout ...time.Duration) (*message.Message, error) {
	d := s.readTimeout
	if len(timeout) > 0 {
		d = timeout[0]
	}
	var after <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		after = timer.C
	}
	select {
	case msg := <-s.in:
		return msg, nil
	case <-after:
		return nil, nil
	case <-s.closed:
		return nil, newError(NotConnected, ErrClosed)
	}
}

func (s *loopSocket) LocalAddr() string  { return "loop://" + s.name }
func (s *loopSocket) RemoteAddr() string { return "loop://" + s.name }

func (s *loopSocket) SetReadTimeout(d time.Duration)  { s.readTimeout = d }
func (s *loopSocket) SetWriteTimeout(d time.Duration) {}

func (s *loopSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *loopSocket) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type loopbackNameError string

func (e loopbackNameError) Error() string { return "transport: no loopback listener named " + string(e) }

func ErrNoSuchLoopback(name string) error { return loopbackNameError(name) }
