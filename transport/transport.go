// Package transport implements the uniform socket/listener/message model
// (spec §4.1) with four concrete variants: tcptransport (HTTP/1 framed,
// built on the binary protocol package), http2transport (multiplexed
// streams over golang.org/x/net/http2), wstransport (gorilla/websocket),
// and looptransport (in-process, test-only).
//
// All four variants satisfy the same Listener/Socket contract so the
// dispatcher and client never know which wire they are talking over.
package transport

import (
	"errors"
	"time"

	"github.com/bx-d/corerpc/message"
)

// Kind names a transport error category (spec §4.1 "Failure semantics").
type Kind string

const (
	ConnectionRefused Kind = "ConnectionRefused"
	ConnectionReset    Kind = "ConnectionReset"
	Timeout            Kind = "Timeout"
	NotConnected       Kind = "NotConnected"
	InvalidMessage     Kind = "InvalidMessage"
	Internal           Kind = "Internal"
)

// Error is the tagged transport error every variant surfaces on I/O
// failure.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return "transport: " + string(e.Kind)
	}
	return "transport: " + string(e.Kind) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, cause error) *Error { return &Error{Kind: kind, Cause: cause} }

// As reports whether err is, or wraps, a transport *Error, storing it in
// target on success. Kept local so callers classifying transport failures
// don't need a second import for the common unwrap loop.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ErrClosed is returned by operations attempted on an already-closed
// Socket or Listener.
var ErrClosed = errors.New("transport: use of closed connection")

// Listener binds to a local address and yields accepted inbound Sockets.
type Listener interface {
	// Accept blocks until an inbound Socket is available, timeout
	// elapses (returning an *Error of Kind Timeout), or the listener is
	// closed (returning an *Error of Kind NotConnected wrapping ErrClosed).
	Accept(timeout ...time.Duration) (Socket, error)
	Addr() string
	Close() error
}

// Socket is one logical connection carrying Messages in both directions.
// Implementations must serialize concurrent Send calls on the same
// Socket internally, or document that callers must serialize them
// (spec §5 "Ordering").
type Socket interface {
	Send(msg *message.Message) error
	// Receive blocks until a Message arrives, the optional timeout
	// elapses (returns nil, nil on expiry — absence, not error), or the
	// socket closes (returns nil, error).
	Receive(timeout ...time.Duration) (*message.Message, error)
	LocalAddr() string
	RemoteAddr() string
	SetReadTimeout(d time.Duration)
	SetWriteTimeout(d time.Duration)
	Close() error
	Closed() bool
}

// Stream is an optional capability for stream-capable transports: a
// bidirectional raw byte channel with half-close, for a handler that
// bypasses Message framing entirely (e.g. to proxy an upload). None of
// the four variants in this package implements it.
type Stream interface {
	Send(b []byte) error
	Receive(timeout ...time.Duration) ([]byte, error)
	CloseSend() error
	Close() error
}

// DialOptions configures an outbound Socket.
type DialOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSConfig    any // *tls.Config; kept as any to avoid importing crypto/tls here
}

// Transport is implemented once per wire variant and is the factory both
// servers (Listen) and clients (Dial) use.
type Transport interface {
	Listen(address string) (Listener, error)
	Dial(address string, opts ...DialOptions) (Socket, error)
	Name() string
}
