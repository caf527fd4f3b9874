// TCP-framed HTTP/1 variant (spec §4.1, §6 "Wire: HTTP/1 framing"): one
// request, one response per socket cycle at the protocol level, built on
// the length-prefixed protocol package. Grounded on the teacher's
// ClientTransport/recvLoop design, generalized from a single
// multiplexed client connection into the symmetric Listener/Socket
// contract every variant shares.
package transport

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/protocol"
)

type TCPTransport struct{}

func NewTCPTransport() *TCPTransport { return &TCPTransport{} }

func (t *TCPTransport) Name() string { return "tcp" }

func (t *TCPTransport) Listen(address string) (Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, newError(classifyDialErr(err), err)
	}
	return &tcpListener{ln: ln}, nil
}

func (t *TCPTransport) Dial(address string, opts ...DialOptions) (Socket, error) {
	conn, err := net.DialTimeout("tcp", address, 10*time.Second)
	if err != nil {
		return nil, newError(classifyDialErr(err), err)
	}
	s := newTCPSocket(conn)
	if len(opts) > 0 {
		if opts[0].ReadTimeout > 0 {
			s.SetReadTimeout(opts[0].ReadTimeout)
		}
		if opts[0].WriteTimeout > 0 {
			s.SetWriteTimeout(opts[0].WriteTimeout)
		}
	}
	return s, nil
}

type tcpListener struct {
	ln net.Listener
}

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

func (l *tcpListener) Accept(timeout ...time.Duration) (Socket, error) {
	if tl, ok := l.ln.(*net.TCPListener); ok && len(timeout) > 0 {
		tl.SetDeadline(time.Now().Add(timeout[0]))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, newError(Timeout, err)
		}
		return nil, newError(classifyDialErr(err), err)
	}
	return newTCPSocket(conn), nil
}

func (l *tcpListener) Close() error { return l.ln.Close() }

// tcpSocket frames message.Message envelopes with the protocol package.
// Send/Receive are expected to be called from at most one goroutine each
// (spec §5 "Ordering"); writeMu serializes concurrent Send calls so two
// frames are never interleaved on the connection.
type tcpSocket struct {
	conn         net.Conn
	writeMu      sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
	seq          uint32
	closed       int32
}

func newTCPSocket(conn net.Conn) *tcpSocket {
	return &tcpSocket{conn: conn}
}

func (s *tcpSocket) Send(msg *message.Message) error {
	if s.Closed() {
		return newError(NotConnected, ErrClosed)
	}
	body, err := encodeMessage(msg)
	if err != nil {
		return newError(InvalidMessage, err)
	}

	header := &protocol.Header{
		CodecType: protocol.CodecTypeMsgpack, // envelope itself is always msgpack; body's own content_type lives in msg.Headers
		MsgType:   wireMsgType(msg.Type),
		Seq:       atomic.AddUint32(&s.seq, 1),
		Status:    statusFromHeaders(msg.Headers),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := protocol.Encode(s.conn, header, body); err != nil {
		return newError(classifyIOErr(err), err)
	}
	return nil
}

func (s *tcpSocket) Receive(timeout ...time.Duration) (*message.Message, error) {
	if s.Closed() {
		return nil, newError(NotConnected, ErrClosed)
	}
	d := s.readTimeout
	if len(timeout) > 0 {
		d = timeout[0]
	}
	if d > 0 {
		s.conn.SetReadDeadline(time.Now().Add(d))
	} else {
		s.conn.SetReadDeadline(time.Time{})
	}

	_, body, err := protocol.Decode(s.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil // absence, not error — spec §4.1
		}
		if err == io.EOF {
			return nil, newError(ConnectionReset, err)
		}
		return nil, newError(classifyIOErr(err), err)
	}

	msg, err := decodeMessage(body)
	if err != nil {
		return nil, newError(InvalidMessage, err)
	}
	return msg, nil
}

func (s *tcpSocket) LocalAddr() string  { return s.conn.LocalAddr().String() }
func (s *tcpSocket) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *tcpSocket) SetReadTimeout(d time.Duration)  { s.readTimeout = d }
func (s *tcpSocket) SetWriteTimeout(d time.Duration) { s.writeTimeout = d }

func (s *tcpSocket) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // idempotent, spec §8 "Idempotent close"
	}
	return s.conn.Close()
}

func (s *tcpSocket) Closed() bool { return atomic.LoadInt32(&s.closed) == 1 }

func wireMsgType(t message.Type) protocol.MsgType {
	switch t {
	case message.Request:
		return protocol.MsgTypeRequest
	case message.Response:
		return protocol.MsgTypeResponse
	case message.Event:
		return protocol.MsgTypeEvent
	default:
		return protocol.MsgTypeRequest
	}
}

func classifyDialErr(err error) Kind {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return Timeout
	}
	if opErr, ok := err.(*net.OpError); ok {
		if opErr.Op == "dial" {
			return ConnectionRefused
		}
	}
	return Internal
}

func classifyIOErr(err error) Kind {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return Timeout
	}
	return ConnectionReset
}
