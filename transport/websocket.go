// WebSocket variant (spec §4.1, §6 "Wire: WebSocket"): upgrade on a
// regular HTTP socket, each subsequent frame carries one Message. Built
// on gorilla/websocket, the library the rest of the example pack reaches
// for whenever a teacher repo needs a persistent bidirectional browser
// connection.
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/bx-d/corerpc/message"
	"github.com/gorilla/websocket"
)

type WSTransport struct {
	upgrader websocket.Upgrader
}

func NewWSTransport() *WSTransport {
	return &WSTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (t *WSTransport) Name() string { return "websocket" }

// Listen starts a plain HTTP server whose single handler upgrades every
// inbound request to a WebSocket and hands the resulting Socket to
// Accept's caller.
func (t *WSTransport) Listen(address string) (Listener, error) {
	l := &wsListener{
		upgrader: t.upgrader,
		conns:    make(chan *wsSocket, 16),
		stopCh:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	srv := &http.Server{Addr: address, Handler: mux}

	ln, err := netListen(address)
	if err != nil {
		return nil, newError(classifyDialErr(err), err)
	}
	l.addr = ln.Addr().String()
	l.httpServer = srv

	go srv.Serve(ln)
	return l, nil
}

func (t *WSTransport) Dial(address string, opts ...DialOptions) (Socket, error) {
	url := "ws://" + address + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, newError(classifyDialErr(err), err)
	}
	return newWSSocket(conn), nil
}

type wsListener struct {
	upgrader   websocket.Upgrader
	conns      chan *wsSocket
	stopCh     chan struct{}
	once       sync.Once
	addr       string
	httpServer *http.Server
}

func (l *wsListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sock := newWSSocket(conn)
	select {
	case l.conns <- sock:
	case <-l.stopCh:
		conn.Close()
	}
}

func (l *wsListener) Addr() string { return l.addr }

func (l *wsListener) Accept(timeout ...time.Duration) (Socket, error) {
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

func (l *wsListener) Close() error {
	l.once.Do(func() {
		close(l.stopCh)
		if l.httpServer != nil {
			l.httpServer.Close()
		}
	})
	return nil
}

// wsSocket sends every Message, Event-typed fire-and-forget ones
// included, as one binary frame holding the msgpack envelope;
// request/response pairs correlate through Message.ID the way every
// other variant does.
type wsSocket struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	closed       bool
	closedMu     sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newWSSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) Send(msg *message.Message) error {
	body, err := encodeMessage(msg)
	if err != nil {
		return newError(InvalidMessage, err)
	}

	frameType := websocket.BinaryMessage // the envelope is msgpack, never text

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(frameType, body); err != nil {
		return newError(classifyIOErr(err), err)
	}
	return nil
}

func (s *wsSocket) Receive(timeout ...time.Duration) (*message.Message, error) {
	d := s.readTimeout
	if len(timeout) > 0 {
		d = timeout[0]
	}
	if d > 0 {
		s.conn.SetReadDeadline(time.Now().Add(d))
	} else {
		s.conn.SetReadDeadline(time.Time{})
	}

	_, body, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, newError(ConnectionReset, err)
		}
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, newError(classifyIOErr(err), err)
	}

	msg, err := decodeMessage(body)
	if err != nil {
		return nil, newError(InvalidMessage, err)
	}
	return msg, nil
}

func (s *wsSocket) LocalAddr() string  { return s.conn.LocalAddr().String() }
func (s *wsSocket) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *wsSocket) SetReadTimeout(d time.Duration)  { s.readTimeout = d }
func (s *wsSocket) SetWriteTimeout(d time.Duration) { s.writeTimeout = d }

func (s *wsSocket) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *wsSocket) Closed() bool {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	return s.closed
}
