// HTTP/2 variant (spec §4.1, §6 "Wire: HTTP/2"): sockets multiplex many
// streams; each inbound stream becomes its own Socket carrying one
// Message, and the response is written back on that same stream, so no
// correlation header is added (the message id travels in x-message-id).
// Built on golang.org/x/net/http2, consistent with the HTTP/1 framing's
// use of the standard net/http server. There is no TLS and so no ALPN:
// both sides speak h2 cleartext (h2c) with prior knowledge.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bx-d/corerpc/message"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type HTTP2Transport struct{}

func NewHTTP2Transport() *HTTP2Transport { return &HTTP2Transport{} }

func (t *HTTP2Transport) Name() string { return "http2" }

// Listen serves h2c over a standard net/http server whose handler is
// wrapped by h2c.NewHandler; every inbound request becomes a Message handed
// to the shared inbound channel, and the handler blocks (holding the
// stream open) until Socket.Send writes the matching response.
func (t *HTTP2Transport) Listen(address string) (Listener, error) {
	l := &http2Listener{
		inbound: make(chan *http2Socket, 16),
		stopCh:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleStream)
	srv := &http.Server{Addr: address, Handler: h2c.NewHandler(mux, &http2.Server{})}

	ln, err := netListen(address)
	if err != nil {
		return nil, newError(classifyDialErr(err), err)
	}
	l.addr = ln.Addr().String()
	l.httpServer = srv

	go srv.Serve(ln)
	return l, nil
}

func (t *HTTP2Transport) Dial(address string, opts ...DialOptions) (Socket, error) {
	client := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			// AllowHTTP routes "http://" URLs through DialTLSContext; dial
			// plain TCP so h2 is spoken in cleartext.
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
	return &http2ClientSocket{client: client, addr: address}, nil
}

// http2Listener hands each accepted stream to Accept as its own Socket;
// the Socket's single Receive/Send pair corresponds to exactly one
// request/response, mirroring HTTP/2's per-stream framing.
type http2Listener struct {
	inbound    chan *http2Socket
	stopCh     chan struct{}
	once       sync.Once
	addr       string
	httpServer *http.Server
}

func (l *http2Listener) handleStream(w http.ResponseWriter, r *http.Request) {
	done := make(chan struct{})
	sock := &http2Socket{
		req:      r,
		w:        w,
		done:     done,
		streamID: r.Header.Get("x-message-id"),
	}
	select {
	case l.inbound <- sock:
	case <-l.stopCh:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	<-done // hold the stream open until the handler's Send completes it
}

func (l *http2Listener) Addr() string { return l.addr }

func (l *http2Listener) Accept(timeout ...time.Duration) (Socket, error) {
	var after <-chan time.Time
	if len(timeout) > 0 {
		timer := time.NewTimer(timeout[0])
		defer timer.Stop()
		after = timer.C
	}
	select {
	case s, ok := <-l.inbound:
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

func (l *http2Listener) Close() error {
	l.once.Do(func() {
		close(l.stopCh)
		if l.httpServer != nil {
			l.httpServer.Close()
		}
	})
	return nil
}

// http2Socket wraps exactly one (request, ResponseWriter) pair: Receive
// yields the request once, Send writes the response once, Close signals
// the stream handler to return and so end the stream (END_STREAM).
type http2Socket struct {
	req      *http.Request
	w        http.ResponseWriter
	done     chan struct{}
	streamID string
	received int32
	sent     int32
	closed   int32
}

func (s *http2Socket) Send(msg *message.Message) error {
	if !atomic.CompareAndSwapInt32(&s.sent, 0, 1) {
		return newError(Internal, fmt.Errorf("http2: response already sent for stream %s", s.streamID))
	}
	status := statusFromHeaders(msg.Headers)
	if status == 0 {
		status = 200
	}
	for k, vs := range msg.Headers {
		if k == "x-status-code" {
			continue
		}
		for _, v := range vs {
			s.w.Header().Add(k, v)
		}
	}
	s.w.Header().Set("x-message-id", msg.ID)
	s.w.Header().Set("x-message-type", msg.Type.String())
	s.w.WriteHeader(int(status))
	s.w.Write(msg.Body)
	s.Close()
	return nil
}

func (s *http2Socket) Receive(timeout ...time.Duration) (*message.Message, error) {
	if !atomic.CompareAndSwapInt32(&s.received, 0, 1) {
		return nil, nil // one Message per stream; second Receive sees absence
	}
	body, err := io.ReadAll(s.req.Body)
	if err != nil {
		return nil, newError(classifyIOErr(err), err)
	}
	h := message.NewHeaders()
	for k, vs := range s.req.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return &message.Message{
		ID:        s.req.Header.Get("x-message-id"),
		Type:      message.Request,
		Target:    s.req.URL.Path,
		Endpoint:  s.req.URL.Path,
		Body:      body,
		Headers:   h,
		Timestamp: time.Now(),
	}, nil
}

func (s *http2Socket) LocalAddr() string  { return s.req.Host }
func (s *http2Socket) RemoteAddr() string { return s.req.RemoteAddr }

func (s *http2Socket) SetReadTimeout(d time.Duration)  {}
func (s *http2Socket) SetWriteTimeout(d time.Duration) {}

func (s *http2Socket) Close() error {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		close(s.done)
	}
	return nil
}

func (s *http2Socket) Closed() bool { return atomic.LoadInt32(&s.closed) == 1 }

// http2ClientSocket is the Dial-side counterpart: Send issues one HTTP/2
// request, Receive returns its response. Multiple in-flight Sends on one
// http2ClientSocket map to independent h2 streams under the hood, which
// is exactly the multiplexing spec §4.1 asks HTTP/2 to provide.
type http2ClientSocket struct {
	client *http.Client
	addr   string
	respCh chan *message.Message
}

// Send performs the HTTP/2 round trip synchronously (net/http's Do
// blocks until headers arrive) and stashes the response for the
// following Receive call — one request/response pair per Send/Receive
// cycle, matching every other variant's Socket contract even though the
// underlying h2 connection multiplexes many such cycles concurrently.
func (s *http2ClientSocket) Send(msg *message.Message) error {
	req, err := http.NewRequest(http.MethodPost, "http://"+s.addr+msg.Endpoint, bodyReader(msg.Body))
	if err != nil {
		return newError(InvalidMessage, err)
	}
	for k, vs := range msg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("x-message-id", msg.ID)
	req.Header.Set("x-message-type", msg.Type.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return newError(classifyIOErr(err), err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	h := message.NewHeaders()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("X-Status-Code", strconv.Itoa(resp.StatusCode))

	if s.respCh == nil {
		s.respCh = make(chan *message.Message, 1)
	}
	s.respCh <- &message.Message{
		ID:        msg.ID,
		Type:      message.Response,
		Body:      body,
		Headers:   h,
		Timestamp: time.Now(),
	}
	return nil
}

func (s *http2ClientSocket) Receive(timeout ...time.Duration) (*message.Message, error) {
	if s.respCh == nil {
		return nil, nil
	}
	var after <-chan time.Time
	if len(timeout) > 0 {
		timer := time.NewTimer(timeout[0])
		defer timer.Stop()
		after = timer.C
	}
	select {
	case msg := <-s.respCh:
		return msg, nil
	case <-after:
		return nil, nil
	}
}

func (s *http2ClientSocket) LocalAddr() string  { return "" }
func (s *http2ClientSocket) RemoteAddr() string { return s.addr }

func (s *http2ClientSocket) SetReadTimeout(d time.Duration)  {}
func (s *http2ClientSocket) SetWriteTimeout(d time.Duration) {}

func (s *http2ClientSocket) Close() error { return nil }
func (s *http2ClientSocket) Closed() bool { return false }

func bodyReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return &byteReader{b: b}
}

type byteReader struct {
	b []byte
	i int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
