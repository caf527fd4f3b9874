// Package server implements the RPC server side of spec §4.4: an
// explicit endpoint → dispatch.HandlerFunc table (Design Notes §9's
// "replace compile-time introspection with an explicit registration
// table"), served over any transport.Transport implementation, with
// every request wrapped in the configured dispatch.Middleware chain.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/transport"
)

// Server routes inbound Messages to the handler registered for their
// Endpoint, wrapping every call in the configured middleware chain.
type Server struct {
	handlers  map[string]dispatch.HandlerFunc
	dispMw    []dispatch.Middleware
	dispChain dispatch.HandlerFunc
	tableMu   sync.RWMutex

	listener transport.Listener
	shutdown atomic.Bool
}

// NewServer creates a Server with an empty handler table.
func NewServer() *Server {
	return &Server{handlers: make(map[string]dispatch.HandlerFunc)}
}

// RegisterHandler adds endpoint to the handler table — the explicit
// registration table Design Notes §9 calls for in place of reflection.
func (svr *Server) RegisterHandler(endpoint string, h dispatch.HandlerFunc) {
	svr.tableMu.Lock()
	defer svr.tableMu.Unlock()
	svr.handlers[endpoint] = h
}

// UseMiddleware appends a canonical dispatch.Middleware to the chain
// every request runs through, ahead of the handler lookup.
func (svr *Server) UseMiddleware(mw dispatch.Middleware) {
	svr.dispMw = append(svr.dispMw, mw)
}

// ListenAndServeTransport runs the handler table over any
// transport.Transport implementation (tcp/http2/websocket/loop), routing
// each inbound message to the handler registered for its Endpoint.
func (svr *Server) ListenAndServeTransport(tr transport.Transport, address string) error {
	ln, err := tr.Listen(address)
	if err != nil {
		return err
	}
	svr.listener = ln
	svr.dispChain = dispatch.Chain(svr.dispMw...)(svr.tableHandler)

	for {
		sock, err := ln.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.serveSocket(sock)
	}
}

func (svr *Server) serveSocket(sock transport.Socket) {
	defer sock.Close()
	for {
		msg, err := sock.Receive()
		if err != nil {
			return
		}
		if msg == nil {
			continue
		}
		go svr.serveMessage(sock, msg)
	}
}

func (svr *Server) serveMessage(sock transport.Socket, msg *message.Message) {
	req := &dispatch.Request{
		Service:     msg.Target,
		Endpoint:    msg.Endpoint,
		Body:        msg.Body,
		Headers:     msg.Headers,
		ContentType: msg.Headers.Get("Content-Type"),
	}
	ctx := dispatch.New(context.Background(), req)
	svr.dispChain(ctx)

	resp := &message.Message{
		ID:        msg.ID,
		Type:      message.Response,
		Target:    msg.Target,
		Endpoint:  msg.Endpoint,
		Body:      ctx.Response.Body,
		Headers:   ctx.Response.Headers,
		Timestamp: time.Now(),
	}
	if resp.Headers == nil {
		resp.Headers = message.NewHeaders()
	}
	resp.Headers.Set("X-Status-Code", fmt.Sprintf("%d", statusOrDefault(ctx.Response.Status)))
	sock.Send(resp)
}

func statusOrDefault(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

func (svr *Server) tableHandler(ctx *dispatch.Context) {
	svr.tableMu.RLock()
	h, ok := svr.handlers[ctx.Request.Endpoint]
	svr.tableMu.RUnlock()
	if !ok {
		ctx.Response.Status = 404
		ctx.Response.Err = fmt.Errorf("no handler registered for endpoint %q", ctx.Request.Endpoint)
		return
	}
	h(ctx)
}

// ShutdownTransport stops the listener; in-flight connections are
// abandoned rather than drained, matching the handler-table track's
// original shutdown contract.
func (svr *Server) ShutdownTransport() error {
	svr.shutdown.Store(true)
	if svr.listener != nil {
		return svr.listener.Close()
	}
	return nil
}
