// Package dispatch implements the request Context and the onion-model
// middleware chain that the gateway and the message-based server surface
// wrap around handlers (spec §4.4). It generalizes the teacher's
// middleware.HandlerFunc/Middleware/Chain trio from the narrow
// message.RPCMessage signature to the full Context carrying Request,
// Response, an attribute bag, and cancellation.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/bx-d/corerpc/message"
)

// Request is the inbound half of a Context (spec §3).
type Request struct {
	Service     string
	Endpoint    string
	Body        []byte
	Headers     message.Headers
	ContentType string
	Timeout     time.Duration
}

// Response is the outbound half of a Context (spec §3). Err, when set,
// is the semantic error a handler threw; error_handler/recovery
// middleware translate it into Status/Body.
type Response struct {
	Status      int
	Body        []byte
	Headers     message.Headers
	ContentType string
	Err         error
}

// Context is per-request scratch space created by the transport upon
// decoding an inbound request and destroyed after the response is
// written (spec §3). It is the only channel through which middleware
// communicates with handlers — e.g. jwt_auth sets "auth:principal";
// RBAC guards read it.
type Context struct {
	Request  *Request
	Response *Response

	stdCtx context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	attrs map[string]any

	encoded bool // true once a middleware has written ctx.Response — no further body mutation allowed
}

// New creates a Context bound to parent for cancellation.
func New(parent context.Context, req *Request) *Context {
	if parent == nil {
		parent = context.Background()
	}
	stdCtx, cancel := context.WithCancel(parent)
	return &Context{
		Request:  req,
		Response: &Response{Headers: message.NewHeaders()},
		stdCtx:   stdCtx,
		cancel:   cancel,
		attrs:    make(map[string]any),
	}
}

// WithTimeout returns a child Context whose cancellation fires either
// when the parent does or when d elapses, plus the cancel func the
// caller must invoke to release resources.
func (c *Context) WithTimeout(d time.Duration) (*Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(c.stdCtx, d)
	child := &Context{
		Request:  c.Request,
		Response: c.Response,
		stdCtx:   stdCtx,
		cancel:   cancel,
		attrs:    c.attrs, // shared: attribute writes from within the timeout race are still visible
	}
	return child, cancel
}

// StdContext returns the underlying context.Context, for handlers that
// call into code expecting the standard interface (e.g. client.Client.Call).
func (c *Context) StdContext() context.Context { return c.stdCtx }

// SetStdContext replaces the underlying context.Context. Used by tracing
// middleware to attach a span so downstream handlers and outbound client
// calls carry it without threading a second context parameter.
func (c *Context) SetStdContext(std context.Context) { c.stdCtx = std }

// Done exposes the underlying cancellation signal.
func (c *Context) Done() <-chan struct{} { return c.stdCtx.Done() }

// Err reports the cancellation cause, if any.
func (c *Context) Err() error { return c.stdCtx.Err() }

// Deadline delegates to the standard context.
func (c *Context) Deadline() (time.Time, bool) { return c.stdCtx.Deadline() }

// Set stores an attribute under key, overwriting any previous value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs[key] = value
}

// Get retrieves the attribute stored under key, type-asserted to T. ok is
// false when the key is absent or holds a different type.
func Get[T any](c *Context, key string) (value T, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, present := c.attrs[key]
	if !present {
		return value, false
	}
	v, matched := raw.(T)
	return v, matched
}

// Encoded reports whether a middleware has already written a final
// response — after this point only headers may be mutated (spec §4.4
// state machine).
func (c *Context) Encoded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encoded
}

// MarkEncoded transitions the Context past the Encoded state.
func (c *Context) MarkEncoded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encoded = true
}

// HandlerFunc is the signature every handler and middleware-wrapped
// handler shares.
type HandlerFunc func(ctx *Context)

// Middleware wraps a HandlerFunc to add cross-cutting behavior around it.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, built right-to-left so the first
// entry in the list is the outermost layer — executed first on the way
// in, last on the way out. This is the one chain builder; package
// middleware's CanonicalChain composes its stages through it.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
