package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bx-d/corerpc/client"
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/middleware"
	"github.com/bx-d/corerpc/rbac"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/rpcerr"
)

// Gateway is the API gateway of spec §4.6: a router over configured
// Routes, one ServiceProxy per backend service, and the always-present
// /health, /metrics, /api/docs endpoints. It implements http.Handler
// directly rather than depending on a third-party HTTP router — the
// routing decision itself is Router's radix tree, not net/http's mux.
type Gateway struct {
	router    *Router
	routes    []*Route
	proxies   map[string]*ServiceProxy
	registry  registry.Registry
	enforcer  *rbac.Enforcer
	startedAt time.Time

	// globalMiddleware wraps every proxied route (but not the built-in
	// endpoints), ahead of the route's own Middleware list — CORS, rate
	// limiting, JWT auth configured once for the whole gateway.
	globalMiddleware []dispatch.Middleware
}

// New builds a Gateway over reg (used by /health) and enforcer (stored
// on the Gateway; routes with RequiredRoles are checked against the
// principal's roles directly, see checkRoles).
func New(reg registry.Registry, enforcer *rbac.Enforcer) *Gateway {
	return &Gateway{
		router:    NewRouter(),
		proxies:   make(map[string]*ServiceProxy),
		registry:  reg,
		enforcer:  enforcer,
		startedAt: time.Now(),
	}
}

// Use appends mw to the middleware every proxied route runs through.
func (g *Gateway) Use(mw dispatch.Middleware) {
	g.globalMiddleware = append(g.globalMiddleware, mw)
}

// RegisterService wires a ServiceProxy for name, used by every route
// whose Service field names it.
func (g *Gateway) RegisterService(name string, cl *client.Client) {
	g.proxies[name] = NewServiceProxy(name, cl, nil)
}

// RegisterRoute adds route to the router.
func (g *Gateway) RegisterRoute(route *Route) {
	g.router.Register(route)
	g.routes = append(g.routes, route)
}

// ServeHTTP resolves the built-in endpoints first, then falls through
// to the configured route table.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		g.HealthHandler(w, r)
		return
	case r.URL.Path == "/metrics" && r.Method == http.MethodGet:
		g.MetricsHandler().ServeHTTP(w, r)
		return
	case r.URL.Path == "/api/docs" && r.Method == http.MethodGet:
		g.DocsHandler(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/docs/ui"):
		g.SwaggerUIHandler().ServeHTTP(w, r)
		return
	}

	route, params, ok := g.router.Match(r.Method, r.URL.Path)
	if !ok {
		http.Error(w, `{"error":"route not found","type":"NotFoundError"}`, http.StatusNotFound)
		return
	}

	g.serveRoute(w, r, route, params)
}

func (g *Gateway) serveRoute(w http.ResponseWriter, r *http.Request, route *Route, params map[string]string) {
	body, _ := io.ReadAll(r.Body)
	headers := headersFromHTTP(r.Header)
	for k, v := range params {
		headers.Set("X-Path-Param-"+k, v)
	}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			headers.Set("X-Query-Param-"+k, vs[0])
		}
	}

	ctx := dispatch.New(r.Context(), &dispatch.Request{
		Service:     route.Service,
		Endpoint:    route.Endpoint,
		Body:        body,
		Headers:     headers,
		ContentType: r.Header.Get("Content-Type"),
		Timeout:     route.Timeout,
	})

	handler := g.routeHandler(route)
	configured := append(append([]dispatch.Middleware{}, g.globalMiddleware...), route.Middleware...)
	chain := middleware.CanonicalChain(configured...)
	chain(handler)(ctx)

	writeHTTPResponse(w, ctx)
}

func (g *Gateway) routeHandler(route *Route) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) {
		if len(route.RequiredRoles) > 0 {
			if err := g.checkRoles(ctx, route); err != nil {
				ctx.Response.Err = err
				return
			}
		}

		if len(route.Aggregate) > 0 {
			merged, status := Aggregate(ctx.StdContext(), route, g.proxies, ctx.Request.Headers, route.Timeout)
			ctx.Response.Status = status
			if status >= 400 {
				ctx.Response.Err = rpcerr.ServiceUnavailable("one or more aggregation legs failed")
				return
			}
			body, _ := json.Marshal(merged.ToNative())
			ctx.Response.Body = body
			ctx.Response.ContentType = "application/json"
			return
		}

		proxy, ok := g.proxies[route.Service]
		if !ok {
			ctx.Response.Err = rpcerr.NotFound("no such service: " + route.Service)
			return
		}
		if !route.exposureAllowed(route.Endpoint) {
			ctx.Response.Err = rpcerr.Forbidden("method not exposed")
			return
		}

		resp, err := proxy.Invoke(ctx.StdContext(), route.Endpoint, ctx.Request.Headers, ctx.Request.Body, route.Timeout, route.Transforms)
		if err != nil {
			ctx.Response.Err = err
			return
		}
		ctx.Response.Status = resp.Status
		ctx.Response.Body = resp.Body
		ctx.Response.Headers = resp.Headers
	}
}

// checkRoles requires the authenticated principal to hold at least one
// of route.RequiredRoles directly — a coarser check than the Enforcer's
// (resource, action, scope) permission model the PermissionGuard
// middleware applies, matching the Route type's own
// required_roles field (spec §3 Route, §8 scenario 5).
func (g *Gateway) checkRoles(ctx *dispatch.Context, route *Route) error {
	principal, ok := dispatch.Get[rbac.Principal](ctx, "auth:principal")
	if !ok {
		return rpcerr.Unauthorized("no authenticated principal")
	}
	held := make(map[string]bool, len(principal.Roles))
	for _, r := range principal.Roles {
		held[r] = true
	}
	for _, required := range route.RequiredRoles {
		if held[required] {
			return nil
		}
	}
	return rpcerr.Forbidden("insufficient permissions")
}

func headersFromHTTP(h http.Header) message.Headers {
	out := message.NewHeaders()
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func writeHTTPResponse(w http.ResponseWriter, ctx *dispatch.Context) {
	for k, vs := range ctx.Response.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := ctx.Response.Status
	if status == 0 {
		status = 200
	}
	w.Header().Set("X-Status-Code", strconv.Itoa(status))
	if ct := ctx.Response.ContentType; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(status)
	_, _ = w.Write(ctx.Response.Body)
}
