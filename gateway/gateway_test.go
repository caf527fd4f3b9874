package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bx-d/corerpc/client"
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/selector"
	"github.com/bx-d/corerpc/server"
	"github.com/bx-d/corerpc/transport"
	"github.com/bx-d/corerpc/value"
)

func TestRouterMatchWithParams(t *testing.T) {
	rt := NewRouter()
	rt.Register(&Route{Method: http.MethodGet, Path: "/products/:id", Service: "catalog", Endpoint: "get"})

	route, params, ok := rt.Match(http.MethodGet, "/products/p-1")
	if !ok {
		t.Fatal("expect a match")
	}
	if route.Service != "catalog" {
		t.Fatalf("expect service catalog, got %s", route.Service)
	}
	if params["id"] != "p-1" {
		t.Fatalf("expect id=p-1, got %v", params)
	}
}

func TestRouterNoMatch(t *testing.T) {
	rt := NewRouter()
	rt.Register(&Route{Method: http.MethodGet, Path: "/products", Service: "catalog", Endpoint: "list"})

	if _, _, ok := rt.Match(http.MethodGet, "/missing"); ok {
		t.Fatal("expect no match for an unregistered path")
	}
}

func TestExposureAllowList(t *testing.T) {
	route := &Route{ExposedMethods: []string{"list"}}
	if !route.exposureAllowed("list") {
		t.Fatal("expect list to be allowed")
	}
	if route.exposureAllowed("delete") {
		t.Fatal("expect delete to be blocked by the allow-list")
	}
}

func TestExposureBlockList(t *testing.T) {
	route := &Route{BlockedMethods: []string{"delete"}}
	if !route.exposureAllowed("list") {
		t.Fatal("expect list to pass through an empty allow-list")
	}
	if route.exposureAllowed("delete") {
		t.Fatal("expect delete to be blocked")
	}
}

func TestRemoveFieldsTransform(t *testing.T) {
	v := value.NewObject(map[string]value.Value{
		"id":     value.NewStr("p-1"),
		"secret": value.NewStr("shh"),
	})
	out := RemoveFieldsTransform{Names: []string{"secret"}}.Apply(v)

	if _, present := out.Object["secret"]; present {
		t.Fatal("expect secret removed")
	}
	if _, present := out.Object["id"]; !present {
		t.Fatal("expect id preserved")
	}
}

func TestAddFieldsTransform(t *testing.T) {
	v := value.NewObject(map[string]value.Value{"id": value.NewStr("p-1")})
	out := AddFieldsTransform{Fields: map[string]value.Value{"source": value.NewStr("gateway")}}.Apply(v)

	if out.Object["source"].Str != "gateway" {
		t.Fatal("expect source field added")
	}
}

func TestGatewayHealthEndpoint(t *testing.T) {
	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "catalog", Nodes: []registry.Node{{ID: "n1", Address: "127.0.0.1", Port: 1}}}, 0)

	gw := New(reg, nil)
	gw.RegisterService("catalog", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	gw.ServeHTTP(rec, req)

	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if !body.Services["catalog"] {
		t.Fatal("expect catalog reported healthy")
	}
}

func TestGatewayRouteNotFound(t *testing.T) {
	gw := New(registry.NewMockRegistry(), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d", rec.Code)
	}
}

func helloHandler(ctx *dispatch.Context) {
	var body struct{ Name string }
	_ = json.Unmarshal(ctx.Request.Body, &body)
	resp, _ := json.Marshal(map[string]string{"greeting": "Hello, " + body.Name + "!"})
	ctx.Response.Status = 200
	ctx.Response.Body = resp
	ctx.Response.Headers.Set("Content-Type", "application/json")
}

func startHelloServer(t *testing.T, addr string) {
	t.Helper()
	svr := server.NewServer()
	svr.RegisterHandler("hello", helloHandler)
	go svr.ListenAndServeTransport(&transport.TCPTransport{}, addr)
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { svr.ShutdownTransport() })
}

func TestGatewayProxiesRoute(t *testing.T) {
	addr := "127.0.0.1:18181"
	startHelloServer(t, addr)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "hello", Nodes: []registry.Node{{ID: addr, Address: addr}}}, 0)

	cl := client.New(reg, &selector.RoundRobinBalancer{}, &transport.TCPTransport{})
	gw := New(reg, nil)
	gw.RegisterService("hello", cl)
	gw.RegisterRoute(&Route{Method: http.MethodPost, Path: "/hello", Service: "hello", Endpoint: "hello", Timeout: 2 * time.Second})

	ts := httptest.NewServer(gw)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"name": "World"})
	resp, err := http.Post(ts.URL+"/hello", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var decoded map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode response: %v, body=%s", err, data)
	}
	if decoded["greeting"] != "Hello, World!" {
		t.Fatalf("expect greeting, got %v", decoded)
	}
}

func listHandler(items string) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) {
		ctx.Response.Status = 200
		ctx.Response.Body = []byte(items)
		ctx.Response.Headers.Set("Content-Type", "application/json")
	}
}

func TestGatewayAggregationRoute(t *testing.T) {
	catalogAddr := "127.0.0.1:18182"
	ordersAddr := "127.0.0.1:18183"

	catalogSvr := server.NewServer()
	catalogSvr.RegisterHandler("list", listHandler(`[{"id":"p-1"}]`))
	go catalogSvr.ListenAndServeTransport(&transport.TCPTransport{}, catalogAddr)
	t.Cleanup(func() { catalogSvr.ShutdownTransport() })

	ordersSvr := server.NewServer()
	ordersSvr.RegisterHandler("list_recent", listHandler(`[{"id":"o-1"}]`))
	go ordersSvr.ListenAndServeTransport(&transport.TCPTransport{}, ordersAddr)
	t.Cleanup(func() { ordersSvr.ShutdownTransport() })

	time.Sleep(100 * time.Millisecond)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "catalog", Nodes: []registry.Node{{ID: catalogAddr, Address: catalogAddr}}}, 0)
	reg.Register(registry.Service{Name: "orders", Nodes: []registry.Node{{ID: ordersAddr, Address: ordersAddr}}}, 0)

	gw := New(reg, nil)
	gw.RegisterService("catalog", client.New(reg, &selector.RoundRobinBalancer{}, &transport.TCPTransport{}))
	gw.RegisterService("orders", client.New(reg, &selector.RoundRobinBalancer{}, &transport.TCPTransport{}))
	gw.RegisterRoute(&Route{
		Method: http.MethodGet,
		Path:   "/combined",
		Aggregate: []AggregateLeg{
			{Key: "a", Service: "catalog", Endpoint: "list"},
			{Key: "b", Service: "orders", Endpoint: "list_recent"},
		},
		Timeout: 2 * time.Second,
	})

	ts := httptest.NewServer(gw)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/combined")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode response: %v, body=%s", err, data)
	}
	if _, ok := decoded["a"]; !ok {
		t.Fatal("expect key a in merged response")
	}
	if _, ok := decoded["b"]; !ok {
		t.Fatal("expect key b in merged response")
	}
}
