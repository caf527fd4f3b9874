package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bx-d/corerpc/client"
	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/selector"
	"github.com/bx-d/corerpc/server"
	"github.com/bx-d/corerpc/transport"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

func arithAddHandler(ctx *dispatch.Context) {
	var args Args
	if err := json.Unmarshal(ctx.Request.Body, &args); err != nil {
		ctx.Response.Status = 400
		return
	}
	body, _ := json.Marshal(Reply{Result: args.A + args.B})
	ctx.Response.Status = 200
	ctx.Response.Body = body
}

func arithMultiplyHandler(ctx *dispatch.Context) {
	var args Args
	if err := json.Unmarshal(ctx.Request.Body, &args); err != nil {
		ctx.Response.Status = 400
		return
	}
	body, _ := json.Marshal(Reply{Result: args.A * args.B})
	ctx.Response.Status = 200
	ctx.Response.Body = body
}

// TestFullIntegration exercises the full chain end to end:
// Client → Registry → Selector → ConnPool → Transport → Codec → Dispatch → handler.
func TestFullIntegration(t *testing.T) {
	addr := "127.0.0.1:19090"

	svr := server.NewServer()
	svr.RegisterHandler("add", arithAddHandler)
	svr.RegisterHandler("multiply", arithMultiplyHandler)
	go svr.ListenAndServeTransport(&transport.TCPTransport{}, addr)
	time.Sleep(100 * time.Millisecond)
	defer svr.ShutdownTransport()

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{
		Name:  "Arith",
		Nodes: []registry.Node{{ID: addr, Address: addr, Metadata: map[string]string{"weight": "10"}}},
	}, 10*time.Second)

	bal := &selector.RoundRobinBalancer{}
	cli := client.New(reg, bal, &transport.TCPTransport{})
	defer cli.Close()

	addBody, _ := json.Marshal(Args{A: 3, B: 5})
	resp, err := cli.Call(context.Background(), &client.TransportRequest{Service: "Arith", Endpoint: "add", Body: addBody})
	if err != nil {
		t.Fatalf("Call add failed: %v", err)
	}
	var reply Reply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Result != 8 {
		t.Fatalf("add: expect 8, got %d", reply.Result)
	}

	mulBody, _ := json.Marshal(Args{A: 4, B: 6})
	resp2, err := cli.Call(context.Background(), &client.TransportRequest{Service: "Arith", Endpoint: "multiply", Body: mulBody})
	if err != nil {
		t.Fatalf("Call multiply failed: %v", err)
	}
	var reply2 Reply
	if err := json.Unmarshal(resp2.Body, &reply2); err != nil {
		t.Fatal(err)
	}
	if reply2.Result != 24 {
		t.Fatalf("multiply: expect 24, got %d", reply2.Result)
	}

	t.Log("Full integration test passed!")
}

// TestMultiServer exercises load balancing across multiple registered nodes.
func TestMultiServer(t *testing.T) {
	addr1, addr2 := "127.0.0.1:19091", "127.0.0.1:19092"

	svr1 := server.NewServer()
	svr1.RegisterHandler("add", arithAddHandler)
	go svr1.ListenAndServeTransport(&transport.TCPTransport{}, addr1)
	defer svr1.ShutdownTransport()

	svr2 := server.NewServer()
	svr2.RegisterHandler("add", arithAddHandler)
	go svr2.ListenAndServeTransport(&transport.TCPTransport{}, addr2)
	defer svr2.ShutdownTransport()

	time.Sleep(100 * time.Millisecond)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "Arith", Nodes: []registry.Node{
		{ID: addr1, Address: addr1, Metadata: map[string]string{"weight": "10"}},
		{ID: addr2, Address: addr2, Metadata: map[string]string{"weight": "10"}},
	}}, 10*time.Second)

	bal := &selector.RoundRobinBalancer{}
	cli := client.New(reg, bal, &transport.TCPTransport{})
	defer cli.Close()

	for i := 1; i <= 10; i++ {
		body, _ := json.Marshal(Args{A: i, B: i * 10})
		resp, err := cli.Call(context.Background(), &client.TransportRequest{Service: "Arith", Endpoint: "add", Body: body})
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		var reply Reply
		if err := json.Unmarshal(resp.Body, &reply); err != nil {
			t.Fatal(err)
		}
		expected := i + i*10
		if reply.Result != expected {
			t.Fatalf("request %d: expect %d, got %d", i, expected, reply.Result)
		}
	}

	t.Log("Multi-server integration test passed!")
}
