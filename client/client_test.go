package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bx-d/corerpc/dispatch"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/selector"
	"github.com/bx-d/corerpc/server"
	"github.com/bx-d/corerpc/transport"
)

type addArgs struct {
	A, B int
}

type addReply struct {
	Result int
}

func addHandler(ctx *dispatch.Context) {
	var args addArgs
	if err := json.Unmarshal(ctx.Request.Body, &args); err != nil {
		ctx.Response.Status = 400
		return
	}
	body, _ := json.Marshal(addReply{Result: args.A + args.B})
	ctx.Response.Status = 200
	ctx.Response.Body = body
}

func startArithServer(t *testing.T, addr string) *server.Server {
	t.Helper()
	svr := server.NewServer()
	svr.RegisterHandler("add", addHandler)
	go svr.ListenAndServeTransport(&transport.TCPTransport{}, addr)
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { svr.ShutdownTransport() })
	return svr
}

func TestClientWithRegistryAndLB(t *testing.T) {
	addr := "127.0.0.1:18080"
	startArithServer(t, addr)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "Arith", Nodes: []registry.Node{{ID: addr, Address: addr}}}, 10*time.Second)

	bal := &selector.RoundRobinBalancer{}
	cli := New(reg, bal, &transport.TCPTransport{})
	defer cli.Close()

	resp, err := cli.Call(context.Background(), &TransportRequest{Service: "Arith", Endpoint: "add", Body: mustJSON(addArgs{A: 1, B: 2})})
	if err != nil {
		t.Fatal(err)
	}
	var reply addReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Result != 3 {
		t.Fatalf("expect 3, got %v", reply.Result)
	}

	resp2, err := cli.Call(context.Background(), &TransportRequest{Service: "Arith", Endpoint: "add", Body: mustJSON(addArgs{A: 10, B: 20})})
	if err != nil {
		t.Fatal(err)
	}
	var reply2 addReply
	if err := json.Unmarshal(resp2.Body, &reply2); err != nil {
		t.Fatal(err)
	}
	if reply2.Result != 30 {
		t.Fatalf("expect 30, got %v", reply2.Result)
	}
}

func TestClientMultipleInstances(t *testing.T) {
	addr1, addr2 := "127.0.0.1:18081", "127.0.0.1:18082"
	startArithServer(t, addr1)
	startArithServer(t, addr2)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "Arith", Nodes: []registry.Node{
		{ID: addr1, Address: addr1},
		{ID: addr2, Address: addr2},
	}}, 10*time.Second)

	bal := &selector.RoundRobinBalancer{}
	cli := New(reg, bal, &transport.TCPTransport{})
	defer cli.Close()

	for i := 0; i < 10; i++ {
		resp, err := cli.Call(context.Background(), &TransportRequest{Service: "Arith", Endpoint: "add", Body: mustJSON(addArgs{A: i, B: i})})
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		var reply addReply
		if err := json.Unmarshal(resp.Body, &reply); err != nil {
			t.Fatal(err)
		}
		if reply.Result != i*2 {
			t.Fatalf("request %d: expect %d, got %d", i, i*2, reply.Result)
		}
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
