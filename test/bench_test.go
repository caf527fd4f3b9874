package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bx-d/corerpc/client"
	"github.com/bx-d/corerpc/codec"
	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/registry"
	"github.com/bx-d/corerpc/selector"
	"github.com/bx-d/corerpc/server"
	"github.com/bx-d/corerpc/transport"
)

func setupServerAndClient(b *testing.B, addr string) (*server.Server, *client.Client) {
	svr := server.NewServer()
	svr.RegisterHandler("add", arithAddHandler)
	go svr.ListenAndServeTransport(&transport.TCPTransport{}, addr)
	time.Sleep(100 * time.Millisecond)

	reg := registry.NewMockRegistry()
	reg.Register(registry.Service{Name: "Arith", Nodes: []registry.Node{{ID: addr, Address: addr}}}, 10*time.Second)

	bal := &selector.RoundRobinBalancer{}
	cli := client.New(reg, bal, &transport.TCPTransport{})

	return svr, cli
}

// BenchmarkSerialCall exercises a single goroutine making sequential calls.
func BenchmarkSerialCall(b *testing.B) {
	svr, cli := setupServerAndClient(b, "127.0.0.1:29090")
	b.Cleanup(func() { svr.ShutdownTransport(); cli.Close() })

	body := mustMarshal(Args{A: 1, B: 2})
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := cli.Call(context.Background(), &client.TransportRequest{Service: "Arith", Endpoint: "add", Body: body}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCall exercises many goroutines sharing one pooled client.
func BenchmarkConcurrentCall(b *testing.B) {
	svr, cli := setupServerAndClient(b, "127.0.0.1:29091")
	b.Cleanup(func() { svr.ShutdownTransport(); cli.Close() })

	body := mustMarshal(Args{A: 1, B: 2})
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := cli.Call(context.Background(), &client.TransportRequest{Service: "Arith", Endpoint: "add", Body: body}); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkCodecJSON measures encode+decode cost with no network involved.
func BenchmarkCodecJSON(b *testing.B) {
	cdc := codec.GetCodec(codec.CodecTypeJSON)
	msg := &message.RPCMessage{
		ServiceMethod: "Arith.Add",
		Payload:       []byte(`{"A":1,"B":2}`),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(msg)
		var out message.RPCMessage
		cdc.Decode(data, &out)
	}
}

// BenchmarkCodecMsgpack measures encode+decode cost for the binary codec.
func BenchmarkCodecMsgpack(b *testing.B) {
	cdc := codec.GetCodec(codec.CodecTypeMsgpack)
	msg := &message.RPCMessage{
		ServiceMethod: "Arith.Add",
		Payload:       []byte(`{"A":1,"B":2}`),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(msg)
		var out message.RPCMessage
		cdc.Decode(data, &out)
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
