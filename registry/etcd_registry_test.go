package registry

import (
	"testing"
	"time"
)

// Requires a live etcd at localhost:2379; skipped when unreachable so the
// rest of the suite stays runnable without external services.
func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry([]string{"localhost:2379"})
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}

	svc := Service{
		Name:    "Arith",
		Version: "1.0",
		Nodes: []Node{
			{ID: "n1", Address: "127.0.0.1", Port: 8001, Metadata: map[string]string{"weight": "10"}},
			{ID: "n2", Address: "127.0.0.1", Port: 8002, Metadata: map[string]string{"weight": "5"}},
		},
	}

	if err := reg.Register(svc, 10*time.Second); err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}

	services, err := reg.GetService("Arith", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 1 || len(services[0].Nodes) != 2 {
		t.Fatalf("expected 1 service with 2 nodes, got %+v", services)
	}

	one := Service{Name: "Arith", Version: "1.0", Nodes: []Node{svc.Nodes[0]}}
	if err := reg.Deregister(one); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	services, err = reg.GetService("Arith", "1.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 1 || len(services[0].Nodes) != 1 {
		t.Fatalf("expected 1 node after deregister, got %+v", services)
	}
	if services[0].Nodes[0].ID != "n2" {
		t.Fatalf("expected n2 to remain, got %s", services[0].Nodes[0].ID)
	}

	reg.Deregister(Service{Name: "Arith", Version: "1.0", Nodes: []Node{svc.Nodes[1]}})
}
