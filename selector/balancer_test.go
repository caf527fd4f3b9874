package selector

import (
	"fmt"
	"testing"

	"github.com/bx-d/corerpc/registry"
)

func testNodes() []registry.Node {
	return []registry.Node{
		{ID: "n1", Address: "127.0.0.1", Port: 8001, Metadata: map[string]string{"weight": "10"}},
		{ID: "n2", Address: "127.0.0.1", Port: 8002, Metadata: map[string]string{"weight": "5"}},
		{ID: "n3", Address: "127.0.0.1", Port: 8003, Metadata: map[string]string{"weight": "10"}},
	}
}

func TestRoundRobin(t *testing.T) {
	nodes := testNodes()
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all nodes
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		n, err := b.Pick(nodes)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = n.DialAddr()
	}

	// Pick again, should wrap around to first
	n, _ := b.Pick(nodes)
	if n.DialAddr() != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], n.DialAddr())
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]registry.Node{})
	if err == nil {
		t.Fatal("expect error for empty nodes")
	}
}

func TestWeightedRandom(t *testing.T) {
	nodes := testNodes()
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		node, err := b.Pick(nodes)
		if err != nil {
			t.Fatal(err)
		}
		counts[node.DialAddr()]++
	}

	// Weight ratio is 10:5:10, so 8001 and 8003 should be ~2x of 8002
	ratio := float64(counts["127.0.0.1:8001"]) / float64(counts["127.0.0.1:8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio 8001/8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestConsistentHash(t *testing.T) {
	nodes := testNodes()
	b := NewConsistentHashBalancer()
	for i := range nodes {
		b.Add(&nodes[i])
	}

	// Same key should always map to the same node
	n1, _ := b.Pick("user-123")
	n2, _ := b.Pick("user-123")
	if n1.DialAddr() != n2.DialAddr() {
		t.Fatalf("same key mapped to different nodes: %s vs %s", n1.DialAddr(), n2.DialAddr())
	}

	// Different keys should (likely) map to different nodes
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n, _ := b.Pick(fmt.Sprintf("key-%d", i))
		seen[n.DialAddr()] = true
	}

	// With 100 different keys and 3 nodes, we should hit at least 2
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different nodes, got %d", len(seen))
	}
}
