package selector

import (
	"fmt"
	"sync/atomic"

	"github.com/bx-d/corerpc/registry"
)

// RoundRobinBalancer distributes requests evenly across all nodes in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: stateless services where all nodes have similar capacity.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()
}

// Pick selects the next node in round-robin order.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(nodes []registry.Node) (*registry.Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(nodes))
	return &nodes[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
