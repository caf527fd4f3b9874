// Package selector provides load balancing strategies for distributing
// RPC requests across the Nodes of a discovered Service.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity nodes
//   - WeightedRandom:  Heterogeneous nodes (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package selector

import "github.com/bx-d/corerpc/registry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target node.
type Balancer interface {
	// Pick selects one node from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(nodes []registry.Node) (*registry.Node, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
