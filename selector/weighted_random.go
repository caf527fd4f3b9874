package selector

import (
	"fmt"
	"math/rand"

	"github.com/bx-d/corerpc/registry"
)

// WeightedRandomBalancer selects nodes probabilistically based on
// Node.Weight(). A node with weight 10 gets roughly 2x the traffic of
// one with weight 5.
//
// Best for: heterogeneous nodes (e.g., some servers have more CPU/memory).
//
// Algorithm:
//  1. Sum all weights → totalWeight
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each node's weight from r until r < 0
//  4. The node that makes r negative is selected
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(nodes []registry.Node) (*registry.Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes available")
	}

	totalWeight := 0
	for _, n := range nodes {
		totalWeight += n.Weight()
	}

	r := rand.Intn(totalWeight)
	for i := range nodes {
		r -= nodes[i].Weight()
		if r < 0 {
			return &nodes[i], nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
