// Package ring implements the consistent-hash ring used by the proxy to map
// keys onto an ordered replica set of physical nodes. Each physical node
// contributes K virtual positions; resolution walks the sorted position
// sequence clockwise from a key's hash, collecting distinct physical nodes.
//
// Membership mutation rebuilds the sorted position slice and swaps a single
// pointer under a write lock (copy-on-write), so concurrent resolvers always
// read a consistent, unchanging slice without blocking on lookups.
package ring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is the recommended number of virtual positions per
// physical node (the spec calls for K >= 10, recommending >= 50).
const DefaultVirtualNodes = 50

// position is one virtual node's placement on the ring.
type position struct {
	hash   uint64
	nodeID string
}

// VirtualNode is a single exposed ring position, used by Snapshot for
// visualization only; internal routing never uses Angle.
type VirtualNode struct {
	NodeID string  `json:"id"`
	Angle  float64 `json:"angle"`
}

// Ring is a consistent-hash ring with virtual nodes. The zero value is not
// usable; construct with New.
type Ring struct {
	mu            sync.RWMutex
	k             int
	positions     []position      // sorted by hash, copy-on-write
	physicalNodes map[string]bool // set of currently-present physical node ids
}

// New constructs an empty ring with k virtual nodes per physical node. k is
// clamped to a minimum of 10 per the spec's invariant.
func New(k int) *Ring {
	if k < 10 {
		k = 10
	}
	return &Ring{
		k:             k,
		positions:     nil,
		physicalNodes: make(map[string]bool),
	}
}

func fingerprint(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Add inserts a physical node's K virtual positions. Adding an id already
// present is a no-op (idempotent), matching C7's add_node idempotency.
func (r *Ring) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.physicalNodes[id] {
		return
	}
	r.physicalNodes[id] = true

	next := make([]position, len(r.positions), len(r.positions)+r.k)
	copy(next, r.positions)

	seen := make(map[uint64]bool, len(r.positions))
	for _, p := range r.positions {
		seen[p.hash] = true
	}

	for i := 0; i < r.k; i++ {
		bump := i
		h := fingerprint(fmt.Sprintf("%s#%d", id, bump))
		for seen[h] {
			bump++
			h = fingerprint(fmt.Sprintf("%s#%d", id, bump))
		}
		seen[h] = true
		next = append(next, position{hash: h, nodeID: id})
	}

	sort.Slice(next, func(i, j int) bool { return next[i].hash < next[j].hash })
	r.positions = next
}

// Remove deletes every virtual position belonging to id.
func (r *Ring) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.physicalNodes[id] {
		return
	}
	delete(r.physicalNodes, id)

	next := make([]position, 0, len(r.positions))
	for _, p := range r.positions {
		if p.nodeID != id {
			next = append(next, p)
		}
	}
	r.positions = next
}

// Replicas resolves the ordered replica set for key k, clamped to at most n
// distinct physical nodes (and fewer if the ring does not have n distinct
// nodes). The first element is the primary.
func (r *Ring) Replicas(key string, n int) []string {
	r.mu.RLock()
	positions := r.positions
	r.mu.RUnlock()

	if len(positions) == 0 || n <= 0 {
		return nil
	}

	target := fingerprint(key)
	start := sort.Search(len(positions), func(i int) bool { return positions[i].hash >= target })
	if start == len(positions) {
		start = 0
	}

	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for i := 0; i < len(positions) && len(out) < n; i++ {
		idx := (start + i) % len(positions)
		id := positions[idx].nodeID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns every virtual position with a visualization angle. It is
// never used for routing.
func (r *Ring) Snapshot() []VirtualNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]VirtualNode, len(r.positions))
	for i, p := range r.positions {
		out[i] = VirtualNode{
			NodeID: p.nodeID,
			Angle:  float64(p.hash) * 360.0 / float64(^uint64(0)),
		}
	}
	return out
}

// NodeCount returns the number of distinct physical nodes currently present.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.physicalNodes)
}

// Has reports whether a physical node is currently present in the ring.
func (r *Ring) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.physicalNodes[id]
}
