// Package partition implements the symmetric, per-unordered-pair boolean
// matrix used to simulate network partitions between cache nodes. Partitions
// affect only the proxy's replica write fan-out (see internal/coordinator);
// they never affect reads or the backing-store write-through.
package partition

import (
	"sync"

	"github.com/preettrank53/DistributedCache/internal/apierr"
)

// Pair is an unordered pair of node identifiers, always canonicalized so
// Source <= Target lexicographically.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func canonical(a, b string) Pair {
	if a <= b {
		return Pair{Source: a, Target: b}
	}
	return Pair{Source: b, Target: a}
}

// Matrix is a thread-safe set of partitioned node pairs.
type Matrix struct {
	mu    sync.Mutex
	pairs map[Pair]bool
}

// New constructs an empty partition matrix.
func New() *Matrix {
	return &Matrix{pairs: make(map[Pair]bool)}
}

// Create declares a and b partitioned. a == b is rejected.
func (m *Matrix) Create(a, b string) error {
	if a == b {
		return apierr.BadRequestf("cannot partition a node from itself: %s", a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[canonical(a, b)] = true
	return nil
}

// Remove undoes a partition between a and b. Removing a non-existent
// partition is a no-op.
func (m *Matrix) Remove(a, b string) error {
	if a == b {
		return apierr.BadRequestf("cannot remove self-partition: %s", a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, canonical(a, b))
	return nil
}

// Has reports whether a and b are currently partitioned from each other.
// Symmetric by construction: Has(a,b) == Has(b,a).
func (m *Matrix) Has(a, b string) bool {
	if a == b {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[canonical(a, b)]
}

// List returns every currently-partitioned pair.
func (m *Matrix) List() []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pair, 0, len(m.pairs))
	for p := range m.pairs {
		out = append(out, p)
	}
	return out
}

// Clear removes every partition.
func (m *Matrix) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = make(map[Pair]bool)
}
