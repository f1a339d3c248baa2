package coordinator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/preettrank53/DistributedCache/internal/apierr"
	"github.com/preettrank53/DistributedCache/internal/cluster"
	"github.com/preettrank53/DistributedCache/internal/ring"
)

// Membership owns the node descriptor table and keeps the consistent-hash
// ring in sync with it (C7's add_node/remove_node).
type Membership struct {
	mu    sync.RWMutex
	nodes map[string]cluster.NodeDescriptor
	ring  *ring.Ring
}

// NewMembership constructs an empty membership table backed by r.
func NewMembership(r *ring.Ring) *Membership {
	return &Membership{nodes: make(map[string]cluster.NodeDescriptor), ring: r}
}

// Add registers host:port, inserting it into the ring. Idempotent on a
// duplicate id.
func (m *Membership) Add(host string, port int) cluster.NodeDescriptor {
	id := fmt.Sprintf("%s:%d", host, port)

	m.mu.Lock()
	desc, exists := m.nodes[id]
	if !exists {
		desc = cluster.NodeDescriptor{ID: id, Host: host, Port: port, LastHealthyAt: time.Now()}
		m.nodes[id] = desc
	}
	m.mu.Unlock()

	m.ring.Add(id)
	return desc
}

// Remove unregisters the node on port, removing it from the ring. Does not
// force-stop the node process.
func (m *Membership) Remove(port int) error {
	m.mu.Lock()
	var found string
	for id, desc := range m.nodes {
		if desc.Port == port {
			found = id
			break
		}
	}
	if found == "" {
		m.mu.Unlock()
		return apierr.BadRequestf("no node registered on port %d", port)
	}
	delete(m.nodes, found)
	m.mu.Unlock()

	m.ring.Remove(found)
	return nil
}

// RemoveByID unregisters a node by its "host:port" id, used by the health
// monitor's onUnhealthy callback.
func (m *Membership) RemoveByID(id string) {
	m.mu.Lock()
	delete(m.nodes, id)
	m.mu.Unlock()
	m.ring.Remove(id)
}

// FindByPort returns the descriptor registered on port, if any. Partition
// and chaos requests address nodes by port since every node binds to
// 127.0.0.1 by default (see the external interfaces' loopback note).
func (m *Membership) FindByPort(port int) (cluster.NodeDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, desc := range m.nodes {
		if desc.Port == port {
			return desc, true
		}
	}
	return cluster.NodeDescriptor{}, false
}

// Get returns the descriptor for id, if registered.
func (m *Membership) Get(id string) (cluster.NodeDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desc, ok := m.nodes[id]
	return desc, ok
}

// All returns every registered node descriptor, sorted by id for a stable
// iteration order across calls (health-check rounds, /cluster/stats output).
func (m *Membership) All() []cluster.NodeDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cluster.NodeDescriptor, 0, len(m.nodes))
	for _, desc := range m.nodes {
		out = append(out, desc)
	}
	slices.SortFunc(out, func(a, b cluster.NodeDescriptor) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Count returns the number of currently registered nodes.
func (m *Membership) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
