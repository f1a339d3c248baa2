// Package coordinator implements the proxy process's control plane: request
// routing over a consistent-hash ring, replicated writes, read fall-through
// to a durable backing store, node membership and liveness, and randomized
// chaos termination.
//
// # Overview
//
// The proxy is the single entry point clients talk to. It never stores data
// itself; it resolves which cache node(s) own a key via the ring, fans
// writes out to them, and falls through to the backing store on a cache
// miss. Cluster topology is explicit: nodes are added and removed by client
// request (POST /cluster/add-node, DELETE /cluster/remove-node/{port}), not
// self-registration.
//
// # Architecture
//
//	┌───────────────────────────────────────┐
//	│               PROXY                    │
//	├───────────────────────────────────────┤
//	│                                       │
//	│  ┌─────────────────────────────────┐ │
//	│  │  Ring (internal/ring)            │ │
//	│  │  - Virtual-node placement        │ │
//	│  │  - Replica set resolution        │ │
//	│  └─────────────────────────────────┘ │
//	│                                       │
//	│  ┌─────────────────────────────────┐ │
//	│  │  Membership                      │ │
//	│  │  - Node descriptor table         │ │
//	│  │  - Add/remove syncs the ring     │ │
//	│  └─────────────────────────────────┘ │
//	│                                       │
//	│  ┌─────────────────────────────────┐ │
//	│  │  HealthMonitor                   │ │
//	│  │  - Periodic /health probes       │ │
//	│  │  - Prunes on 2 consecutive fails │ │
//	│  └─────────────────────────────────┘ │
//	│                                       │
//	│  ┌─────────────────────────────────┐ │
//	│  │  ChaosController                 │ │
//	│  │  - Random-interval termination   │ │
//	│  │  - Survival-floor guard          │ │
//	│  └─────────────────────────────────┘ │
//	│                                       │
//	│  ┌─────────────────────────────────┐ │
//	│  │  Proxy (routing core)            │ │
//	│  │  - Put/Get/Delete                │ │
//	│  │  - Partition-aware fan-out       │ │
//	│  └─────────────────────────────────┘ │
//	│                                       │
//	└───────────────────────────────────────┘
//
// # Core Components
//
// Membership: the node descriptor table
//   - Maps "host:port" ids to NodeDescriptor
//   - Add/Remove/RemoveByID keep internal/ring in lock-step
//   - No replication or rebalancing state beyond the ring itself
//
// HealthMonitor: periodic liveness probing
//   - Re-reads the current node list every tick (no restart on membership change)
//   - Fires onUnhealthy exactly once per healthy→unhealthy transition
//   - maxFailures is fixed at 2, the only deliberate generalization over a
//     typical health-check library default of 3
//
// ChaosController: randomized node termination
//   - Picks a uniformly random node at a random interval within configured bounds
//   - Refuses to terminate below a minimum surviving-node floor
//   - Terminates via POST /control/shutdown; never owns node OS processes
//
// Proxy: the request-routing core
//   - Put: resolves replicas, excludes partitioned pairs, fans out
//     concurrently, writes through to the backing store
//   - Get: resolves the primary, falls through to the backing store on miss,
//     best-effort repopulates the primary
//   - Delete: fans a delete out to every replica and the backing store
//
// # Replica Resolution and Fan-out
//
// Key routing uses the ring's virtual-node placement (internal/ring), not a
// fixed shard count:
//
//	Ring (64-bit space, xxhash):
//	0                                          2^64
//	|────────────────────────────────────────────|
//	  ↑      ↑       ↑        ↑       ↑      ↑
//	 n1v7   n2v3    n1v2     n3v9    n2v1   n3v4
//
//	key "user:123" → hash(key) → walk clockwise → first 2 distinct physical
//	nodes encountered are the replica set (R=2 by default)
//
// Node addition/removal rebuilds the sorted position slice and swaps a
// single pointer (copy-on-write); resolution never blocks on a membership
// change in progress.
//
// # Request Routing Protocol
//
// Put (C6):
//  1. Resolve the ordered replica set for the key via the ring.
//  2. Drop any replica partitioned from the primary (internal/partition).
//  3. Fan concurrent POST /cache calls out to the retained replicas with a
//     per-call deadline (errgroup, no group-wide cancellation).
//  4. Write through to the backing store regardless of replica outcome.
//  5. Succeed iff the backing store wrote and at least one replica wrote.
//
// Get (C6):
//  1. Resolve the primary only (replica count 1).
//  2. GET /cache/{key} on the primary with a per-call deadline.
//  3. On miss or failure, consult the backing store; if found, best-effort
//     repopulate the primary and return the value with source "db".
//
// Delete (C6): fan a DELETE out to every replica (best-effort, ignoring
// individual failures) and delete from the backing store.
//
// # Concurrency and Synchronization
//
// Lock granularity:
//   - Membership: one RWMutex guarding the descriptor map; the ring has its
//     own independent RWMutex
//   - HealthMonitor: one RWMutex guarding per-node health records
//   - ChaosController: one Mutex guarding its small state struct
//   - Partition matrix: one Mutex guarding the pair set
//
// Goroutine patterns:
//   - errgroup-based fan-out for replica writes and deletes, every goroutine
//     returning nil so an individual failure never cancels its siblings
//   - errgroup-based concurrent /health probes within each health round
//   - A single ticker-driven goroutine per HealthMonitor and ChaosController
//
// Consistency guarantees: none beyond best-effort. There is no
// linearizability promise across replicas, no read-your-writes guarantee
// once a replica write is still in flight, and no automatic reconciliation
// sweep between replicas or against the backing store.
//
// # Failure Scenarios and Recovery
//
// Node failures:
//   - Detection: two consecutive failed /health probes
//   - Impact: the node is pruned from the ring; keys routed there fall
//     through to the backing store on the next read
//   - Recovery: re-addition is an explicit client action; there is no
//     automatic rejoin
//
// Network partitions (simulated):
//   - Detection: none — partitions are declared by client request, not
//     discovered
//   - Impact: writes to the excluded replica are skipped; reads and the
//     backing-store write-through are unaffected
//   - Recovery: POST /partition/remove or /partition/clear
//
// Chaos-induced termination:
//   - Detection: the terminated node simply stops answering /health
//   - Impact: identical to an organic node failure, since termination uses
//     the same /control/shutdown path a manual operator would use
//   - Recovery: same as node failures above
//
// # See Also
//
// Related packages:
//   - internal/ring: consistent-hash ring and replica resolution
//   - internal/partition: simulated network-partition matrix
//   - internal/backingstore: durable write-through store
//   - internal/cluster: node descriptor type and HTTP helpers
package coordinator
