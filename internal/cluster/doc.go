// Package cluster holds the wire types and HTTP helpers shared between the
// proxy coordinator and cache-node processes: a node descriptor type and the
// generic JSON-over-HTTP request helpers every inter-process call is built
// from.
//
// # Overview
//
// Unlike a hub-and-spoke cluster where nodes register themselves with a
// coordinator, this package backs a coordinator-driven topology: the proxy
// is told about nodes (POST /cluster/add-node) rather than discovering them.
// Cache nodes never call back into the proxy; they expose a stateless HTTP
// surface and know nothing about the ring, replication, or other nodes.
//
// # Architecture
//
//	                 ┌──────────────┐
//	                 │    Proxy     │
//	                 │              │
//	                 │ - Membership │
//	                 │ - Ring (C4)  │
//	                 │ - Health Mon │
//	                 │ - Chaos      │
//	                 └──────┬───────┘
//	                        │ NodeDescriptor.Addr()
//	       ┌────────────────┼────────────────┐
//	       │                │                │
//	 ┌─────▼─────┐    ┌─────▼─────┐    ┌─────▼─────┐
//	 │ cachenode │    │ cachenode │    │ cachenode │
//	 │  :8001    │    │  :8002    │    │  :8003    │
//	 └───────────┘    └───────────┘    └───────────┘
//
// # Core Type
//
// NodeDescriptor identifies one registered cache node: its "host:port" id,
// host, port, and the last time the health monitor observed it healthy.
// Addr() computes the base URL used for every outbound call to that node.
//
// # Communication Protocol
//
// All inter-process communication is plain JSON over HTTP. Every call below
// except the /health probe, which the health monitor makes with its own
// http.Client, goes through the PostJSON/GetJSON/DeleteJSON helpers in this
// package:
//
//   - GET  {addr}/health          — liveness probe (internal/coordinator)
//   - POST {addr}/cache           — write-through replica fan-out (C6)
//   - GET  {addr}/cache/{key}     — primary read with fall-through (C6)
//   - DELETE {addr}/cache/{key}   — replica delete fan-out (C6)
//   - POST {addr}/control/shutdown — chaos termination (C8)
//
// # Concurrency Model
//
// NodeDescriptor is an immutable value once constructed; callers pass it by
// value. The HTTP helpers share a single *http.Client with a fixed timeout,
// safe for concurrent use. Per-call deadlines are layered on top via
// context.WithTimeout at the call site (internal/coordinator), since a
// single client-wide timeout cannot express "this specific replica call
// gets 2s" without affecting every other concurrent call.
//
// # Failure Handling
//
// PostJSON/GetJSON/DeleteJSON treat any non-2xx response or transport error
// identically: an error is returned and the caller decides what it means
// (a failed replica write, a cache miss worth falling through on, or an
// unreachable node worth counting toward the health monitor's failure
// threshold). This package never retries; retry and backoff policy belongs
// to the caller.
package cluster
