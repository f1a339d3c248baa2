// This file implements the proxy coordinator's core operations (C6):
// routing via the ring, partition-aware replica fan-out, and read
// fall-through to the backing store.
package coordinator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/preettrank53/DistributedCache/internal/apierr"
	"github.com/preettrank53/DistributedCache/internal/backingstore"
	"github.com/preettrank53/DistributedCache/internal/cluster"
	"github.com/preettrank53/DistributedCache/internal/metrics"
	"github.com/preettrank53/DistributedCache/internal/partition"
	"github.com/preettrank53/DistributedCache/internal/ring"
)

// Config holds the proxy coordinator's tunables (C6's "Configuration" list).
type Config struct {
	ReplicationFactor   int
	HTTPTimeoutPerCall  time.Duration
	BackingStorePath    string
	HealthCheckPeriod   time.Duration
	VirtualNodesPerNode int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ReplicationFactor:   2,
		HTTPTimeoutPerCall:  2 * time.Second,
		HealthCheckPeriod:   3 * time.Second,
		VirtualNodesPerNode: ring.DefaultVirtualNodes,
	}
}

// Proxy is the coordinator process's central object: routing, replication,
// read fall-through, membership, and (via the embedded HealthMonitor and
// ChaosController) liveness and chaos.
type Proxy struct {
	cfg    Config
	logger *zap.Logger

	Ring       *ring.Ring
	Membership *Membership
	Partitions *partition.Matrix
	Store      *backingstore.Store
	Health     *HealthMonitor
	Chaos      *ChaosController

	totalRequests uint64
}

// NewProxy wires together a ring, membership table, partition matrix,
// backing store, health monitor, and chaos controller into a ready-to-serve
// Proxy.
func NewProxy(cfg Config, store *backingstore.Store, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := ring.New(cfg.VirtualNodesPerNode)
	members := NewMembership(r)
	parts := partition.New()
	health := NewHealthMonitor(cfg.HealthCheckPeriod, logger)

	p := &Proxy{
		cfg:        cfg,
		logger:     logger,
		Ring:       r,
		Membership: members,
		Partitions: parts,
		Store:      store,
		Health:     health,
	}
	p.Chaos = NewChaosController(p, logger)

	health.SetOnUnhealthy(func(nodeID string) {
		logger.Warn("pruning dead node from ring", zap.String("node_id", nodeID))
		members.RemoveByID(nodeID)
	})

	return p
}

// StartHealthMonitor runs the health-check loop until ctx is canceled.
func (p *Proxy) StartHealthMonitor(ctx context.Context) {
	p.Health.Start(ctx, p.Membership.All)
}

type replicaOutcome struct {
	nodeID string
	ok     bool
}

// PutResult is the per-request summary C6.put returns.
type PutResult struct {
	Nodes           []string
	Skipped         []string
	BackingStoreOK  bool
	ReportedPrimary string
}

// Put resolves the replica set for key, fans writes out to every replica not
// excluded by a partition, writes through to the backing store regardless of
// replica outcome, and succeeds iff the backing store wrote AND at least one
// of {primary, a promoted replica} wrote.
func (p *Proxy) Put(ctx context.Context, key, value string, ttl *int64) (PutResult, error) {
	atomic.AddUint64(&p.totalRequests, 1)
	requestID := uuid.New().String()
	p.logger.Debug("put request", zap.String("request_id", requestID), zap.String("key", key))

	replicas := p.Ring.Replicas(key, p.cfg.ReplicationFactor)
	if len(replicas) == 0 {
		return PutResult{}, apierr.Unavailablef("no nodes registered")
	}
	primary := replicas[0]

	retained := make([]string, 0, len(replicas))
	var skipped []string
	for i, r := range replicas {
		if i == 0 {
			retained = append(retained, r)
			continue
		}
		if p.Partitions.Has(primary, r) {
			skipped = append(skipped, r)
			continue
		}
		retained = append(retained, r)
	}

	outcomes := make([]replicaOutcome, len(retained))
	g, gctx := errgroup.WithContext(ctx)
	for i, nodeID := range retained {
		i, nodeID := i, nodeID
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.cfg.HTTPTimeoutPerCall)
			defer cancel()
			err := p.putOnNode(callCtx, nodeID, key, value, ttl)
			outcomes[i] = replicaOutcome{nodeID: nodeID, ok: err == nil}
			if err == nil {
				metrics.RecordReplicaWrite("ok")
			} else {
				metrics.RecordReplicaWrite("failed")
				p.logger.Debug("replica write failed",
					zap.String("request_id", requestID),
					zap.String("node_id", nodeID),
					zap.Error(err))
			}
			return nil // individual failures never cancel siblings
		})
	}
	_ = g.Wait()

	var successful []string
	primaryOK := false
	for _, o := range outcomes {
		if o.ok {
			successful = append(successful, o.nodeID)
			if o.nodeID == primary {
				primaryOK = true
			}
		}
	}

	dbErr := p.Store.Set(key, value, ttl)
	backingOK := dbErr == nil
	if dbErr != nil {
		p.logger.Error("backing store write failed", zap.String("request_id", requestID), zap.String("key", key), zap.Error(dbErr))
	}

	result := PutResult{Nodes: successful, Skipped: skipped, BackingStoreOK: backingOK}

	if !backingOK {
		return result, apierr.Unavailablef("backing store write failed")
	}
	if primaryOK {
		result.ReportedPrimary = primary
		return result, nil
	}
	if len(successful) > 0 {
		result.ReportedPrimary = successful[0]
		return result, nil
	}
	return result, apierr.Unavailablef("all replicas failed and backing store succeeded alone")
}

func (p *Proxy) putOnNode(ctx context.Context, nodeID, key, value string, ttl *int64) error {
	desc, ok := p.Membership.Get(nodeID)
	if !ok {
		return fmt.Errorf("unknown node %s", nodeID)
	}
	body := map[string]any{"key": key, "value": value}
	if ttl != nil {
		body["ttl"] = *ttl
	}
	return cluster.PostJSON(ctx, desc.Addr()+"/cache", body, nil)
}

// GetResult is what C6.get returns to the client.
type GetResult struct {
	Value  string
	Source string // "cache" or "db"
	Node   string
}

// Get resolves key either by bypassing the cache (direct backing-store read)
// or via the primary with fall-through to the backing store on miss.
func (p *Proxy) Get(ctx context.Context, key string, bypassCache bool) (GetResult, error) {
	atomic.AddUint64(&p.totalRequests, 1)

	if bypassCache {
		value, _, ok := p.Store.Get(key)
		if !ok {
			return GetResult{}, apierr.NotFoundf("key %q not found", key)
		}
		return GetResult{Value: value, Source: "db"}, nil
	}

	replicas := p.Ring.Replicas(key, 1)
	if len(replicas) == 0 {
		return p.getFromStore(ctx, key)
	}
	primary := replicas[0]
	desc, ok := p.Membership.Get(primary)
	if !ok {
		return p.getFromStore(ctx, key)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.HTTPTimeoutPerCall)
	defer cancel()

	var resp struct {
		Value string `json:"value"`
		Hit   bool   `json:"hit"`
	}
	err := cluster.GetJSON(callCtx, desc.Addr()+"/cache/"+key, &resp)
	if err == nil && resp.Hit {
		metrics.RecordCacheHit()
		return GetResult{Value: resp.Value, Source: "cache", Node: primary}, nil
	}

	metrics.RecordCacheMiss()
	result, storeErr := p.getFromStore(ctx, key)
	if storeErr != nil {
		return GetResult{}, storeErr
	}

	// Best-effort repopulation of the primary; failure is ignored.
	go func() {
		repopCtx, cancel := context.WithTimeout(context.Background(), p.cfg.HTTPTimeoutPerCall)
		defer cancel()
		_, ttl, ok := p.Store.Get(key)
		if ok {
			_ = p.putOnNode(repopCtx, primary, key, result.Value, ttl)
		}
	}()

	return result, nil
}

func (p *Proxy) getFromStore(_ context.Context, key string) (GetResult, error) {
	value, _, ok := p.Store.Get(key)
	if !ok {
		return GetResult{}, apierr.NotFoundf("key %q not found", key)
	}
	return GetResult{Value: value, Source: "db"}, nil
}

// Delete fans a DELETE out to every currently-registered replica for key
// (ignoring individual failures) and deletes it from the backing store.
func (p *Proxy) Delete(ctx context.Context, key string) error {
	atomic.AddUint64(&p.totalRequests, 1)

	replicas := p.Ring.Replicas(key, p.cfg.ReplicationFactor)

	g, gctx := errgroup.WithContext(ctx)
	for _, nodeID := range replicas {
		nodeID := nodeID
		g.Go(func() error {
			desc, ok := p.Membership.Get(nodeID)
			if !ok {
				return nil
			}
			callCtx, cancel := context.WithTimeout(gctx, p.cfg.HTTPTimeoutPerCall)
			defer cancel()
			_ = cluster.DeleteJSON(callCtx, desc.Addr()+"/cache/"+key, nil)
			return nil
		})
	}
	_ = g.Wait()

	return p.Store.Delete(key)
}

// TotalRequests returns the running count of Put/Get/Delete calls served,
// for the /stats/global aggregate (C9).
func (p *Proxy) TotalRequests() uint64 {
	return atomic.LoadUint64(&p.totalRequests)
}
