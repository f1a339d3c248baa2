package coordinator

// This file implements health monitoring for registered nodes in the
// cluster: the only mechanism that reacts to a chaos-induced kill.

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/preettrank53/DistributedCache/internal/cluster"
	"github.com/preettrank53/DistributedCache/internal/metrics"
)

// NodeHealth tracks the health status of a single node in the cluster.
// Thread-safe: protected by HealthMonitor's mutex when accessed.
type NodeHealth struct {
	LastCheck        time.Time
	LastHealthy      time.Time
	NodeID           string
	Status           string // "healthy", "unhealthy", "unknown"
	ConsecutiveFails int
}

// HealthMonitor performs periodic health checks on every registered node and
// prunes ring membership on sustained failure. maxFailures is fixed at 2 per
// the membership & liveness design (C7), unlike a generic health-check
// library that might default higher.
type HealthMonitor struct {
	nodes       map[string]*NodeHealth
	httpClient  *http.Client
	checkFunc   func(addr string) error
	onUnhealthy func(nodeID string)
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	interval    time.Duration
	timeout     time.Duration
	mu          sync.RWMutex
	wg          sync.WaitGroup
	maxFailures int
}

// NewHealthMonitor creates a health monitor that probes each node's
// /health endpoint every interval, marking a node unhealthy after two
// consecutive failures (the spec's C7 threshold).
func NewHealthMonitor(interval time.Duration, logger *zap.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HealthMonitor{
		interval:    interval,
		timeout:     1 * time.Second,
		maxFailures: 2,
		nodes:       make(map[string]*NodeHealth),
		httpClient:  &http.Client{Timeout: 1 * time.Second},
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOnUnhealthy sets the callback invoked exactly once per healthy->unhealthy
// transition. Typically wired to ring.Remove + descriptor-table removal.
func (h *HealthMonitor) SetOnUnhealthy(callback func(nodeID string)) {
	h.onUnhealthy = callback
}

// Start begins the health monitoring loop, blocking until ctx (or the
// monitor's internal context) is canceled. nodeProvider is re-invoked every
// tick, so membership changes are picked up without restarting the monitor.
func (h *HealthMonitor) Start(ctx context.Context, nodeProvider func() []cluster.NodeDescriptor) {
	h.wg.Add(1)
	defer h.wg.Done()

	if ctx == nil {
		ctx = h.ctx
	}
	if h.checkFunc == nil {
		h.checkFunc = h.defaultHealthCheck
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("health monitor started", zap.Duration("interval", h.interval))

	h.checkAllNodes(nodeProvider())

	for {
		select {
		case <-ticker.C:
			h.checkAllNodes(nodeProvider())
		case <-ctx.Done():
			h.logger.Info("health monitor stopping", zap.String("reason", "context canceled"))
			return
		case <-h.ctx.Done():
			h.logger.Info("health monitor stopping", zap.String("reason", "internal cancellation"))
			return
		}
	}
}

// Stop gracefully shuts down the health monitor and waits for the loop to exit.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
}

func (h *HealthMonitor) checkAllNodes(nodes []cluster.NodeDescriptor) {
	currentNodes := make(map[string]bool, len(nodes))

	var g errgroup.Group
	for _, node := range nodes {
		node := node
		currentNodes[node.ID] = true
		g.Go(func() error {
			h.checkNode(node)
			return nil
		})
	}
	_ = g.Wait()

	h.mu.Lock()
	for nodeID := range h.nodes {
		if !currentNodes[nodeID] {
			delete(h.nodes, nodeID)
		}
	}
	h.mu.Unlock()
}

func (h *HealthMonitor) checkNode(node cluster.NodeDescriptor) {
	h.mu.Lock()
	health, exists := h.nodes[node.ID]
	if !exists {
		health = &NodeHealth{
			NodeID:      node.ID,
			Status:      "unknown",
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		h.nodes[node.ID] = health
	}
	h.mu.Unlock()

	err := h.checkFunc(node.Addr())

	h.mu.Lock()
	defer h.mu.Unlock()

	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		h.logger.Debug("health check failed",
			zap.String("node_id", node.ID),
			zap.Int("consecutive_fails", health.ConsecutiveFails),
			zap.Error(err))

		if health.ConsecutiveFails >= h.maxFailures {
			previousStatus := health.Status
			health.Status = "unhealthy"

			if previousStatus != "unhealthy" && h.onUnhealthy != nil {
				h.logger.Warn("node marked unhealthy",
					zap.String("node_id", node.ID),
					zap.Int("consecutive_fails", health.ConsecutiveFails))
				metrics.RecordHealthTransition("unhealthy")
				go h.onUnhealthy(node.ID)
			}
		}
	} else {
		if health.Status == "unhealthy" {
			h.logger.Info("node recovered", zap.String("node_id", node.ID))
			metrics.RecordHealthTransition("healthy")
		}
		health.Status = "healthy"
		health.ConsecutiveFails = 0
		health.LastHealthy = time.Now()
	}
}

// defaultHealthCheck does a GET {addr}/health, treating any non-200 response
// or transport error as a failure.
func (h *HealthMonitor) defaultHealthCheck(addr string) error {
	url := addr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		url = fmt.Sprintf("http://%s", addr)
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := h.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// GetNodeHealth returns a defensive copy of a node's health, or nil if unknown.
func (h *HealthMonitor) GetNodeHealth(nodeID string) *NodeHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.nodes[nodeID]
	if !exists {
		return nil
	}
	copyOf := *health
	return &copyOf
}

// GetAllNodeHealth returns a defensive copy of every monitored node's health.
func (h *HealthMonitor) GetAllNodeHealth() map[string]*NodeHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*NodeHealth, len(h.nodes))
	for id, health := range h.nodes {
		copyOf := *health
		result[id] = &copyOf
	}
	return result
}

// IsHealthy reports whether nodeID is currently healthy. Unknown nodes are
// reported unhealthy.
func (h *HealthMonitor) IsHealthy(nodeID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.nodes[nodeID]
	if !exists {
		return false
	}
	return health.Status == "healthy"
}

// SetCheckFunction overrides the default health check, for test injection.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(addr string) error) {
	h.checkFunc = checkFunc
}
