package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/preettrank53/DistributedCache/internal/apierr"
	"github.com/preettrank53/DistributedCache/internal/cluster"
	"github.com/preettrank53/DistributedCache/internal/metrics"
)

// ChaosConfig holds the tunables for the chaos controller (C8).
type ChaosConfig struct {
	MinIntervalSeconds int
	MaxIntervalSeconds int
	MinSurvivingNodes  int
}

// DefaultChaosConfig mirrors the spec's documented defaults.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		MinIntervalSeconds: 5,
		MaxIntervalSeconds: 8,
		MinSurvivingNodes:  1,
	}
}

// ChaosStatus is the snapshot returned by ChaosController.Status. GET
// /chaos/status reports the enabled flag and the configuration from it, plus
// the current node count.
type ChaosStatus struct {
	Enabled            bool      `json:"enabled"`
	MinIntervalSeconds int       `json:"min_interval_seconds"`
	MaxIntervalSeconds int       `json:"max_interval_seconds"`
	MinSurvivingNodes  int       `json:"min_surviving_nodes"`
	TotalTerminations  int       `json:"total_terminations"`
	LastTerminatedNode string    `json:"last_terminated_node,omitempty"`
	LastTerminationAt  time.Time `json:"last_termination_at,omitempty"`
}

// ChaosController periodically terminates a randomly-chosen node to exercise
// the cluster's fault tolerance (C8). Termination is always via the target
// node's /control/shutdown endpoint: the coordinator never owns node
// processes directly, since cmd/cachenode instances are launched
// independently.
type ChaosController struct {
	proxy  *Proxy
	logger *zap.Logger

	mu                 sync.Mutex
	cfg                ChaosConfig
	enabled            bool
	cancel             context.CancelFunc
	done               chan struct{}
	totalTerminations  int
	lastTerminatedNode string
	lastTerminationAt  time.Time
	rng                *rand.Rand
}

// NewChaosController returns a stopped chaos controller wired to proxy's
// membership table.
func NewChaosController(proxy *Proxy, logger *zap.Logger) *ChaosController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChaosController{
		proxy:  proxy,
		logger: logger,
		cfg:    DefaultChaosConfig(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the chaos loop with cfg, or returns an error if already
// running.
func (c *ChaosController) Start(cfg ChaosConfig) error {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return apierr.Conflictf("chaos controller already running")
	}
	if cfg.MinIntervalSeconds <= 0 || cfg.MaxIntervalSeconds < cfg.MinIntervalSeconds {
		c.mu.Unlock()
		return apierr.BadRequestf("invalid chaos interval bounds")
	}
	if cfg.MinSurvivingNodes < 0 {
		c.mu.Unlock()
		return apierr.BadRequestf("min_surviving_nodes must be >= 0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cfg = cfg
	c.enabled = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.loop(ctx)
	c.logger.Info("chaos controller started",
		zap.Int("min_interval_seconds", cfg.MinIntervalSeconds),
		zap.Int("max_interval_seconds", cfg.MaxIntervalSeconds),
		zap.Int("min_surviving_nodes", cfg.MinSurvivingNodes))
	return nil
}

// Stop halts the chaos loop, if running, and waits for it to exit.
func (c *ChaosController) Stop() error {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return apierr.Conflictf("chaos controller is not running")
	}
	cancel := c.cancel
	done := c.done
	c.enabled = false
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("chaos controller stopped")
	return nil
}

// Status returns a snapshot of the controller's current state.
func (c *ChaosController) Status() ChaosStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChaosStatus{
		Enabled:            c.enabled,
		MinIntervalSeconds: c.cfg.MinIntervalSeconds,
		MaxIntervalSeconds: c.cfg.MaxIntervalSeconds,
		MinSurvivingNodes:  c.cfg.MinSurvivingNodes,
		TotalTerminations:  c.totalTerminations,
		LastTerminatedNode: c.lastTerminatedNode,
		LastTerminationAt:  c.lastTerminationAt,
	}
}

func (c *ChaosController) loop(ctx context.Context) {
	defer close(c.done)

	for {
		wait := c.nextInterval()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := c.terminateRandomNode(ctx); err != nil {
			c.logger.Debug("chaos tick skipped", zap.Error(err))
		}
	}
}

func (c *ChaosController) nextInterval() time.Duration {
	c.mu.Lock()
	lo, hi := c.cfg.MinIntervalSeconds, c.cfg.MaxIntervalSeconds
	c.mu.Unlock()
	if hi <= lo {
		return time.Duration(lo) * time.Second
	}
	span := c.rng.Intn(hi-lo+1) + lo
	return time.Duration(span) * time.Second
}

// terminateRandomNode picks a uniformly random registered node (one already
// killed but not yet pruned can be picked again) and issues a shutdown,
// skipping the tick entirely if too few nodes are registered.
func (c *ChaosController) terminateRandomNode(ctx context.Context) error {
	c.mu.Lock()
	minSurviving := c.cfg.MinSurvivingNodes
	c.mu.Unlock()

	members := c.proxy.Membership.All()
	if len(members) <= minSurviving {
		return fmt.Errorf("only %d node(s) registered, min_surviving_nodes=%d", len(members), minSurviving)
	}

	target := members[c.rng.Intn(len(members))]

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.shutdownNode(callCtx, target); err != nil {
		return fmt.Errorf("shutdown request to %s failed: %w", target.ID, err)
	}

	// Deliberately not removed from membership here: the health monitor
	// prunes it on its next failed probe (C7), so routing can briefly
	// target a dead node after a chaos kill.
	c.mu.Lock()
	c.totalTerminations++
	c.lastTerminatedNode = target.ID
	c.lastTerminationAt = time.Now()
	c.mu.Unlock()

	metrics.RecordChaosTermination()
	c.logger.Warn("chaos terminated node", zap.String("node_id", target.ID))
	return nil
}

func (c *ChaosController) shutdownNode(ctx context.Context, node cluster.NodeDescriptor) error {
	return cluster.PostJSON(ctx, node.Addr()+"/control/shutdown", nil, nil)
}
