package integration

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preettrank53/DistributedCache/internal/backingstore"
	"github.com/preettrank53/DistributedCache/internal/cacheengine"
	"github.com/preettrank53/DistributedCache/internal/coordinator"
	"github.com/preettrank53/DistributedCache/internal/nodeserver"
)

// testNode is an in-process cache node served by httptest, standing in for
// a separately-launched cmd/cachenode process. It mirrors cmd/cachenode's
// own shutdown wiring: a watcher goroutine closes the listener the first
// time the node's /control/shutdown fires, so a chaos-triggered kill
// actually takes the node offline in tests, the same as it would for a real
// process selecting on nodeserver.Server.ShutdownRequested().
type testNode struct {
	server    *httptest.Server
	engine    *cacheengine.Engine
	port      int
	closeOnce sync.Once
}

func (n *testNode) close() {
	n.closeOnce.Do(func() {
		n.server.Close()
		n.engine.Close()
	})
}

func newTestNode(t *testing.T, capacity int) *testNode {
	t.Helper()
	engine := cacheengine.New(capacity, 200*time.Millisecond)
	srv := nodeserver.New(engine, 0, nil)
	httpSrv := httptest.NewServer(srv.Handler())

	parts := strings.Split(strings.TrimPrefix(httpSrv.URL, "http://"), ":")
	port, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	node := &testNode{server: httpSrv, engine: engine, port: port}
	go func() {
		<-srv.ShutdownRequested()
		node.close()
	}()
	t.Cleanup(node.close)

	return node
}

func newTestCluster(t *testing.T, nodeCount, replicationFactor int) (*coordinator.Proxy, []*testNode) {
	return newTestClusterWithHealthPeriod(t, nodeCount, replicationFactor, 3*time.Second)
}

func newTestClusterWithHealthPeriod(t *testing.T, nodeCount, replicationFactor int, healthPeriod time.Duration) (*coordinator.Proxy, []*testNode) {
	t.Helper()
	store, err := backingstore.Open(t.TempDir() + "/db.json")
	require.NoError(t, err)

	cfg := coordinator.DefaultConfig()
	cfg.ReplicationFactor = replicationFactor
	cfg.VirtualNodesPerNode = 20
	cfg.HTTPTimeoutPerCall = 2 * time.Second
	cfg.HealthCheckPeriod = healthPeriod

	proxy := coordinator.NewProxy(cfg, store, nil)

	nodes := make([]*testNode, nodeCount)
	for i := 0; i < nodeCount; i++ {
		node := newTestNode(t, 1000)
		proxy.Membership.Add("127.0.0.1", node.port)
		nodes[i] = node
	}

	return proxy, nodes
}

// S1: basic write then read returns from cache.
func TestScenarioWriteThenRead(t *testing.T) {
	proxy, _ := newTestCluster(t, 3, 2)

	ttl := int64(20)
	putResult, err := proxy.Put(context.Background(), "u1", "alice", &ttl)
	require.NoError(t, err)
	assert.Len(t, putResult.Nodes, 2)

	getResult, err := proxy.Get(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "alice", getResult.Value)
	assert.Equal(t, "cache", getResult.Source)
}

// S6: bypassing the cache reads straight from the backing store.
func TestScenarioBypassCacheReadsFromStore(t *testing.T) {
	proxy, _ := newTestCluster(t, 2, 2)

	ttl := int64(60)
	_, err := proxy.Put(context.Background(), "k", "v", &ttl)
	require.NoError(t, err)

	getResult, err := proxy.Get(context.Background(), "k", true)
	require.NoError(t, err)
	assert.Equal(t, "v", getResult.Value)
	assert.Equal(t, "db", getResult.Source)
}

// S3: a declared partition excludes the secondary from the write fan-out
// without affecting reads on the primary or the secondary's direct
// visibility of its own state.
func TestScenarioPartitionExcludesSecondaryFromWrites(t *testing.T) {
	proxy, nodes := newTestCluster(t, 2, 2)

	replicas := proxy.Ring.Replicas("x", 2)
	require.Len(t, replicas, 2)

	var primaryPort, secondaryPort int
	for _, n := range nodes {
		id := "127.0.0.1:" + strconv.Itoa(n.port)
		if id == replicas[0] {
			primaryPort = n.port
		}
		if id == replicas[1] {
			secondaryPort = n.port
		}
	}
	require.NotZero(t, primaryPort)
	require.NotZero(t, secondaryPort)

	primaryID := "127.0.0.1:" + strconv.Itoa(primaryPort)
	secondaryID := "127.0.0.1:" + strconv.Itoa(secondaryPort)
	require.NoError(t, proxy.Partitions.Create(primaryID, secondaryID))

	ttl := int64(60)
	putResult, err := proxy.Put(context.Background(), "x", "v", &ttl)
	require.NoError(t, err)
	assert.NotContains(t, putResult.Nodes, secondaryID)
	assert.Contains(t, putResult.Skipped, secondaryID)

	_, hit := lookupNode(nodes, primaryPort).engine.Get("x")
	assert.True(t, hit, "primary should have the value")

	_, hit = lookupNode(nodes, secondaryPort).engine.Get("x")
	assert.False(t, hit, "secondary should not have the value due to the partition")
}

// Stopping the primary forces a read to fall through to the backing store
// (the fall-through half of S5).
func TestScenarioPrimaryDownFallsThroughToStore(t *testing.T) {
	proxy, nodes := newTestCluster(t, 2, 2)

	ttl := int64(60)
	_, err := proxy.Put(context.Background(), "k", "v", &ttl)
	require.NoError(t, err)

	replicas := proxy.Ring.Replicas("k", 1)
	require.Len(t, replicas, 1)
	primaryID := replicas[0]

	for _, n := range nodes {
		if "127.0.0.1:"+strconv.Itoa(n.port) == primaryID {
			n.server.Close()
		}
	}

	getResult, err := proxy.Get(context.Background(), "k", false)
	require.NoError(t, err)
	assert.Equal(t, "v", getResult.Value)
	assert.Equal(t, "db", getResult.Source)
}

func TestScenarioDeleteRemovesFromReplicasAndStore(t *testing.T) {
	proxy, _ := newTestCluster(t, 3, 2)

	ttl := int64(60)
	_, err := proxy.Put(context.Background(), "k", "v", &ttl)
	require.NoError(t, err)

	require.NoError(t, proxy.Delete(context.Background(), "k"))

	_, err = proxy.Get(context.Background(), "k", true)
	assert.Error(t, err, "expected not-found after delete")
}

// S5: a chaos termination is only reflected in membership once the health
// monitor's failed-probe detection prunes it (never immediately), and reads
// for keys whose primary was killed fall through to the backing store.
func TestScenarioChaosTerminationIsPrunedByHealthMonitor(t *testing.T) {
	proxy, _ := newTestClusterWithHealthPeriod(t, 4, 2, 100*time.Millisecond)

	ttl := int64(60)
	_, err := proxy.Put(context.Background(), "k", "v", &ttl)
	require.NoError(t, err)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go proxy.StartHealthMonitor(healthCtx)

	require.NoError(t, proxy.Chaos.Start(coordinator.ChaosConfig{
		MinIntervalSeconds: 0,
		MaxIntervalSeconds: 0,
		MinSurvivingNodes:  1,
	}))
	defer func() {
		if proxy.Chaos.Status().Enabled {
			_ = proxy.Chaos.Stop()
		}
	}()

	require.Eventually(t, func() bool {
		return proxy.Chaos.Status().TotalTerminations >= 1
	}, 2*time.Second, 10*time.Millisecond, "expected chaos to terminate a node")

	require.Eventually(t, func() bool {
		return proxy.Membership.Count() == 3
	}, 3*time.Second, 20*time.Millisecond, "expected the health monitor to prune the killed node")

	getResult, err := proxy.Get(context.Background(), "k", false)
	require.NoError(t, err)
	assert.Equal(t, "v", getResult.Value)
}

func lookupNode(nodes []*testNode, port int) *testNode {
	for _, n := range nodes {
		if n.port == port {
			return n
		}
	}
	return nil
}
