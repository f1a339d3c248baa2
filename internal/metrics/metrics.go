// Package metrics exposes Prometheus counters and histograms for the proxy,
// modeled on the vaultaire example's internal/gateway/metrics/collector.go.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distcache_proxy_cache_hits_total",
		Help: "Total number of reads served from a cache node.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distcache_proxy_cache_misses_total",
		Help: "Total number of reads that fell through to the backing store.",
	})

	replicaWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "distcache_proxy_replica_writes_total",
		Help: "Replica write attempts, labeled by outcome.",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distcache_proxy_request_duration_seconds",
		Help:    "Proxy HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	healthTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "distcache_proxy_health_transitions_total",
		Help: "Node health status transitions, labeled by the new status.",
	}, []string{"status"})

	chaosTerminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distcache_proxy_chaos_terminations_total",
		Help: "Total number of nodes terminated by the chaos controller.",
	})
)

// RecordCacheHit records a read served from a cache node.
func RecordCacheHit() { cacheHits.Inc() }

// RecordCacheMiss records a read that fell through to the backing store.
func RecordCacheMiss() { cacheMisses.Inc() }

// RecordReplicaWrite records a single replica's write outcome ("ok" or "failed").
func RecordReplicaWrite(outcome string) { replicaWrites.WithLabelValues(outcome).Inc() }

// RecordRequest records the duration of a proxy HTTP request.
func RecordRequest(route, method string, d time.Duration) {
	requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RecordHealthTransition records a node health status change.
func RecordHealthTransition(status string) { healthTransitions.WithLabelValues(status).Inc() }

// RecordChaosTermination records a chaos-controller node kill.
func RecordChaosTermination() { chaosTerminations.Inc() }
