package coordinator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"go.uber.org/zap"

	"github.com/preettrank53/DistributedCache/internal/apierr"
	"github.com/preettrank53/DistributedCache/internal/cluster"
	"github.com/preettrank53/DistributedCache/internal/metrics"
)

// metricsMiddleware records the duration of every request under its matched
// chi route pattern, so /metrics reports per-route latency instead of one
// global histogram.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.RecordRequest(pattern, r.Method, time.Since(start))
	})
}

// decodeJSON decodes the request body into dest, tolerating an empty body
// (left at its zero value) so handlers that accept optional payloads do not
// need special-casing.
func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dest)
}

// Server is the proxy's HTTP surface (C6's client-facing routes plus C9's
// observability routes and the supplemented chaos/partition endpoints).
type Server struct {
	proxy  *Proxy
	logger *zap.Logger
	render *render.Render
}

// NewServer builds a chi.Mux wired to every proxy route.
func NewServer(proxy *Proxy, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{proxy: proxy, logger: logger, render: render.New()}

	mux := chi.NewRouter()
	mux.Use(chimiddleware.Recoverer)
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.Logger)
	mux.Use(metricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	mux.Post("/data", s.handlePut)
	mux.Get("/data/{key}", s.handleGet)
	mux.Delete("/data/{key}", s.handleDelete)

	mux.Post("/cluster/add-node", s.handleAddNode)
	mux.Delete("/cluster/remove-node/{port}", s.handleRemoveNode)
	mux.Get("/cluster/map", s.handleClusterMap)
	mux.Get("/cluster/stats", s.handleClusterStats)

	mux.Post("/partition/create", s.handlePartitionCreate)
	mux.Post("/partition/remove", s.handlePartitionRemove)
	mux.Post("/partition/clear", s.handlePartitionClear)
	mux.Get("/partition/list", s.handlePartitionList)

	mux.Post("/chaos/start", s.handleChaosStart)
	mux.Post("/chaos/stop", s.handleChaosStop)
	mux.Get("/chaos/status", s.handleChaosStatus)

	mux.Get("/stats/global", s.handleStatsGlobal)
	mux.Get("/debug/keys", s.handleDebugKeys)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Debug("request failed", zap.Error(err))
	_ = s.render.JSON(w, apierr.StatusCode(err), map[string]string{"error": apierr.Message(err)})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		TTL   *int64 `json:"ttl,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, apierr.BadRequestf("invalid request body: %v", err))
		return
	}
	if req.Key == "" {
		s.writeError(w, apierr.BadRequestf("key is required"))
		return
	}

	result, err := s.proxy.Put(r.Context(), req.Key, req.Value, req.TTL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]any{"nodes": result.Nodes})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	bypass := r.URL.Query().Get("bypass_cache") == "true"

	result, err := s.proxy.Get(r.Context(), key, bypass)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]any{"value": result.Value, "source": result.Source})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.proxy.Delete(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, apierr.BadRequestf("invalid request body: %v", err))
		return
	}
	if req.Host == "" || req.Port == 0 {
		s.writeError(w, apierr.BadRequestf("host and port are required"))
		return
	}

	s.proxy.Membership.Add(req.Host, req.Port)
	_ = s.render.JSON(w, http.StatusOK, s.ringSnapshot())
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		s.writeError(w, apierr.BadRequestf("invalid port: %v", err))
		return
	}
	if err := s.proxy.Membership.Remove(port); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) ringSnapshot() map[string]any {
	return map[string]any{"nodes": s.proxy.Ring.Snapshot()}
}

func (s *Server) handleClusterMap(w http.ResponseWriter, r *http.Request) {
	_ = s.render.JSON(w, http.StatusOK, s.ringSnapshot())
}

type nodeStatsEntry struct {
	ID    string `json:"id"`
	Stats any    `json:"stats"`
}

func (s *Server) handleClusterStats(w http.ResponseWriter, r *http.Request) {
	nodes := s.proxy.Membership.All()
	entries := make([]nodeStatsEntry, 0, len(nodes))
	for _, n := range nodes {
		var stats any
		if err := cluster.GetJSON(r.Context(), n.Addr()+"/cache/stats", &stats); err == nil {
			entries = append(entries, nodeStatsEntry{ID: n.ID, Stats: stats})
		} else {
			entries = append(entries, nodeStatsEntry{ID: n.ID, Stats: nil})
		}
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]any{
		"node_count": len(nodes),
		"nodes":      entries,
		"ring_size":  s.proxy.Ring.NodeCount(),
	})
}

func (s *Server) resolvePorts(r *http.Request) (string, string, error) {
	sourcePort, err := strconv.Atoi(r.URL.Query().Get("source_port"))
	if err != nil {
		return "", "", apierr.BadRequestf("invalid source_port")
	}
	targetPort, err := strconv.Atoi(r.URL.Query().Get("target_port"))
	if err != nil {
		return "", "", apierr.BadRequestf("invalid target_port")
	}
	source, ok := s.proxy.Membership.FindByPort(sourcePort)
	if !ok {
		return "", "", apierr.BadRequestf("no node registered on port %d", sourcePort)
	}
	target, ok := s.proxy.Membership.FindByPort(targetPort)
	if !ok {
		return "", "", apierr.BadRequestf("no node registered on port %d", targetPort)
	}
	return source.ID, target.ID, nil
}

func (s *Server) handlePartitionCreate(w http.ResponseWriter, r *http.Request) {
	source, target, err := s.resolvePorts(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.proxy.Partitions.Create(source, target); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"created": true})
}

func (s *Server) handlePartitionRemove(w http.ResponseWriter, r *http.Request) {
	source, target, err := s.resolvePorts(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.proxy.Partitions.Remove(source, target); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handlePartitionClear(w http.ResponseWriter, r *http.Request) {
	s.proxy.Partitions.Clear()
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handlePartitionList(w http.ResponseWriter, r *http.Request) {
	pairs := s.proxy.Partitions.List()
	_ = s.render.JSON(w, http.StatusOK, map[string]any{"partitions": pairs})
}

func (s *Server) handleChaosStart(w http.ResponseWriter, r *http.Request) {
	cfg := DefaultChaosConfig()
	var req struct {
		MinIntervalSeconds *int `json:"min_interval_seconds"`
		MaxIntervalSeconds *int `json:"max_interval_seconds"`
		MinSurvivingNodes  *int `json:"min_surviving_nodes"`
	}
	_ = decodeJSON(r, &req)
	if req.MinIntervalSeconds != nil {
		cfg.MinIntervalSeconds = *req.MinIntervalSeconds
	}
	if req.MaxIntervalSeconds != nil {
		cfg.MaxIntervalSeconds = *req.MaxIntervalSeconds
	}
	if req.MinSurvivingNodes != nil {
		cfg.MinSurvivingNodes = *req.MinSurvivingNodes
	}

	if err := s.proxy.Chaos.Start(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]string{"message": "chaos controller started"})
}

func (s *Server) handleChaosStop(w http.ResponseWriter, r *http.Request) {
	if err := s.proxy.Chaos.Stop(); err != nil {
		s.writeError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]string{"message": "chaos controller stopped"})
}

func (s *Server) handleChaosStatus(w http.ResponseWriter, r *http.Request) {
	status := s.proxy.Chaos.Status()
	_ = s.render.JSON(w, http.StatusOK, map[string]any{
		"enabled":             status.Enabled,
		"min_interval":        status.MinIntervalSeconds,
		"max_interval":        status.MaxIntervalSeconds,
		"min_surviving_nodes": status.MinSurvivingNodes,
		"current_node_count":  s.proxy.Membership.Count(),
	})
}

type nodeLoadEntry struct {
	Name string `json:"name"`
	Keys int    `json:"keys"`
}

type distributionEntry struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

func (s *Server) handleStatsGlobal(w http.ResponseWriter, r *http.Request) {
	nodes := s.proxy.Membership.All()
	nodeLoad := make([]nodeLoadEntry, 0, len(nodes))
	var totalHits, totalMisses uint64

	for _, n := range nodes {
		var stats struct {
			Hits        uint64 `json:"hits"`
			Misses      uint64 `json:"misses"`
			CurrentSize int    `json:"current_size"`
		}
		if err := cluster.GetJSON(r.Context(), n.Addr()+"/cache/stats", &stats); err == nil {
			nodeLoad = append(nodeLoad, nodeLoadEntry{Name: n.ID, Keys: stats.CurrentSize})
			totalHits += stats.Hits
			totalMisses += stats.Misses
		} else {
			nodeLoad = append(nodeLoad, nodeLoadEntry{Name: n.ID, Keys: 0})
		}
	}

	hitRate := 0.0
	if totalHits+totalMisses > 0 {
		hitRate = float64(totalHits) / float64(totalHits+totalMisses)
	}

	_ = s.render.JSON(w, http.StatusOK, map[string]any{
		"hit_rate":       hitRate,
		"total_requests": s.proxy.TotalRequests(),
		"node_load":      nodeLoad,
		"request_distribution": []distributionEntry{
			{Name: "Hits", Value: totalHits},
			{Name: "Misses", Value: totalMisses},
		},
	})
}

type debugKeyEntry struct {
	Key          string `json:"key"`
	Node         string `json:"node"`
	TTLRemaining *int   `json:"ttl_remaining_secs,omitempty"`
}

func (s *Server) handleDebugKeys(w http.ResponseWriter, r *http.Request) {
	nodes := s.proxy.Membership.All()
	var rows []debugKeyEntry

	for _, n := range nodes {
		var snapshot []struct {
			Key              string `json:"key"`
			TTLRemainingSecs *int   `json:"ttl_remaining_secs"`
		}
		if err := cluster.GetJSON(r.Context(), n.Addr()+"/cache/keys", &snapshot); err != nil {
			continue
		}
		for _, entry := range snapshot {
			rows = append(rows, debugKeyEntry{Key: entry.Key, Node: n.ID, TTLRemaining: entry.TTLRemainingSecs})
		}
	}

	_ = s.render.JSON(w, http.StatusOK, map[string]any{"keys": rows})
}
