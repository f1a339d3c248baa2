// Package nodeserver implements the cache-node HTTP surface (C3): a thin
// chi-routed layer translating requests into internal/cacheengine calls.
package nodeserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/render"
	"go.uber.org/zap"

	"github.com/preettrank53/DistributedCache/internal/apierr"
	"github.com/preettrank53/DistributedCache/internal/cacheengine"
)

// decodeJSON decodes the request body into dest, tolerating an empty body.
func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dest)
}

// Server wraps a cacheengine.Engine with the node's HTTP surface and the
// /control/shutdown capability the proxy's chaos controller relies on.
type Server struct {
	engine *cacheengine.Engine
	logger *zap.Logger
	render *render.Render
	port   int

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New builds a Server over engine. port is reported by /health for
// convenience when several nodes share log output.
func New(engine *cacheengine.Engine, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		logger:     logger,
		render:     render.New(),
		port:       port,
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested returns a channel closed exactly once, the first time a
// client calls POST /control/shutdown.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

// Handler builds the chi.Mux serving every route in the node's HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(chimiddleware.Recoverer)

	mux.Get("/health", s.handleHealth)

	mux.Route("/cache", func(r chi.Router) {
		r.Post("/", s.handlePut)
		r.Get("/stats", s.handleStats)
		r.Get("/keys", s.handleKeys)
		r.Post("/clear", s.handleClear)
		r.Get("/{key}", s.handleGet)
		r.Delete("/{key}", s.handleDelete)
	})

	mux.Route("/control", func(r chi.Router) {
		r.Post("/shutdown", s.handleShutdown)
	})

	return mux
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Debug("request failed", zap.Error(err))
	_ = s.render.JSON(w, apierr.StatusCode(err), map[string]string{"error": apierr.Message(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = s.render.JSON(w, http.StatusOK, map[string]any{"status": "ok", "port": s.port})
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

	ttl := secondsToDuration(req.TTL)
	if err := s.engine.Put(req.Key, req.Value, ttl); err != nil {
		s.writeError(w, apierr.Unavailablef("engine shut down"))
		return
	}
	_ = s.render.JSON(w, http.StatusCreated, map[string]bool{"stored": true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok := s.engine.Get(key)
	if !ok {
		s.writeError(w, apierr.NotFoundf("key %q not found", key))
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]any{"value": value, "hit": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	deleted := s.engine.Delete(key)
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_ = s.render.JSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	_ = s.render.JSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	_ = s.render.JSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// handleShutdown acknowledges the request before signalling shutdown, so the
// caller (the chaos controller or an operator) always observes the 202
// before the process begins tearing down.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	_ = s.render.JSON(w, http.StatusAccepted, map[string]string{"message": "shutting down"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	s.shutdownOnce.Do(func() {
		s.logger.Warn("shutdown requested via /control/shutdown")
		close(s.shutdownCh)
	})
}

func secondsToDuration(ttl *int64) time.Duration {
	if ttl == nil {
		return 0
	}
	return time.Duration(*ttl) * time.Second
}
