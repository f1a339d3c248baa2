// Command cachenode runs a single cache-node process (C1 + C3): a
// capacity-bounded, recency-ordered, TTL-aware in-memory cache served over
// HTTP. Cache-node processes are started independently of the proxy; the
// proxy discovers them only via POST /cluster/add-node.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/preettrank53/DistributedCache/internal/cacheengine"
	"github.com/preettrank53/DistributedCache/internal/config"
	"github.com/preettrank53/DistributedCache/internal/logging"
	"github.com/preettrank53/DistributedCache/internal/nodeserver"
)

func main() {
	cfg, err := config.LoadNodeConfig()
	if err != nil {
		panic(err)
	}

	host := flag.String("host", cfg.Host, "listen host")
	port := flag.Int("port", cfg.Port, "listen port")
	capacity := flag.Int("capacity", cfg.Capacity, "maximum number of entries held by this node")
	flag.Parse()
	cfg.Host, cfg.Port, cfg.Capacity = *host, *port, *capacity

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.New(os.Getenv("CACHENODE_DEBUG") == "true")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	engine := cacheengine.New(cfg.Capacity, cfg.SweepInterval)
	defer engine.Close()

	srv := nodeserver.New(engine, cfg.Port, logger)

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cachenode listening", zap.String("addr", addr), zap.Int("capacity", cfg.Capacity))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-srv.ShutdownRequested():
		logger.Info("shutdown requested via control endpoint")
	case err := <-errCh:
		logger.Error("listen failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("cachenode stopped")
}
