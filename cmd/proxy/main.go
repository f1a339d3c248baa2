// Command proxy runs the coordinator process (C4, C6, C7, C8, C9): request
// routing, replica fan-out, membership and liveness, chaos, and the
// observability surface, fronting a durable backing store (C2).
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

	"github.com/preettrank53/DistributedCache/internal/backingstore"
	"github.com/preettrank53/DistributedCache/internal/config"
	"github.com/preettrank53/DistributedCache/internal/coordinator"
	"github.com/preettrank53/DistributedCache/internal/logging"
)

func main() {
	cfg, err := config.LoadProxyConfig()
	if err != nil {
		panic(err)
	}

	host := flag.String("host", cfg.Host, "listen host")
	port := flag.Int("port", cfg.Port, "listen port")
	dbPath := flag.String("db", cfg.DBPath, "backing store file path")
	flag.Parse()
	cfg.Host, cfg.Port, cfg.DBPath = *host, *port, *dbPath

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.New(os.Getenv("PROXY_DEBUG") == "true")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	store, err := backingstore.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open backing store", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	proxyCfg := coordinator.Config{
		ReplicationFactor:   cfg.ReplicationFactor,
		HTTPTimeoutPerCall:  cfg.HTTPTimeout,
		BackingStorePath:    cfg.DBPath,
		HealthCheckPeriod:   cfg.HealthCheckPeriod,
		VirtualNodesPerNode: cfg.VirtualNodes,
	}
	proxy := coordinator.NewProxy(proxyCfg, store, logger)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	defer cancelHealth()
	go proxy.StartHealthMonitor(healthCtx)

	handler := coordinator.NewServer(proxy, logger)

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxy listening",
			zap.String("addr", addr),
			zap.Int("replication_factor", cfg.ReplicationFactor),
			zap.String("db_path", cfg.DBPath))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("listen failed", zap.Error(err))
		os.Exit(1)
	}

	if proxy.Chaos.Status().Enabled {
		_ = proxy.Chaos.Stop()
	}
	cancelHealth()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("proxy stopped")
}
