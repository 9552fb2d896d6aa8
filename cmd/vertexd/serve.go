package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vertexledger/node/internal/buildinfo"
	"github.com/vertexledger/node/internal/config"
	"github.com/vertexledger/node/internal/gateway"
	"github.com/vertexledger/node/internal/mining"
	"github.com/vertexledger/node/internal/pubsub"
	"github.com/vertexledger/node/internal/ratelimit"
	"github.com/vertexledger/node/internal/reactor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the node's websocket gateway and mining request handler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting vertexd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level in config: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}
	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "max_pow_threads", cfg.MaxPoWThreads)

	loop := reactor.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	bus := pubsub.New(loop, logger)
	limiter := ratelimit.New(loop.Now)
	gw := gateway.New(cfg, loop, bus, limiter, nil, logger)

	var reg prometheus.Registerer
	if cfg.Prometheus.Enabled {
		reg = prometheus.NewRegistry()
	}
	loop.SubmitFromWorker(func() { gw.StartMetrics(nil, reg) })

	miningHandler := &mining.Handler{
		Pool:       mining.NewPool(cfg.MaxPoWThreads),
		Storage:    unimplementedStorage{},
		Tips:       unimplementedTipSelector{},
		Propagator: unimplementedPropagator{},
		Miner:      unimplementedMiner{},
		Bus:        bus,
		Loop:       loop,
		Logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	mux.Handle("/thin_wallet/send_tokens", miningHandler)
	if cfg.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.HandlerFor(reg.(*prometheus.Registry), promhttp.HandlerOpts{}))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("vertexd stopped")
	return nil
}
