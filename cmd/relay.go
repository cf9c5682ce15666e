package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/pagerelay/internal/bus"
	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/internal/dispatch"
	"github.com/nextlevelbuilder/pagerelay/internal/gateway"
	"github.com/nextlevelbuilder/pagerelay/internal/sender"
	"github.com/nextlevelbuilder/pagerelay/internal/sweep"
	"github.com/nextlevelbuilder/pagerelay/internal/thread"
	"github.com/nextlevelbuilder/pagerelay/internal/tracing"
	"github.com/nextlevelbuilder/pagerelay/internal/webhook"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

func runRelay() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Load config
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (no-op unless telemetry is enabled)
	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without traces", "error", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		shutdownTracing(flushCtx)
	}()

	// Thread-control store
	threads, err := thread.NewStore(cfg.Store)
	if err != nil {
		slog.Error("failed to open thread store", "error", err, "mode", cfg.Store.Mode)
		os.Exit(1)
	}
	defer threads.Close()

	// Core components
	msgBus := bus.New()
	engine := dispatch.NewEngine(threads, msgBus, msgBus, cfg)
	hook := webhook.NewHandler(cfg, engine, msgBus)

	graphOpts := []sender.GraphOption{}
	if cfg.Platform.SendRatePerSec > 0 {
		graphOpts = append(graphOpts, sender.WithSendRate(cfg.Platform.SendRatePerSec, cfg.Platform.SendBurst))
	}
	graph := sender.NewGraphClient(cfg.Platform.GraphBaseURL, cfg.Platform.APIVersion, cfg.Platform.AccessToken, graphOpts...)
	dispatcher := sender.NewDispatcher(graph, msgBus, msgBus)

	server := gateway.NewServer(cfg, msgBus, threads, hook)

	// TTL eviction sweeper (disabled when ttl <= 0)
	sweeper, err := sweep.New(threads, cfg.Control.SweepSchedule, time.Duration(cfg.Control.ThreadTTLHours)*time.Hour)
	if err != nil {
		slog.Error("invalid sweep schedule", "error", err, "schedule", cfg.Control.SweepSchedule)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	slog.Info("pagerelay starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"store", cfg.Store.Mode,
		"graph", cfg.Platform.GraphBaseURL,
	)

	// Tailscale listener: build the mux first, then pass it to InitTailscale
	// so the same routes are served on both the main listener and Tailscale.
	// Compiled via build tags: `go build -tags tsnet` to enable.
	mux := server.BuildMux()
	if tsCleanup := gateway.InitTailscale(ctx, cfg, mux); tsCleanup != nil {
		defer tsCleanup()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	// Hot reload of handoff phrases and reply prefix. Watch blocks until
	// shutdown; a watch failure only disables reload, never the relay.
	g.Go(func() error {
		if err := config.Watch(gctx, cfgPath, cfg); err != nil {
			slog.Warn("config watch disabled", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("relay error", "error", err)
		os.Exit(1)
	}
}
