// Package main runs the stage tracker API: it loads the profile named by
// APP_PROFILE, wires the store, trackers and HTTP layer with samber/do, and
// serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	adapthttp "github.com/jsamuelsen11/stage-tracker/internal/adapters/http"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/handlers"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/http/middleware"
	"github.com/jsamuelsen11/stage-tracker/internal/adapters/storage"
	"github.com/jsamuelsen11/stage-tracker/internal/app/templates"
	"github.com/jsamuelsen11/stage-tracker/internal/app/tracker"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/config"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/health"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/logging"
	"github.com/jsamuelsen11/stage-tracker/internal/platform/telemetry"
	"github.com/jsamuelsen11/stage-tracker/internal/ports"
)

const (
	telemetryFlushTimeout = 5 * time.Second
	readinessCacheTTL     = time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "stage-tracker: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		return errors.New("APP_PROFILE must name a config profile (local, dev, test or prod)")
	}
	cfg, err := config.Load(profile)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr).With(
		slog.String("service", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("version", cfg.App.Version),
	)

	otelp, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Identity{Env: cfg.App.Env, Version: cfg.App.Version})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()
		if err := otelp.Shutdown(flushCtx); err != nil {
			logger.Error("flushing telemetry", slog.Any("error", err))
		}
	}()

	injector := newContainer(cfg, logger, otelp.Metrics)

	server, err := do.Invoke[*adapthttp.Server](injector)
	if err != nil {
		return fmt.Errorf("wiring server: %w", err)
	}
	store := do.MustInvoke[*storage.Backend](injector)
	trackers := do.MustInvoke[*tracker.Service](injector)
	defer func() {
		// Trackers drop their feed subscriptions before the store closes.
		trackers.Close()
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.Any("error", err))
		}
	}()

	registry := do.MustInvoke[ports.HealthRegistry](injector)
	for _, c := range store.Checkers {
		registry.Register(c)
	}

	if err := server.Listen(); err != nil {
		return err
	}
	served := make(chan error, 1)
	go func() { served <- server.Start() }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", slog.Any("cause", context.Cause(ctx)))
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logger.Error("draining requests", slog.Any("error", err))
	}
	if err := <-served; err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newContainer registers the service graph. Providers are lazy; resolving
// the *adapthttp.Server builds everything it depends on.
func newContainer(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) *do.RootScope {
	i := do.New()

	do.Provide(i, func(do.Injector) (*storage.Backend, error) {
		return storage.Open(context.Background(), cfg, metrics, logger)
	})

	do.Provide(i, func(i do.Injector) (*tracker.Service, error) {
		store := do.MustInvoke[*storage.Backend](i)
		return tracker.NewService(store, store, logger,
			tracker.WithMaxConcurrency(cfg.Tracker.MaxConcurrency),
			tracker.WithWatchBuffer(cfg.Tracker.WatchBuffer),
			tracker.WithSeedDefaults(cfg.Store.SeedDefaults),
			tracker.WithMetrics(metrics),
		), nil
	})
	do.Provide(i, func(i do.Injector) (ports.TrackerService, error) {
		return do.MustInvoke[*tracker.Service](i), nil
	})

	do.Provide(i, func(i do.Injector) (ports.TemplateService, error) {
		return templates.NewManager(
			do.MustInvoke[*storage.Backend](i),
			do.MustInvoke[ports.TrackerService](i),
			logger,
			templates.WithMetrics(metrics),
		), nil
	})

	do.Provide(i, func(do.Injector) (ports.HealthRegistry, error) {
		return health.New(health.WithCacheTTL(readinessCacheTTL)), nil
	})

	do.Provide(i, func(i do.Injector) (nethttp.Handler, error) {
		trackers := do.MustInvoke[ports.TrackerService](i)
		tpl := do.MustInvoke[ports.TemplateService](i)
		live := do.MustInvoke[*tracker.Service](i)

		h := adapthttp.Handlers{
			Stages:     handlers.NewStageHandler(trackers, tpl),
			Tasks:      handlers.NewTaskHandler(trackers),
			StageTimer: handlers.NewStageTimerHandler(trackers),
			TaskTimer:  handlers.NewTaskTimerHandler(trackers),
			Templates:  handlers.NewTemplateHandler(tpl),
			Feed:       handlers.NewFeedHandler(trackers, handlers.WithAllowedOrigins(cfg.Server.AllowedOrigins)),
			Health: handlers.NewHealthHandler(do.MustInvoke[ports.HealthRegistry](i),
				handlers.WithLiveOwners(live.LiveOwners)),
		}
		return adapthttp.NewRouter(h,
			middleware.Recovery(logger),
			middleware.RequestIDs(),
			middleware.OpenTelemetry(metrics),
			middleware.Logging(logger),
			middleware.Timeout(cfg.Server.RequestTimeout),
		), nil
	})

	do.Provide(i, func(i do.Injector) (*adapthttp.Server, error) {
		return adapthttp.NewServer(cfg.Server, do.MustInvoke[nethttp.Handler](i), logger), nil
	})

	return i
}
