// Command reliabilityd runs the error-budget platform: it migrates the
// database, starts the periodic computation coordinator, and serves the
// HTTP API until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/alerting"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/apiserver"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/burnrate"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/coordinator"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/dashboard"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/forecast"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/ingest"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/narrative"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/releasegate"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/simulator"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/sloengine"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

const (
	seedChaosLevel      = 0.2
	seedIntervalSeconds = 60
	seedWorkers         = 4
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	seedHours := flag.Int("seed-hours", 0, "ingest this many hours of simulated history before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting reliability platform",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// The cache is an accelerator; a dead Redis costs read latency, not
	// startup.
	var cache *storage.SnapshotCache
	if cfg.Redis.Enabled {
		cache, err = storage.NewSnapshotCache(ctx, cfg.Redis, cfg.Scheduler.Interval, logger)
		if err != nil {
			logger.Warn("Snapshot cache unavailable, serving reads from the engines", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close() //nolint:errcheck
		}
	}

	runtime := config.NewRuntime(cfg)
	metrics := telemetry.New()

	burn := burnrate.NewEngine(store, runtime, cfg.SLO.DefaultWindowDays, logger)
	slo := sloengine.NewEngine(store, cfg.SLO.DefaultWindowDays, logger)
	forecasts := forecast.NewEngine(store, burn, cfg.SLO.DefaultWindowDays, logger)

	var notifiers []alerting.Notifier
	if cfg.Alerts.SlackWebhookURL != "" {
		notifiers = append(notifiers, alerting.NewSlackNotifier(cfg.Alerts.SlackWebhookURL))
		logger.Info("Slack notifier enabled")
	}
	alerts := alerting.NewManager(store, forecasts, runtime, metrics, logger, notifiers...)

	// Blocked deployments surface as informational alerts, so the alert
	// manager doubles as the gate's notifier.
	gate := releasegate.NewGate(store, burn, forecasts, runtime, alerts, metrics, logger)
	ingester := ingest.NewIngester(store, cfg.SLO.MetricsRetentionDays, logger)
	narrator := narrative.NewGenerator(store, burn, forecasts, logger)
	dash := dashboard.New(store, slo, burn, forecasts, cache, logger)
	coord := coordinator.New(store, burn, alerts, dash, cache, metrics, cfg.Scheduler.Interval, logger)

	if *seedHours > 0 {
		if err := seedHistory(ctx, ingester, *seedHours, logger); err != nil {
			return fmt.Errorf("failed to seed history: %w", err)
		}
	}

	srv := apiserver.New(apiserver.Deps{
		App:       cfg.App,
		Store:     store,
		Ingest:    ingester,
		Burn:      burn,
		SLO:       slo,
		Forecast:  forecasts,
		Gate:      gate,
		Alerts:    alerts,
		Dashboard: dash,
		Narrative: narrator,
		Cache:     cache,
		Runtime:   runtime,
		Metrics:   metrics,
	}, cfg.HTTP, logger)

	if cfg.Scheduler.Enabled {
		coord.Start(ctx)
		defer coord.Stop()
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, runtime, logger)
		if err != nil {
			logger.Warn("Config hot-reload disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				watcher.Run(runCtx)
				return nil
			})
		}
	}
	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("Shutdown complete")
	return err
}

// seedHistory synthesizes a fleet history and pushes it through the regular
// ingestion path, one worker per service.
func seedHistory(ctx context.Context, ing *ingest.Ingester, hours int, logger *zap.Logger) error {
	sim := simulator.New(seedChaosLevel)
	snapshots := sim.GenerateHistorical(hours, seedIntervalSeconds)

	byService := map[string][]models.MetricSnapshot{}
	for _, snap := range snapshots {
		byService[snap.Service] = append(byService[snap.Service], snap)
	}

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for name, batch := range byService {
		name, batch := name, batch
		g.Go(func() error {
			result, err := ing.Ingest(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", name, err)
			}
			processed.Add(int64(result.Processed))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Seeded simulated history",
		zap.Int("hours", hours),
		zap.Int("services", len(byService)),
		zap.Int64("metrics", processed.Load()),
	)
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
