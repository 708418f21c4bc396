package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"budgetsync/internal/config"
	"budgetsync/internal/domain"
	"budgetsync/internal/export"
	"budgetsync/internal/logging"
	"budgetsync/internal/metrics"
	"budgetsync/internal/netmon"
	"budgetsync/internal/remote"
	"budgetsync/internal/storage"
	"budgetsync/internal/sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	reportOnly := flag.Bool("report", false, "write a queue report and exit")
	flag.Parse()

	if err := run(*reportOnly); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(reportOnly bool) error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	monitor := netmon.NewProbe(
		netmon.DialProbe(cfg.Network.ProbeAddress, cfg.Network.ProbeTimeout()),
		cfg.Network.ProbeInterval(),
		logging.Component(&logger, "netmon"),
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	registry, err := buildRegistry(cfg, &logger)
	if err != nil {
		return err
	}

	engine, err := sync.New(ctx, sync.Deps{
		Store:    store,
		Monitor:  monitor,
		Registry: registry,
		Logger:   logging.Component(&logger, "engine"),
		Defaults: cfg.SyncConfig(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("engine initialization failed")
		return err
	}
	defer engine.Close()

	if reportOnly {
		return writeReport(cfg, engine, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Strs("entities", cfg.Remote.Entities).
		Msg("syncd started")

	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := logging.Component(baseLogger, "syncd-main")
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Storage.Backend == config.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			logger.Error().Err(err).Msg("create database directory")
			return err
		}
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create export directory")
		return err
	}
	return nil
}

// initStore picks the persistence backend. Redis is wrapped in a failover
// store backed by memory so a broker outage degrades durability instead of
// taking the queue down.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Storage.Path).Msg("open sqlite store")
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		client := storage.NewRedisClient(cfg.Redis)
		if err := storage.Ping(ctx, client); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, starting on fallback")
		}
		return storage.NewFailoverStore(storage.NewRedisStore(client), storage.NewMemoryStore(), logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildRegistry(cfg *config.Config, logger *zerolog.Logger) (*sync.Registry, error) {
	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is required")
	}
	if len(cfg.Remote.Entities) == 0 {
		return nil, fmt.Errorf("remote.entities must name at least one entity")
	}

	registry := sync.NewRegistry()
	clientLogger := logging.Component(logger, "remote")
	for _, entity := range cfg.Remote.Entities {
		if err := registry.Register(entity, remote.NewClient(cfg.Remote, entity, clientLogger)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		logger.Info().Int("port", port).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func writeReport(cfg *config.Config, engine *sync.Engine, logger *zerolog.Logger) error {
	reporter := export.NewReporter(cfg.Exports.Path, logging.Component(logger, "export"))
	path, err := reporter.WriteReport(engine.PendingActions(), engine.Status(), time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("write queue report")
		return err
	}
	fmt.Println(path)
	return nil
}
