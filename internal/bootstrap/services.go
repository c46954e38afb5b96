package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pricewise/catalog-ingest/config"
	"github.com/pricewise/catalog-ingest/internal/adapters/objectstore"
	"github.com/pricewise/catalog-ingest/internal/adapters/queue"
	"github.com/pricewise/catalog-ingest/internal/adapters/rates"
	"github.com/pricewise/catalog-ingest/internal/adapters/recovery"
	"github.com/pricewise/catalog-ingest/internal/data"
	"github.com/pricewise/catalog-ingest/internal/service/importer"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs     *data.JobRepo
	Products *data.ProductRepo
	Enqueuer *queue.Enqueuer
	Worker   *queue.Worker
	Recovery *recovery.Scanner
	Importer *importer.Importer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	Logger *slog.Logger
}

// NewServices wires repositories, adapters, and the import pipeline.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	jobRepo := data.NewJobRepo(deps.DB, data.JobRepoConfig{Logger: logger})
	productRepo := data.NewProductRepo(deps.DB, data.ProductRepoConfig{
		Logger:         logger,
		BaseCurrency:   cfg.Rates.BaseCurrency,
		PriceChunkSize: cfg.Importer.PriceChunkSize,
	})

	objects, err := objectstore.New(cfg.ObjectStore)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build object store: %w", err)
	}
	rateClient := rates.NewClient(cfg.Rates, rates.ClientOptions{})

	redisOpt := QueueRedisOpt(cfg.Redis)
	enqueuer := queue.NewEnqueuer(redisOpt, queue.EnqueuerOptions{
		Queue:  cfg.Importer.QueueName,
		Logger: logger,
	})

	imp, err := importer.New(importer.Options{
		Jobs:     jobRepo,
		Products: productRepo,
		Objects:  objects,
		Rates:    rateClient,
		Logger:   logger,
		Importer: cfg.Importer,
		Currency: cfg.Rates,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build importer: %w", err)
	}

	worker, err := queue.NewWorker(redisOpt, imp, queue.WorkerOptions{
		Queue:       cfg.Importer.QueueName,
		Concurrency: cfg.Importer.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build queue worker: %w", err)
	}

	scanner, err := recovery.New(recovery.Options{
		Jobs:     jobRepo,
		Enqueuer: enqueuer,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build recovery scanner: %w", err)
	}

	return ServiceContainer{
		Jobs:     jobRepo,
		Products: productRepo,
		Enqueuer: enqueuer,
		Worker:   worker,
		Recovery: scanner,
		Importer: imp,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. The recovery scan runs once before the worker starts so orphaned
// jobs are back on the queue by the time the worker begins consuming. This
// function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if cerr := cfg.Services.Enqueuer.Close(); cerr != nil {
			logger.Error("close queue client failed", "error", cerr)
		}
	}()

	if cfg.Config.IsRecoveryEnabled() {
		if err := cfg.Services.Recovery.Run(ctx); err != nil {
			return fmt.Errorf("recovery scan: %w", err)
		}
	}

	if !cfg.Config.IsWorkerEnabled() {
		logger.InfoContext(ctx, "worker disabled, exiting after recovery scan")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cfg.Services.Worker.Run(gctx)
	})

	logger.InfoContext(ctx, "queue worker started",
		"queue", cfg.Config.Importer.QueueName,
		"concurrency", cfg.Config.Importer.Concurrency)

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("services stopped")
	return nil
}
