package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memophor/synagraph/api"
	"github.com/memophor/synagraph/db"
	"github.com/memophor/synagraph/internal/capsule"
	"github.com/memophor/synagraph/internal/config"
	"github.com/memophor/synagraph/internal/dashboard"
	"github.com/memophor/synagraph/internal/database"
	"github.com/memophor/synagraph/internal/log"
	"github.com/memophor/synagraph/internal/observability"
	"github.com/memophor/synagraph/internal/outbox"
	"github.com/memophor/synagraph/internal/repository"
	"github.com/memophor/synagraph/internal/repository/memstore"
	"github.com/memophor/synagraph/internal/repository/postgres"
	"github.com/memophor/synagraph/internal/scedge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe is the composition root: it loads configuration, selects the
// storage backend, wires the core services, and runs the HTTP server plus
// the outbox dispatcher until interrupted.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{})
	logger.Info("starting synagraph", "version", AppVersion, "config", cfg)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.OTLP.Enabled {
		shutdown, traceErr := observability.SetupTracing(ctx, observability.Config{
			Endpoint:    cfg.OTLP.Endpoint,
			Environment: cfg.OTLP.Environment,
			ServiceName: cfg.OTLP.ServiceName,
		})
		if traceErr != nil {
			return fmt.Errorf("setting up tracing: %w", traceErr)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("trace flush failed", "error", err)
			}
		}()
	}

	repos, cleanup, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := capsule.NewService(repos, cfg.EventBus.Enabled, logger.With("component", "capsule"))
	dash := dashboard.New()
	bridge := scedge.NewBridge(cfg.Scedge.BaseURL)

	var wg sync.WaitGroup
	if cfg.EventBus.Enabled {
		dispatcher := outbox.NewDispatcher(
			repos.Outbox,
			repos.Bus,
			cfg.EventBus.Subject,
			cfg.Outbox.BatchSize,
			time.Duration(cfg.Outbox.IntervalSeconds)*time.Second,
			logger.With("component", "outbox"),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx)
		}()
		logger.Info("outbox dispatcher started", "subject", cfg.EventBus.Subject)
	}

	server := api.NewServer(cfg, AppVersion, repos, svc, dash, bridge, logger.With("component", "api"))
	err = server.Run(ctx, cfg.HTTPAddr)

	cancel()
	wg.Wait()
	return err
}

// buildRepositories selects the storage backend. A configured database URL
// means Postgres with migrations applied; otherwise everything runs on the
// in-process store.
func buildRepositories(ctx context.Context, cfg *config.Config, logger log.Logger) (repository.Bundle, func(), error) {
	if !cfg.UsePostgres() {
		logger.Info("using in-memory storage backend")
		return memstore.NewBundle(), func() {}, nil
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return repository.Bundle{}, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return repository.Bundle{}, nil, fmt.Errorf("opening database: %w", err)
	}

	logger.Info("using postgres storage backend", "host", cfg.PostgresHost, "db", cfg.PostgresDBName)
	return postgres.NewBundle(pool, memstore.NewCache(), memstore.NewBus()), pool.Close, nil
}
