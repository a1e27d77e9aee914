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

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"pat-settlement/internal/api"
	"pat-settlement/internal/config"
	"pat-settlement/internal/domain"
	"pat-settlement/internal/events"
	"pat-settlement/internal/settlement"
	"pat-settlement/internal/storage"
	chstore "pat-settlement/internal/storage/clickhouse"
	"pat-settlement/internal/storage/memory"
	"pat-settlement/internal/storage/migrations"
	pgstore "pat-settlement/internal/storage/postgres"
)

var (
	flagAddr    string
	flagStorage string
	flagMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&flagStorage, "storage", "", "memory or postgres (overrides storage.driver)")
	serveCmd.Flags().BoolVar(&flagMigrate, "migrate", true, "apply migrations before serving")
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = flagAddr
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Driver = flagStorage
	}
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer cleanup.run()

	store, err := openStore(ctx, cfg, &cleanup, logger)
	if err != nil {
		return err
	}

	dispatcher := events.NewDispatcher(logger.With("component", "events"), events.NewMetricsSink(cfg.Genesis.Decimals))

	if cfg.Analytics.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Analytics.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		cleanup.add(func() { _ = conn.Close() })
		dispatcher.Add(events.NewArchiveSink(chstore.NewEventArchive(conn)))
		logger.Info("event archive enabled", "component", "server")
	}

	if cfg.NATS.Enabled {
		nc, err := events.DialNATS(cfg.NATS.URL, "pat-settlement")
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		cleanup.add(func() { drainNATS(nc, logger) })
		dispatcher.Add(events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix))
		logger.Info("event bus enabled", "component", "server", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	var stream http.Handler
	if cfg.Stream.Enabled {
		hub := events.NewHub(&events.HubConfig{
			BufferSize:   cfg.Stream.BufferSize,
			WriteTimeout: cfg.Stream.WriteTimeout,
			PingInterval: cfg.Stream.PingInterval,
		}, logger)
		cleanup.add(hub.Close)
		dispatcher.Add(hub)
		stream = hub
	}

	engine := settlement.New(settlement.Options{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if cfg.Genesis.Auto {
		if err := autoGenesis(ctx, engine, cfg.Genesis, logger); err != nil {
			return err
		}
	}

	genesisOperator, err := cfg.Genesis.OperatorAddress()
	if err != nil {
		return err
	}
	srv := api.New(engine, api.Options{
		GenesisOperator: genesisOperator,
		SignatureWindow: cfg.Server.SignatureWindow,
		IdempotencyTTL:  cfg.Server.IdempotencyTTL,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		Stream:          stream,
		Logger:          logger,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "component", "server", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received", "component", "server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "component", "server", "error", err)
	}
	logger.Info("shutdown complete", "component", "server")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, cleanup *closers, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage; state is lost on exit", "component", "server")
		return memory.NewStateStore(), nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, poolOptions(cfg, logger)...)
	if err != nil {
		return nil, err
	}
	cleanup.add(pool.Close)

	if flagMigrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, err
		}
	}
	return pgstore.NewStateStore(pool), nil
}

func poolOptions(cfg *config.Config, logger *slog.Logger) []pgstore.PoolOption {
	opts := []pgstore.PoolOption{pgstore.WithMaxConns(cfg.Storage.MaxConns)}
	if cfg.Storage.LogQueries {
		opts = append(opts, pgstore.WithQueryLog(logger))
	}
	return opts
}

// autoGenesis initialises an empty store from config. An already
// initialised store is left as is.
func autoGenesis(ctx context.Context, engine *settlement.Engine, g config.GenesisConfig, logger *slog.Logger) error {
	params, operator, err := g.Params()
	if err != nil {
		return err
	}
	cfg, err := engine.Genesis(ctx, operator, params)
	switch {
	case errors.Is(err, domain.ErrAlreadyInitialized):
		logger.Info("genesis skipped: store already initialised", "component", "server")
		return nil
	case err != nil:
		return fmt.Errorf("genesis: %w", err)
	}
	logger.Info("genesis complete",
		"component", "server",
		"operator", cfg.Operator,
		"custody", cfg.Custody,
		"version", cfg.Version)
	return nil
}

func drainNATS(nc *nats.Conn, logger *slog.Logger) {
	if err := nc.Drain(); err != nil {
		logger.Warn("nats drain failed", "component", "server", "error", err)
		nc.Close()
	}
}
