// Command runwayd serves the fine-tuning job API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	runway "github.com/inferent/runway"
	"github.com/inferent/runway/api"
	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/backoff"
	"github.com/inferent/runway/engine"
	"github.com/inferent/runway/id"
	"github.com/inferent/runway/middleware"
	"github.com/inferent/runway/service"
	"github.com/inferent/runway/store"
	"github.com/inferent/runway/store/dynamo"
	"github.com/inferent/runway/store/memory"
	"github.com/inferent/runway/store/postgres"
	storeredis "github.com/inferent/runway/store/redis"
	"github.com/inferent/runway/tune"
	"github.com/inferent/runway/worker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("runwayd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := runway.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	// The memory backend loses keys on restart, so seed a development key
	// to keep the API usable out of the box.
	if cfg.StoreBackend == "memory" {
		const devKey = "test-api-key"
		if err := st.PutKey(ctx, devKey, "dev@localhost"); err != nil {
			return fmt.Errorf("seed dev key: %w", err)
		}
		logger.Info("seeded development API key", slog.String("api_key", devKey))
	}

	gate := auth.NewKeyGate(st)
	eng := engine.New(st, logger)
	disp := worker.NewDispatcher(eng, logger,
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithShutdownTimeout(cfg.ShutdownTimeout),
		worker.WithTerminalRetry(backoff.DefaultStrategy(), 5),
		worker.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Metrics(),
		),
	)
	svc := service.New(gate, eng, disp, st, logger)
	runner := tune.NewRunner(cfg.TrainerCommand, logger)

	opts := []api.Option{api.WithLogger(logger)}
	if cfg.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	a := api.New(svc, st, runner, cfg.ModelsDir, id.NewAPIKey, opts...)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: a.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("runwayd listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("store", cfg.StoreBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	if err := disp.Stop(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown", slog.Any("error", err))
	}

	return nil
}

func openStore(ctx context.Context, cfg runway.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, cfg.PostgresURL, postgres.WithLogger(logger))
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storeredis.New(client, storeredis.WithLogger(logger)), nil
	case "dynamo":
		return dynamo.NewFromRegion(ctx, cfg.DynamoRegion, dynamo.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", runway.ErrNoStore, cfg.StoreBackend)
	}
}
