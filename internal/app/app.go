// Package app wires the market data engine, the ledger and the HTTP gateway
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"papertrade/config"
	"papertrade/internal/events"
	"papertrade/internal/gateway"
	"papertrade/internal/ledger"
	"papertrade/internal/market/adapter"
	"papertrade/internal/market/broadcast"
	"papertrade/internal/market/memorystore"
	"papertrade/internal/market/scheduler"
	"papertrade/pkg/quote"
	"papertrade/pkg/storage/postgres"
	redismirror "papertrade/pkg/storage/redis"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Quotes    *memorystore.MemoryQuoteStore
	Hub       *broadcast.Hub
	Scheduler *scheduler.Scheduler
	Ledger    *ledger.Service
	Gateway   *gateway.Server

	closers []func() error
}

// New builds every component. Optional backends (postgres, redis, kafka)
// are only connected when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	checks := map[string]gateway.HealthCheck{}

	// market data
	a.Quotes = memorystore.NewQuoteStore()
	a.Hub = broadcast.NewHub(a.Quotes, logger)
	emitters := []scheduler.Emitter{a.Hub}

	if cfg.Redis.Addr != "" {
		client, err := redismirror.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		emitters = append(emitters, redismirror.NewMirror(client, cfg.Redis.TTL, logger))
		checks["redis"] = func(ctx context.Context) bool { return client.Ping(ctx).Err() == nil }
		logger.Info("redis mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	restClient := quote.NewRESTClient(cfg.Provider.BaseURL, cfg.Provider.Timeout)
	fetcher := adapter.New(restClient, cfg.Market.Concurrency, cfg.Market.FetchTimeout, logger)
	a.Scheduler = scheduler.New(fetcher, a.Quotes, scheduler.NewMultiEmitter(logger, emitters...),
		cfg.Market.Symbols, cfg.Market.TickInterval, logger)

	// ledger
	var store ledger.Store
	switch cfg.App.Store {
	case "", "memory":
		store = ledger.NewMemoryStore()
	case "postgres":
		client, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		checks["postgres"] = client.IsHealthy
		store = client
	default:
		a.Close()
		return nil, fmt.Errorf("unknown ledger store %q", cfg.App.Store)
	}

	var notifier ledger.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		n := events.NewKafkaNotifier(events.NewKafkaWriter(cfg.Kafka))
		a.closers = append(a.closers, n.Close)
		notifier = n
		logger.Info("order events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	a.Ledger = ledger.NewService(store, a.Quotes, notifier, cfg.Market.Symbols, logger)

	a.Gateway = gateway.NewServer(gateway.Options{
		Ledger:      a.Ledger,
		Quotes:      a.Quotes,
		Stream:      broadcast.ServeWS(a.Hub, broadcast.NewUpgrader(), cfg.Broadcast, logger),
		Subscribers: a.Hub.Count,
		Auth:        cfg.Auth,
		StaleAfter:  cfg.Market.StaleAfter,
		Checks:      checks,
		Logger:      logger,
	})

	return a, nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.App.Addr,
		Handler:           a.Gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Scheduler.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		a.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases backend connections. Safe to call on a partially built App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
