package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ucsindex/engine/internal/audit"
	"github.com/ucsindex/engine/internal/cache"
	"github.com/ucsindex/engine/internal/calendar"
	"github.com/ucsindex/engine/internal/config"
	"github.com/ucsindex/engine/internal/database"
	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/export"
	"github.com/ucsindex/engine/internal/quote"
	"github.com/ucsindex/engine/internal/recalc"
	"github.com/ucsindex/engine/internal/valuation"
	"github.com/ucsindex/engine/internal/webhook"
	"github.com/ucsindex/engine/internal/worker"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg      config.Config
	registry *dependency.Registry
	quotes   quote.Repository
	audits   audit.Repository
	holidays calendar.HolidaySource
	cache    cache.Cache
	locker   worker.Locker
	recalc   *recalc.Service
	closers  []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func newRuntime(ctx context.Context, cfg config.Config) (rt *runtime, err error) {
	rt = &runtime{cfg: cfg}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.registry, err = dependency.Load(ctx, cfg.RegistrySource)
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	slog.Info("registry loaded", "version", rt.registry.Version(), "assets", len(rt.registry.All()))

	if err := rt.openStore(ctx); err != nil {
		return nil, err
	}

	local := cache.NewQuoteCache(cfg.CacheTTL)
	rt.cache = local
	invalidators := cache.Multi{local}

	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		shared := cache.NewRedisCache(client, cfg.CacheTTL)
		rt.cache = shared
		rt.locker = redislock.New(client)
		invalidators = append(invalidators, shared)
	}

	if cfg.PubSubProject != "" && cfg.PubSubTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
		if err != nil {
			return nil, fmt.Errorf("creating pubsub client: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		invalidators = append(invalidators, cache.NewPubSubNotifier(client, cfg.PubSubTopic))
	}

	opts := []recalc.Option{recalc.WithInvalidator(invalidators)}
	if cfg.ExternalSyncEnabled() {
		opts = append(opts, recalc.WithSyncer(webhook.NewClient(cfg.WebhookURL, cfg.WebhookTimeout, cfg.WebhookRetryDelay, cfg.WebhookRetries)))
	} else {
		slog.Warn("WEBHOOK_URL not set, external sync disabled")
	}
	if cfg.SheetsEnabled() {
		writer, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		opts = append(opts, recalc.WithHooks(export.NewService(rt.registry, rt.quotes, writer)))
	}

	rt.recalc, err = recalc.NewService(rt.registry, valuation.DefaultCatalog(), rt.quotes, rt.audits, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating recalculation service: %w", err)
	}
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	if rt.cfg.Store == config.StoreMemory {
		slog.Warn("using in-memory store, data is lost on exit")
		rt.quotes = quote.NewMemoryRepository()
		rt.audits = audit.NewMemoryRepository()
		return nil
	}
	if rt.cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when STORE=postgres")
	}

	pool, err := database.Connect(ctx, rt.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	rt.usePostgres(pool)
	return nil
}

func (rt *runtime) usePostgres(pool *pgxpool.Pool) {
	rt.quotes = quote.NewPgRepository(pool, rt.cfg.TxMaxRetries, rt.cfg.TxRetryDelay)
	rt.audits = audit.NewPgRepository(pool)
	rt.holidays = calendar.NewPgHolidaySource(pool)
}
