package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/repairdesk/repairdesk/internal/observability"
	"github.com/repairdesk/repairdesk/internal/platform/cache"
	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
)

// Runtime holds the process-wide resources shared by the API and the worker.
type Runtime struct {
	Config   *Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Services *Services
}

// OpenRuntime connects the configured store and Redis and wires the services.
// A Redis outage only disables the dashboard cache.
func OpenRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	var stores Stores
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.PGDSN); err != nil {
				return nil, fmt.Errorf("app: migrate: %w", err)
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		stores = PostgresStores(pool)
	case StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		stores = MemoryStores(memstore.New(), logger)
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
	}
	rt.Redis = client
	dashboardCache := cache.NewVersioned(client, "dashboard", cfg.DashboardCacheTTL)

	rt.Services = NewServices(stores, dashboardCache, rt.Metrics, logger)
	return rt, nil
}

// Close releases the pool and the Redis client.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
