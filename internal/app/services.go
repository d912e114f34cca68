package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repairdesk/internal/audit"
	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/dashboard"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/cache"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
	"github.com/repairdesk/repairdesk/internal/shared"
)

// Auditor records audit entries.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyStore remembers client request keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Stores groups the repository implementations the services run on.
type Stores struct {
	Inventory   inventory.RepositoryPort
	Sales       sales.RepositoryPort
	Repairs     repairs.RepositoryPort
	Damage      damage.RepositoryPort
	Dashboard   dashboard.RepositoryPort
	Idempotency IdempotencyStore
	Audit       Auditor
	AuditTrail  audit.Repository
}

// PostgresStores builds every repository on pool.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Inventory:   inventory.NewRepository(pool),
		Sales:       sales.NewRepository(pool),
		Repairs:     repairs.NewRepository(pool),
		Damage:      damage.NewRepository(pool),
		Dashboard:   dashboard.NewRepository(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
		Audit:       shared.NewAuditLogger(pool),
		AuditTrail:  audit.NewRepository(pool),
	}
}

// MemoryStores builds every repository on an in-process store. Audit entries are
// kept in memory and mirrored to logger.
func MemoryStores(store *memstore.Store, logger *slog.Logger) Stores {
	trail := audit.NewMemoryLog(logger)
	return Stores{
		Inventory:   store.Inventory(),
		Sales:       store.Sales(),
		Repairs:     store.Repairs(),
		Damage:      store.Damage(),
		Dashboard:   store.Dashboard(),
		Idempotency: shared.NewMemoryIdempotencyStore(),
		Audit:       trail,
		AuditTrail:  trail,
	}
}

// Services holds the wired domain services.
type Services struct {
	Ledger      *inventory.Ledger
	Inventory   *inventory.Service
	Sales       *sales.Service
	Repairs     *repairs.Service
	Damage      *damage.Service
	Dashboard   *dashboard.Service
	Audit       *audit.Service
	Idempotency IdempotencyStore
}

// NewServices wires the services over stores. Every write service invalidates the
// dashboard cache after commit. c and metrics may be nil.
func NewServices(stores Stores, c *cache.Versioned, metrics inventory.LedgerMetrics, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	recorder := stores.Audit
	ledger := inventory.NewLedger(logger, metrics)
	dash := dashboard.NewService(stores.Dashboard, c, logger)
	return &Services{
		Ledger:      ledger,
		Inventory:   inventory.NewService(stores.Inventory, ledger, recorder, dash, logger),
		Sales:       sales.NewService(stores.Sales, ledger, recorder, stores.Idempotency, dash, logger),
		Repairs:     repairs.NewService(stores.Repairs, ledger, recorder, dash, logger),
		Damage:      damage.NewService(stores.Damage, ledger, recorder, dash, logger),
		Dashboard:   dash,
		Audit:       audit.NewService(stores.AuditTrail),
		Idempotency: stores.Idempotency,
	}
}
