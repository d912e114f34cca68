package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/repairs"
)

// Repository reads dashboard aggregates from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithSnapshot runs fn inside a read-only repeatable-read transaction.
func (r *Repository) WithSnapshot(ctx context.Context, fn func(context.Context, SnapshotReader) error) error {
	return db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, snapshot{tx: tx})
	})
}

type snapshot struct {
	tx pgx.Tx
}

func (s snapshot) SalesTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var total, profit decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0), COALESCE(SUM(profit), 0) FROM sales`).Scan(&total, &profit)
	return total, profit, err
}

func (s snapshot) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(price * stock), 0) FROM items`).Scan(&value)
	return value, err
}

func (s snapshot) CountActiveRepairs(ctx context.Context) (int64, error) {
	var n int64
	err := s.tx.QueryRow(ctx, `SELECT COUNT(*) FROM repair_tickets WHERE status NOT IN ($1, $2)`,
		string(repairs.StatusDone), string(repairs.StatusDelivered)).Scan(&n)
	return n, err
}

func (s snapshot) LowStockItems(ctx context.Context, threshold int64) ([]inventory.Item, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, name, category, stock, cost_price, price, created_at
FROM items WHERE stock <= $1 ORDER BY stock, id`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []inventory.Item
	for rows.Next() {
		var it inventory.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Stock, &it.CostPrice, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s snapshot) TopItemsByRevenue(ctx context.Context, limit int) ([]TopItem, error) {
	rows, err := s.tx.Query(ctx, `SELECT i.name, SUM(s.total_price) AS value
FROM sales s JOIN items i ON i.id = s.item_id
GROUP BY i.name ORDER BY value DESC, i.name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopItem
	for rows.Next() {
		var t TopItem
		if err := rows.Scan(&t.Name, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s snapshot) RecentRepairs(ctx context.Context, limit int) ([]repairs.Ticket, error) {
	return repairs.ListNewest(ctx, s.tx, limit, 0)
}
