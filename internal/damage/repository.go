package damage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/shared"
)

// Repository persists damage reports in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.StockStore
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockStore: inventory.NewStockStore(tx)})
	})
}

func (t *txRepo) InsertReport(ctx context.Context, report Report) (Report, error) {
	err := t.Tx().QueryRow(ctx, `INSERT INTO damaged_items (item_id, quantity, reason, deducted) VALUES ($1, $2, $3, $4)
RETURNING id, reported_at`, report.ItemID, report.Quantity, report.Reason, report.Deducted).Scan(&report.ID, &report.ReportedAt)
	return report, err
}

func (t *txRepo) SetDeducted(ctx context.Context, id int64, deducted bool) error {
	_, err := t.Tx().Exec(ctx, `UPDATE damaged_items SET deducted = $2 WHERE id = $1`, id, deducted)
	return err
}

// ListReports lists write-offs newest first.
func (r *Repository) ListReports(ctx context.Context, page shared.Page) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.item_id, i.name, d.quantity, d.reason, d.deducted, d.reported_at
FROM damaged_items d JOIN items i ON i.id = d.item_id
ORDER BY d.reported_at DESC, d.id DESC LIMIT $1 OFFSET $2`, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		var d Report
		if err := rows.Scan(&d.ID, &d.ItemID, &d.ItemName, &d.Quantity, &d.Reason, &d.Deducted, &d.ReportedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
