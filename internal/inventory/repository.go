package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const itemColumns = `id, name, category, stock, cost_price, price, created_at`

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	StockTx
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItemDetails(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
}

type txRepo struct {
	StockStore
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockStore: NewStockStore(tx)})
	})
}

// StockStore implements StockTx on a pgx transaction.
type StockStore struct {
	tx pgx.Tx
}

// NewStockStore wraps tx.
func NewStockStore(tx pgx.Tx) StockStore {
	return StockStore{tx: tx}
}

// Tx exposes the underlying transaction to embedding repositories.
func (s StockStore) Tx() pgx.Tx {
	return s.tx
}

// GetItem reads the item without locking it.
func (s StockStore) GetItem(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(s.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// GetItemForUpdate reads the item and takes its row lock.
func (s StockStore) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(s.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// UpdateItemStock persists a new stock value.
func (s StockStore) UpdateItemStock(ctx context.Context, id int64, stock int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE items SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertMovement appends a journal row.
func (s StockStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var refID *int64
	if m.RefID != 0 {
		refID = &m.RefID
	}
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, reason, delta, stock_before, stock_after, ref_module, ref_id, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		m.ItemID, string(m.Reason), m.Delta, m.StockBefore, m.StockAfter, m.RefModule, refID, m.Note).Scan(&id)
	return id, err
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO items (name, category, stock, cost_price, price)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		item.Name, item.Category, item.Stock, item.CostPrice, item.Price).Scan(&item.ID, &item.CreatedAt)
	return item, err
}

func (r *txRepo) UpdateItemDetails(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `UPDATE items SET name = $2, category = $3, cost_price = $4, price = $5 WHERE id = $1`,
		item.ID, item.Name, item.Category, item.CostPrice, item.Price)
	return err
}

func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetItem loads one item.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// ListItems lists the catalogue.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM items ORDER BY %s LIMIT $1 OFFSET $2`, itemColumns, filter.Ordering.SQL("id"))
	return r.queryItems(ctx, query, filter.Page.Limit(), filter.Page.Offset())
}

// ListLowStock returns items at or below threshold.
func (r *Repository) ListLowStock(ctx context.Context, threshold int64) ([]Item, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE stock <= $1 ORDER BY stock, id`, threshold)
}

// ListMovements returns the journal of one item, newest first.
func (r *Repository) ListMovements(ctx context.Context, itemID int64, page shared.Page) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, reason, delta, stock_before, stock_after, ref_module, COALESCE(ref_id, 0), note, created_at
FROM stock_movements WHERE item_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`, itemID, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var reason string
		if err := rows.Scan(&m.ID, &m.ItemID, &reason, &m.Delta, &m.StockBefore, &m.StockAfter, &m.RefModule, &m.RefID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Reason = MovementReason(reason)
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindStockDrift lists items whose stock differs from the sum of their movements.
func (r *Repository) FindStockDrift(ctx context.Context) ([]StockDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.name, i.stock, COALESCE(SUM(m.delta), 0)::BIGINT
FROM items i LEFT JOIN stock_movements m ON m.item_id = i.id
GROUP BY i.id, i.name, i.stock
HAVING i.stock <> COALESCE(SUM(m.delta), 0)
ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockDrift
	for rows.Next() {
		var d StockDrift
		if err := rows.Scan(&d.ItemID, &d.Name, &d.Stock, &d.Journal); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) queryItems(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Stock, &item.CostPrice, &item.Price, &item.CreatedAt)
	return item, err
}
