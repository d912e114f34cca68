package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/db"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const saleColumns = `s.id, s.item_id, i.name, i.category, s.quantity, s.unit_price, s.total_price, s.sale_type,
s.payment_method, s.imei_number, s.customer_name, s.customer_phone, s.profit, s.sale_date`

// Repository persists sales in PostgreSQL.
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

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := t.Tx().QueryRow(ctx, `INSERT INTO sales (item_id, quantity, unit_price, total_price, sale_type, payment_method,
imei_number, customer_name, customer_phone, profit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, sale_date`,
		sale.ItemID, sale.Quantity, sale.UnitPrice, sale.TotalPrice, string(sale.SaleType), string(sale.PaymentMethod),
		sale.IMEINumber, sale.CustomerName, sale.CustomerPhone, sale.Profit).Scan(&sale.ID, &sale.SaleDate)
	return sale, err
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(t.Tx().QueryRow(ctx, `SELECT `+saleColumns+`
FROM sales s JOIN items i ON i.id = s.item_id WHERE s.id = $1 FOR UPDATE OF s`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return sale, err
}

func (t *txRepo) DeleteSale(ctx context.Context, id int64) error {
	tag, err := t.Tx().Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// GetSale loads one sale with its item name and category.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+`
FROM sales s JOIN items i ON i.id = s.item_id WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return sale, err
}

// ListSales lists sales in the requested order.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales s JOIN items i ON i.id = s.item_id ORDER BY s.%s LIMIT $1 OFFSET $2`,
		saleColumns, filter.Ordering.SQL("s.id"))
	rows, err := r.pool.Query(ctx, query, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		sale     Sale
		saleType string
		payment  string
	)
	err := row.Scan(&sale.ID, &sale.ItemID, &sale.ItemName, &sale.ItemCategory, &sale.Quantity, &sale.UnitPrice,
		&sale.TotalPrice, &saleType, &payment, &sale.IMEINumber, &sale.CustomerName, &sale.CustomerPhone,
		&sale.Profit, &sale.SaleDate)
	sale.SaleType = SaleType(saleType)
	sale.PaymentMethod = shared.PaymentMethod(payment)
	return sale, err
}
