// Package dashboard projects shop-wide metrics from a read-only snapshot.
package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/repairs"
)

const (
	// LowStockThreshold marks items at or below this stock as low.
	LowStockThreshold int64 = 2
	// TopItemsLimit bounds the revenue ranking.
	TopItemsLimit = 5
	// RecentRepairsLimit bounds the recent ticket list.
	RecentRepairsLimit = 5
)

// TopItem is one revenue ranking row grouped by item name.
type TopItem struct {
	Name    string          `json:"item_name"`
	Revenue decimal.Decimal `json:"value"`
}

// Summary is the dashboard payload.
type Summary struct {
	TotalSales     decimal.Decimal  `json:"total_sales"`
	InventoryValue decimal.Decimal  `json:"inventory_value"`
	NetProfit      decimal.Decimal  `json:"net_profit"`
	ActiveRepairs  int64            `json:"active_repairs"`
	LowStockCount  int64            `json:"low_stock_count"`
	LowStockItems  []inventory.Item `json:"low_stock_items"`
	TopItems       []TopItem        `json:"top_items"`
	RecentRepairs  []repairs.Ticket `json:"recent_repairs"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// SnapshotReader answers the aggregate queries against one consistent snapshot.
type SnapshotReader interface {
	SalesTotals(ctx context.Context) (total, profit decimal.Decimal, err error)
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
	CountActiveRepairs(ctx context.Context) (int64, error)
	LowStockItems(ctx context.Context, threshold int64) ([]inventory.Item, error)
	TopItemsByRevenue(ctx context.Context, limit int) ([]TopItem, error)
	RecentRepairs(ctx context.Context, limit int) ([]repairs.Ticket, error)
}

// RepositoryPort opens read-only snapshots.
type RepositoryPort interface {
	WithSnapshot(ctx context.Context, fn func(context.Context, SnapshotReader) error) error
}
