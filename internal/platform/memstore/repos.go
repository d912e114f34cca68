package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/dashboard"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
	"github.com/repairdesk/repairdesk/internal/shared"
)

// InventoryRepo implements inventory.RepositoryPort.
type InventoryRepo struct{ s *Store }

// SalesRepo implements sales.RepositoryPort.
type SalesRepo struct{ s *Store }

// RepairsRepo implements repairs.RepositoryPort.
type RepairsRepo struct{ s *Store }

// DamageRepo implements damage.RepositoryPort.
type DamageRepo struct{ s *Store }

// DashboardRepo implements dashboard.RepositoryPort.
type DashboardRepo struct{ s *Store }

var (
	_ inventory.RepositoryPort = (*InventoryRepo)(nil)
	_ sales.RepositoryPort     = (*SalesRepo)(nil)
	_ repairs.RepositoryPort   = (*RepairsRepo)(nil)
	_ damage.RepositoryPort    = (*DamageRepo)(nil)
	_ dashboard.RepositoryPort = (*DashboardRepo)(nil)
)

// Inventory returns the catalogue repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }

// Sales returns the sales repository.
func (s *Store) Sales() *SalesRepo { return &SalesRepo{s: s} }

// Repairs returns the repair ticket repository.
func (s *Store) Repairs() *RepairsRepo { return &RepairsRepo{s: s} }

// Damage returns the damage report repository.
func (s *Store) Damage() *DamageRepo { return &DamageRepo{s: s} }

// Dashboard returns the snapshot repository.
func (s *Store) Dashboard() *DashboardRepo { return &DashboardRepo{s: s} }

func (r *InventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r *InventoryRepo) GetItem(ctx context.Context, id int64) (inventory.Item, error) {
	var item inventory.Item
	err := r.s.read(ctx, func(st *state) error {
		var ok bool
		if item, ok = st.items[id]; !ok {
			return inventory.ErrItemNotFound
		}
		return nil
	})
	return item, err
}

func (r *InventoryRepo) ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, error) {
	var out []inventory.Item
	err := r.s.read(ctx, func(st *state) error {
		for _, item := range st.items {
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o := filter.Ordering
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		switch o.Field {
		case "price":
			c = a.Price.Cmp(b.Price)
		case "stock":
			c = cmpInt(a.Stock, b.Stock)
		case "name":
			c = cmpString(a.Name, b.Name)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmpInt(a.ID, b.ID)
		}
		return less(c, o.Desc)
	})
	return window(out, filter.Page.Limit(), filter.Page.Offset()), nil
}

func (r *InventoryRepo) ListLowStock(ctx context.Context, threshold int64) ([]inventory.Item, error) {
	var out []inventory.Item
	err := r.s.read(ctx, func(st *state) error {
		out = lowStock(st, threshold)
		return nil
	})
	return out, err
}

func (r *InventoryRepo) ListMovements(ctx context.Context, itemID int64, page shared.Page) ([]inventory.Movement, error) {
	var out []inventory.Movement
	err := r.s.read(ctx, func(st *state) error {
		for i := len(st.movements) - 1; i >= 0; i-- {
			if st.movements[i].ItemID == itemID {
				out = append(out, st.movements[i])
			}
		}
		return nil
	})
	return window(out, page.Limit(), page.Offset()), err
}

func (r *InventoryRepo) FindStockDrift(ctx context.Context) ([]inventory.StockDrift, error) {
	var out []inventory.StockDrift
	err := r.s.read(ctx, func(st *state) error {
		sums := make(map[int64]int64)
		for _, m := range st.movements {
			sums[m.ItemID] += m.Delta
		}
		for _, item := range st.items {
			if sums[item.ID] != item.Stock {
				out = append(out, inventory.StockDrift{ItemID: item.ID, Name: item.Name, Stock: item.Stock, Journal: sums[item.ID]})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, err
}

func (r *SalesRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r *SalesRepo) GetSale(ctx context.Context, id int64) (sales.Sale, error) {
	var sale sales.Sale
	err := r.s.read(ctx, func(st *state) error {
		stored, ok := st.sales[id]
		if !ok {
			return sales.ErrSaleNotFound
		}
		sale = withItem(st, stored)
		return nil
	})
	return sale, err
}

func (r *SalesRepo) ListSales(ctx context.Context, filter sales.ListFilter) ([]sales.Sale, error) {
	var out []sales.Sale
	err := r.s.read(ctx, func(st *state) error {
		for _, s := range st.sales {
			out = append(out, withItem(st, s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o := filter.Ordering
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		switch o.Field {
		case "total_price":
			c = a.TotalPrice.Cmp(b.TotalPrice)
		case "profit":
			c = a.Profit.Cmp(b.Profit)
		default:
			c = a.SaleDate.Compare(b.SaleDate)
		}
		if c == 0 {
			c = cmpInt(a.ID, b.ID)
		}
		return less(c, o.Desc)
	})
	return window(out, filter.Page.Limit(), filter.Page.Offset()), nil
}

func (r *RepairsRepo) WithTx(ctx context.Context, fn func(context.Context, repairs.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r *RepairsRepo) GetTicket(ctx context.Context, id int64) (repairs.Ticket, error) {
	var ticket repairs.Ticket
	err := r.s.read(ctx, func(st *state) error {
		stored, ok := st.tickets[id]
		if !ok {
			return repairs.ErrTicketNotFound
		}
		stored.Parts = st.partsOf(id)
		ticket = stored
		return nil
	})
	return ticket, err
}

func (r *RepairsRepo) ListTickets(ctx context.Context, page shared.Page) ([]repairs.Ticket, error) {
	var out []repairs.Ticket
	err := r.s.read(ctx, func(st *state) error {
		out = newestTickets(st, page.Limit(), page.Offset())
		return nil
	})
	return out, err
}

func (r *DamageRepo) WithTx(ctx context.Context, fn func(context.Context, damage.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r *DamageRepo) ListReports(ctx context.Context, page shared.Page) ([]damage.Report, error) {
	var out []damage.Report
	err := r.s.read(ctx, func(st *state) error {
		for _, d := range st.reports {
			d.ItemName = st.items[d.ItemID].Name
			out = append(out, d)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		c := out[i].ReportedAt.Compare(out[j].ReportedAt)
		if c == 0 {
			c = cmpInt(out[i].ID, out[j].ID)
		}
		return c > 0
	})
	return window(out, page.Limit(), page.Offset()), err
}

// WithSnapshot runs fn while holding the store lock, so every aggregate sees the same state.
func (r *DashboardRepo) WithSnapshot(ctx context.Context, fn func(context.Context, dashboard.SnapshotReader) error) error {
	return r.s.read(ctx, func(st *state) error {
		return fn(ctx, snapshot{st: st})
	})
}

type snapshot struct {
	st *state
}

func (s snapshot) SalesTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	total, profit := decimal.Zero, decimal.Zero
	for _, sale := range s.st.sales {
		total = total.Add(sale.TotalPrice)
		profit = profit.Add(sale.Profit)
	}
	return total, profit, nil
}

func (s snapshot) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	value := decimal.Zero
	for _, item := range s.st.items {
		value = value.Add(item.Price.Mul(decimal.NewFromInt(item.Stock)))
	}
	return value, nil
}

func (s snapshot) CountActiveRepairs(ctx context.Context) (int64, error) {
	var n int64
	for _, t := range s.st.tickets {
		if t.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (s snapshot) LowStockItems(ctx context.Context, threshold int64) ([]inventory.Item, error) {
	return lowStock(s.st, threshold), nil
}

func (s snapshot) TopItemsByRevenue(ctx context.Context, limit int) ([]dashboard.TopItem, error) {
	byName := make(map[string]decimal.Decimal)
	for _, sale := range s.st.sales {
		name := s.st.items[sale.ItemID].Name
		byName[name] = byName[name].Add(sale.TotalPrice)
	}
	out := make([]dashboard.TopItem, 0, len(byName))
	for name, revenue := range byName {
		out = append(out, dashboard.TopItem{Name: name, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return window(out, limit, 0), nil
}

func (s snapshot) RecentRepairs(ctx context.Context, limit int) ([]repairs.Ticket, error) {
	return newestTickets(s.st, limit, 0), nil
}

func lowStock(st *state, threshold int64) []inventory.Item {
	var out []inventory.Item
	for _, item := range st.items {
		if item.Stock <= threshold {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func newestTickets(st *state, limit, offset int) []repairs.Ticket {
	out := make([]repairs.Ticket, 0, len(st.tickets))
	for _, t := range st.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		c := out[i].CreatedAt.Compare(out[j].CreatedAt)
		if c == 0 {
			c = cmpInt(out[i].ID, out[j].ID)
		}
		return c > 0
	})
	out = window(out, limit, offset)
	for i := range out {
		out[i].Parts = st.partsOf(out[i].ID)
	}
	return out
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func less(c int, desc bool) bool {
	if desc {
		return c > 0
	}
	return c < 0
}
