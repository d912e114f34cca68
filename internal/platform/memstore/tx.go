package memstore

import (
	"context"
	"time"

	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
)

// tx implements the transactional repository of every write module on a working copy.
type tx struct {
	st  *state
	now func() time.Time
}

var (
	_ inventory.TxRepository = (*tx)(nil)
	_ sales.TxRepository     = (*tx)(nil)
	_ repairs.TxRepository   = (*tx)(nil)
	_ damage.TxRepository    = (*tx)(nil)
)

func (t *tx) GetItem(ctx context.Context, id int64) (inventory.Item, error) {
	item, ok := t.st.items[id]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

func (t *tx) GetItemForUpdate(ctx context.Context, id int64) (inventory.Item, error) {
	item, ok := t.st.items[id]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

func (t *tx) UpdateItemStock(ctx context.Context, id int64, stock int64) error {
	item, ok := t.st.items[id]
	if !ok {
		return inventory.ErrItemNotFound
	}
	item.Stock = stock
	t.st.items[id] = item
	return nil
}

func (t *tx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	if _, ok := t.st.items[m.ItemID]; !ok {
		return 0, inventory.ErrItemNotFound
	}
	m.ID = t.st.next("stock_movements")
	m.CreatedAt = t.now().UTC()
	t.st.movements = append(t.st.movements, m)
	return m.ID, nil
}

func (t *tx) InsertItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	item.ID = t.st.next("items")
	item.CreatedAt = t.now().UTC()
	t.st.items[item.ID] = item
	return item, nil
}

func (t *tx) UpdateItemDetails(ctx context.Context, item inventory.Item) error {
	stored, ok := t.st.items[item.ID]
	if !ok {
		return inventory.ErrItemNotFound
	}
	stored.Name, stored.Category = item.Name, item.Category
	stored.CostPrice, stored.Price = item.CostPrice, item.Price
	t.st.items[item.ID] = stored
	return nil
}

func (t *tx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := t.st.items[id]; !ok {
		return inventory.ErrItemNotFound
	}
	delete(t.st.items, id)
	for k, s := range t.st.sales {
		if s.ItemID == id {
			delete(t.st.sales, k)
		}
	}
	for k, p := range t.st.parts {
		if p.ItemID == id {
			delete(t.st.parts, k)
		}
	}
	for k, r := range t.st.reports {
		if r.ItemID == id {
			delete(t.st.reports, k)
		}
	}
	kept := t.st.movements[:0]
	for _, m := range t.st.movements {
		if m.ItemID != id {
			kept = append(kept, m)
		}
	}
	t.st.movements = kept
	return nil
}

func (t *tx) InsertSale(ctx context.Context, sale sales.Sale) (sales.Sale, error) {
	if _, ok := t.st.items[sale.ItemID]; !ok {
		return sales.Sale{}, inventory.ErrItemNotFound
	}
	sale.ID = t.st.next("sales")
	sale.SaleDate = t.now().UTC()
	sale.ItemName, sale.ItemCategory = "", ""
	t.st.sales[sale.ID] = sale
	return sale, nil
}

func (t *tx) GetSaleForUpdate(ctx context.Context, id int64) (sales.Sale, error) {
	sale, ok := t.st.sales[id]
	if !ok {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return withItem(t.st, sale), nil
}

func (t *tx) DeleteSale(ctx context.Context, id int64) error {
	if _, ok := t.st.sales[id]; !ok {
		return sales.ErrSaleNotFound
	}
	delete(t.st.sales, id)
	return nil
}

func (t *tx) InsertTicket(ctx context.Context, ticket repairs.Ticket) (repairs.Ticket, error) {
	ticket.ID = t.st.next("repair_tickets")
	ticket.CreatedAt = t.now().UTC()
	ticket.Parts = nil
	t.st.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (t *tx) GetTicketForUpdate(ctx context.Context, id int64) (repairs.Ticket, error) {
	ticket, ok := t.st.tickets[id]
	if !ok {
		return repairs.Ticket{}, repairs.ErrTicketNotFound
	}
	return ticket, nil
}

func (t *tx) UpdateTicket(ctx context.Context, ticket repairs.Ticket) error {
	stored, ok := t.st.tickets[ticket.ID]
	if !ok {
		return repairs.ErrTicketNotFound
	}
	ticket.CreatedAt = stored.CreatedAt
	ticket.Parts = nil
	t.st.tickets[ticket.ID] = ticket
	return nil
}

func (t *tx) DeleteTicket(ctx context.Context, id int64) error {
	if _, ok := t.st.tickets[id]; !ok {
		return repairs.ErrTicketNotFound
	}
	delete(t.st.tickets, id)
	for k, p := range t.st.parts {
		if p.TicketID == id {
			delete(t.st.parts, k)
		}
	}
	return nil
}

func (t *tx) InsertPart(ctx context.Context, part repairs.Part) (repairs.Part, error) {
	if _, ok := t.st.tickets[part.TicketID]; !ok {
		return repairs.Part{}, repairs.ErrTicketNotFound
	}
	if _, ok := t.st.items[part.ItemID]; !ok {
		return repairs.Part{}, inventory.ErrItemNotFound
	}
	part.ID = t.st.next("repair_parts")
	part.ItemName = ""
	part.ConsumedAt = nil
	t.st.parts[part.ID] = part
	return part, nil
}

func (t *tx) ListParts(ctx context.Context, ticketID int64) ([]repairs.Part, error) {
	return t.st.partsOf(ticketID), nil
}

func (t *tx) MarkPartConsumed(ctx context.Context, partID int64, at time.Time) error {
	part, ok := t.st.parts[partID]
	if !ok {
		return repairs.ErrPartNotFound
	}
	part.ConsumedAt = &at
	t.st.parts[partID] = part
	return nil
}

func (t *tx) InsertReport(ctx context.Context, report damage.Report) (damage.Report, error) {
	if _, ok := t.st.items[report.ItemID]; !ok {
		return damage.Report{}, inventory.ErrItemNotFound
	}
	report.ID = t.st.next("damaged_items")
	report.ReportedAt = t.now().UTC()
	report.ItemName = ""
	t.st.reports[report.ID] = report
	return report, nil
}

func (t *tx) SetDeducted(ctx context.Context, id int64, deducted bool) error {
	report, ok := t.st.reports[id]
	if !ok {
		return damage.ErrReportNotFound
	}
	report.Deducted = deducted
	t.st.reports[id] = report
	return nil
}

func withItem(st *state, sale sales.Sale) sales.Sale {
	item := st.items[sale.ItemID]
	sale.ItemName, sale.ItemCategory = item.Name, item.Category
	return sale
}
