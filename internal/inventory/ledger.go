package inventory

import (
	"context"
	"fmt"
	"log/slog"
)

// StockTx is the row access the ledger needs inside an open transaction.
// Write modules embed it in their own transactional repositories.
type StockTx interface {
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItemStock(ctx context.Context, id int64, stock int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// LedgerMetrics receives ledger side-channel signals.
type LedgerMetrics interface {
	ObserveStockMovement(reason string, delta int64)
	ObserveSkippedLine(source string)
}

// Ledger owns every write to Item.stock.
type Ledger struct {
	logger  *slog.Logger
	metrics LedgerMetrics
}

// NewLedger builds a Ledger. Both arguments are optional.
func NewLedger(logger *slog.Logger, metrics LedgerMetrics) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger, metrics: metrics}
}

// Lock loads the item and holds its row lock until the transaction ends.
func (l *Ledger) Lock(ctx context.Context, tx StockTx, itemID int64) (Item, error) {
	item, err := tx.GetItemForUpdate(ctx, itemID)
	if err != nil {
		return Item{}, fmt.Errorf("inventory: lock item %d: %w", itemID, err)
	}
	return item, nil
}

// AdjustStock applies delta to a locked item and journals one movement.
// It does not check sufficiency; callers apply their own policy first.
func (l *Ledger) AdjustStock(ctx context.Context, tx StockTx, item Item, delta int64, ref MovementRef) (Item, error) {
	if delta == 0 {
		return item, nil
	}
	before := item.Stock
	item.Stock += delta
	if err := tx.UpdateItemStock(ctx, item.ID, item.Stock); err != nil {
		return Item{}, fmt.Errorf("inventory: update stock of item %d: %w", item.ID, err)
	}
	_, err := tx.InsertMovement(ctx, Movement{
		ItemID:      item.ID,
		Reason:      ref.Reason,
		Delta:       delta,
		StockBefore: before,
		StockAfter:  item.Stock,
		RefModule:   ref.RefModule,
		RefID:       ref.RefID,
		Note:        ref.Note,
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: journal movement of item %d: %w", item.ID, err)
	}
	if l.metrics != nil {
		l.metrics.ObserveStockMovement(string(ref.Reason), delta)
	}
	return item, nil
}

// RequireAvailable is the strict policy: it refuses when stock is below qty.
func RequireAvailable(item Item, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if item.Stock < qty {
		return &InsufficientStockError{ItemID: item.ID, Available: item.Stock, Requested: qty}
	}
	return nil
}

// DeductIfAvailable is the lenient policy: it deducts qty when stock covers it and
// otherwise leaves stock untouched, reporting the skip through logs and metrics.
func (l *Ledger) DeductIfAvailable(ctx context.Context, tx StockTx, item Item, qty int64, ref MovementRef) (Item, Outcome, error) {
	if qty <= 0 {
		return item, "", ErrInvalidQuantity
	}
	if item.Stock < qty {
		l.logger.WarnContext(ctx, "stock deduction skipped",
			slog.Int64("item_id", item.ID),
			slog.Int64("requested", qty),
			slog.Int64("available", item.Stock),
			slog.String("source", ref.RefModule),
			slog.Int64("ref_id", ref.RefID))
		if l.metrics != nil {
			l.metrics.ObserveSkippedLine(ref.RefModule)
		}
		return item, OutcomeSkippedInsufficientStock, nil
	}
	updated, err := l.AdjustStock(ctx, tx, item, -qty, ref)
	if err != nil {
		return item, "", err
	}
	return updated, OutcomeConsumed, nil
}
