package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/repairdesk/repairdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)
	ListLowStock(ctx context.Context, threshold int64) ([]Item, error)
	ListMovements(ctx context.Context, itemID int64, page shared.Page) ([]Movement, error)
	FindStockDrift(ctx context.Context) ([]StockDrift, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalogue operations. Stock changes go through the ledger.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	audit  AuditPort
	cache  shared.Invalidator
	logger *slog.Logger
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, cache: cache, logger: logger}
}

// CreateItem inserts an item and journals its opening stock.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if input.Name == "" || input.Category == "" {
		return Item{}, shared.ValidationError("inventory: name and category required")
	}
	if input.Stock < 0 {
		return Item{}, shared.ValidationError("inventory: opening stock must not be negative")
	}
	if input.Price.IsNegative() || input.CostPrice.IsNegative() {
		return Item{}, ErrNegativePrice
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.InsertItem(ctx, Item{
			Name:      input.Name,
			Category:  input.Category,
			CostPrice: input.CostPrice.Round(2),
			Price:     input.Price.Round(2),
		})
		if err != nil {
			return err
		}
		item, err = s.ledger.AdjustStock(ctx, tx, item, input.Stock, MovementRef{Reason: ReasonOpening, RefModule: "inventory", RefID: item.ID})
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: create item: %w", err)
	}
	s.afterWrite(ctx, "inventory:create", item.ID, map[string]any{"name": item.Name, "stock": item.Stock})
	return item, nil
}

// UpdateItem patches descriptive fields and applies a stock correction when requested.
func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (Item, error) {
	if input.Stock != nil && *input.Stock < 0 {
		return Item{}, shared.ValidationError("inventory: stock must not be negative")
	}
	if (input.Price != nil && input.Price.IsNegative()) || (input.CostPrice != nil && input.CostPrice.IsNegative()) {
		return Item{}, ErrNegativePrice
	}
	var (
		item  Item
		delta int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = s.ledger.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			item.Name = strings.TrimSpace(*input.Name)
		}
		if input.Category != nil {
			item.Category = strings.TrimSpace(*input.Category)
		}
		if input.CostPrice != nil {
			item.CostPrice = input.CostPrice.Round(2)
		}
		if input.Price != nil {
			item.Price = input.Price.Round(2)
		}
		if err := tx.UpdateItemDetails(ctx, item); err != nil {
			return err
		}
		if input.Stock == nil {
			return nil
		}
		delta = *input.Stock - item.Stock
		item, err = s.ledger.AdjustStock(ctx, tx, item, delta, MovementRef{
			Reason:    ReasonAdjustment,
			RefModule: "inventory",
			RefID:     item.ID,
			Note:      input.Note,
		})
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("inventory: update item %d: %w", id, err)
	}
	s.afterWrite(ctx, "inventory:update", item.ID, map[string]any{"stock_delta": delta})
	return item, nil
}

// DeleteItem removes an item; dependent records cascade.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("inventory: delete item %d: %w", id, err)
	}
	s.afterWrite(ctx, "inventory:delete", id, nil)
	return nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems lists the catalogue.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	if filter.Ordering.Field == "" {
		filter.Ordering = DefaultOrdering
	}
	if filter.Page.Size == 0 {
		filter.Page = shared.NewPage(1, 0)
	}
	return s.repo.ListItems(ctx, filter)
}

// ListMovements returns the stock journal of an item.
func (s *Service) ListMovements(ctx context.Context, itemID int64, page shared.Page) ([]Movement, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, itemID, page)
}

// LowStock returns items at or below threshold.
func (s *Service) LowStock(ctx context.Context, threshold int64) ([]Item, error) {
	return s.repo.ListLowStock(ctx, threshold)
}

// StockDrift returns items whose stock disagrees with the journal.
func (s *Service) StockDrift(ctx context.Context) ([]StockDrift, error) {
	return s.repo.FindStockDrift(ctx)
}

func (s *Service) afterWrite(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "dashboard invalidation failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   action,
			Entity:   "item",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	}
}
