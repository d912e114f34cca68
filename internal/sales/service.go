package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const refModule = "sales"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	inventory.StockTx
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort remembers processed client keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service records counter sales and their reversals.
type Service struct {
	repo        RepositoryPort
	ledger      *inventory.Ledger
	audit       AuditPort
	idempotency IdempotencyPort
	cache       shared.Invalidator
	logger      *slog.Logger
}

// NewService constructs a sales service. audit, idempotency and cache may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, audit AuditPort, idem IdempotencyPort, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, idempotency: idem, cache: cache, logger: logger}
}

// CreateSale prices the sale, refuses it when stock is short and otherwise records
// the sale and its stock deduction in one transaction.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error) {
	if input.ItemID <= 0 {
		return Sale{}, shared.ValidationError("sales: item required")
	}
	if input.Quantity <= 0 {
		return Sale{}, inventory.ErrInvalidQuantity
	}
	saleType, err := ParseSaleType(input.SaleType)
	if err != nil {
		return Sale{}, err
	}
	payment, err := shared.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return Sale{}, err
	}

	key := ""
	if input.IdempotencyKey != "" && s.idempotency != nil {
		key, err = shared.IdempotencyKey("sales:create", input.IdempotencyKey)
		if err != nil {
			return Sale{}, err
		}
		if err := s.idempotency.CheckAndInsert(ctx, key, refModule); err != nil {
			return Sale{}, err
		}
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.ledger.Lock(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		if err := inventory.RequireAvailable(item, input.Quantity); err != nil {
			return err
		}
		quote, err := QuoteSale(item, input.Quantity, input.UnitPrice)
		if err != nil {
			return err
		}
		sale, err = tx.InsertSale(ctx, Sale{
			ItemID:        item.ID,
			Quantity:      input.Quantity,
			UnitPrice:     quote.UnitPrice,
			TotalPrice:    quote.Total,
			Profit:        quote.Profit,
			SaleType:      saleType,
			PaymentMethod: payment,
			IMEINumber:    strings.TrimSpace(input.IMEINumber),
			CustomerName:  strings.TrimSpace(input.CustomerName),
			CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		})
		if err != nil {
			return err
		}
		sale.ItemName, sale.ItemCategory = item.Name, item.Category
		_, err = s.ledger.AdjustStock(ctx, tx, item, -input.Quantity, inventory.MovementRef{
			Reason:    inventory.ReasonSale,
			RefModule: refModule,
			RefID:     sale.ID,
		})
		return err
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Sale{}, fmt.Errorf("sales: create sale: %w", err)
	}
	s.afterWrite(ctx, "sales:create", sale.ID, map[string]any{
		"item_id":  sale.ItemID,
		"quantity": sale.Quantity,
		"total":    sale.TotalPrice.String(),
	})
	return sale, nil
}

// DeleteSale removes a sale and restores the quantity it deducted.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		item, err := s.ledger.Lock(ctx, tx, sale.ItemID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.AdjustStock(ctx, tx, item, sale.Quantity, inventory.MovementRef{
			Reason:    inventory.ReasonSaleReversal,
			RefModule: refModule,
			RefID:     sale.ID,
		}); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, sale.ID)
	})
	if err != nil {
		return fmt.Errorf("sales: delete sale %d: %w", id, err)
	}
	s.afterWrite(ctx, "sales:delete", id, map[string]any{"item_id": sale.ItemID, "restored": sale.Quantity})
	return nil
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales lists sales.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, error) {
	if filter.Ordering.Field == "" {
		filter.Ordering = DefaultOrdering
	}
	if filter.Page.Size == 0 {
		filter.Page = shared.NewPage(1, 0)
	}
	return s.repo.ListSales(ctx, filter)
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
			Entity:   "sale",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	}
}
