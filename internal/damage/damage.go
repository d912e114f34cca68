// Package damage records stock write-offs.
package damage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const refModule = "damage"

// Report is an immutable write-off record. Deducted tells whether stock covered it.
type Report struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item"`
	ItemName   string    `json:"item_name"`
	Quantity   int64     `json:"quantity"`
	Reason     string    `json:"reason"`
	Deducted   bool      `json:"deducted"`
	ReportedAt time.Time `json:"reported_at"`
}

// CreateReportInput describes a write-off.
type CreateReportInput struct {
	ItemID   int64  `json:"item" validate:"required,gt=0"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required"`
}

// ErrReportNotFound indicates the referenced report does not exist.
var ErrReportNotFound = fmt.Errorf("damage: report %w", shared.ErrNotFound)

// Result is the persisted report plus the ledger outcome.
type Result struct {
	Report  Report            `json:"report"`
	Outcome inventory.Outcome `json:"outcome"`
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListReports(ctx context.Context, page shared.Page) ([]Report, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	inventory.StockTx
	InsertReport(ctx context.Context, report Report) (Report, error)
	SetDeducted(ctx context.Context, id int64, deducted bool) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records damage reports.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	audit  AuditPort
	cache  shared.Invalidator
	logger *slog.Logger
}

// NewService constructs the damage service. audit and cache may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, audit AuditPort, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, cache: cache, logger: logger}
}

// CreateReport persists the write-off and deducts stock when enough is on hand.
// The report is kept either way.
func (s *Service) CreateReport(ctx context.Context, input CreateReportInput) (Result, error) {
	if input.ItemID <= 0 {
		return Result{}, shared.ValidationError("damage: item required")
	}
	if input.Quantity <= 0 {
		return Result{}, inventory.ErrInvalidQuantity
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Result{}, shared.ValidationError("damage: reason required")
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.ledger.Lock(ctx, tx, input.ItemID)
		if err != nil {
			return err
		}
		report, err := tx.InsertReport(ctx, Report{ItemID: item.ID, Quantity: input.Quantity, Reason: reason})
		if err != nil {
			return err
		}
		report.ItemName = item.Name
		_, outcome, err := s.ledger.DeductIfAvailable(ctx, tx, item, input.Quantity, inventory.MovementRef{
			Reason:    inventory.ReasonDamage,
			RefModule: refModule,
			RefID:     report.ID,
			Note:      reason,
		})
		if err != nil {
			return err
		}
		if outcome == inventory.OutcomeConsumed {
			if err := tx.SetDeducted(ctx, report.ID, true); err != nil {
				return err
			}
			report.Deducted = true
		}
		result = Result{Report: report, Outcome: outcome}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("damage: create report: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "dashboard invalidation failed", slog.String("action", "damage:create"), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "damage:create",
			Entity:   "damaged_item",
			EntityID: strconv.FormatInt(result.Report.ID, 10),
			Meta: map[string]any{
				"item_id":  result.Report.ItemID,
				"quantity": result.Report.Quantity,
				"outcome":  result.Outcome,
			},
		})
	}
	return result, nil
}

// ListReports lists write-offs newest first.
func (s *Service) ListReports(ctx context.Context, page shared.Page) ([]Report, error) {
	if page.Size == 0 {
		page = shared.NewPage(1, 0)
	}
	return s.repo.ListReports(ctx, page)
}
