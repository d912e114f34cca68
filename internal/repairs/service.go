package repairs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/shared"
)

const refModule = "repairs"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTicket(ctx context.Context, id int64) (Ticket, error)
	ListTickets(ctx context.Context, page shared.Page) ([]Ticket, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	inventory.StockTx
	GetItem(ctx context.Context, id int64) (inventory.Item, error)
	InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error)
	GetTicketForUpdate(ctx context.Context, id int64) (Ticket, error)
	UpdateTicket(ctx context.Context, ticket Ticket) error
	DeleteTicket(ctx context.Context, id int64) error
	InsertPart(ctx context.Context, part Part) (Part, error)
	ListParts(ctx context.Context, ticketID int64) ([]Part, error)
	MarkPartConsumed(ctx context.Context, partID int64, at time.Time) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages repair tickets and consumes their parts on completion.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	audit  AuditPort
	cache  shared.Invalidator
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the repairs service. audit and cache may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, audit AuditPort, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, cache: cache, logger: logger, now: time.Now}
}

// CreateTicket opens a ticket.
func (s *Service) CreateTicket(ctx context.Context, input CreateTicketInput) (Ticket, error) {
	ticket := Ticket{
		CustomerRef:      strings.TrimSpace(input.CustomerRef),
		CustomerName:     strings.TrimSpace(input.CustomerName),
		DeviceModel:      strings.TrimSpace(input.DeviceModel),
		IssueDescription: input.IssueDescription,
		Status:           StatusReceived,
		EstimatedCost:    input.EstimatedCost.Round(2),
	}
	if ticket.CustomerName == "" || ticket.DeviceModel == "" {
		return Ticket{}, shared.ValidationError("repairs: customer name and device model required")
	}
	if ticket.EstimatedCost.IsNegative() {
		return Ticket{}, ErrNegativeCost
	}
	if strings.TrimSpace(input.Status) != "" {
		status, err := ParseStatus(input.Status)
		if err != nil {
			return Ticket{}, err
		}
		ticket.Status = status
	}
	payment, err := shared.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return Ticket{}, err
	}
	ticket.PaymentMethod = payment

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ticket, err = tx.InsertTicket(ctx, ticket)
		return err
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("repairs: create ticket: %w", err)
	}
	ticket.Parts = []Part{}
	s.afterWrite(ctx, "repairs:create", ticket.ID, map[string]any{"status": ticket.Status})
	return ticket, nil
}

// UpdateTicket applies field changes and, when the stored status enters Done,
// deducts every unconsumed part line that stock can cover. Short lines are
// skipped and reported; they never block the status change.
func (s *Service) UpdateTicket(ctx context.Context, id int64, input UpdateTicketInput) (UpdateResult, error) {
	var newStatus *Status
	if input.Status != nil {
		status, err := ParseStatus(*input.Status)
		if err != nil {
			return UpdateResult{}, err
		}
		newStatus = &status
	}
	var payment *shared.PaymentMethod
	if input.PaymentMethod != nil {
		p, err := shared.ParsePaymentMethod(*input.PaymentMethod)
		if err != nil {
			return UpdateResult{}, err
		}
		payment = &p
	}
	if input.EstimatedCost != nil && input.EstimatedCost.IsNegative() {
		return UpdateResult{}, ErrNegativeCost
	}

	var (
		result UpdateResult
		from   Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ticket, err := tx.GetTicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = ticket.Status
		applyUpdate(&ticket, input, newStatus, payment)
		if err := tx.UpdateTicket(ctx, ticket); err != nil {
			return err
		}
		lines := []LineResult{}
		if Transition(from, ticket.Status) == EffectConsumeParts {
			lines, err = s.consumeParts(ctx, tx, ticket.ID)
			if err != nil {
				return err
			}
		}
		parts, err := tx.ListParts(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if parts == nil {
			parts = []Part{}
		}
		ticket.Parts = parts
		result = UpdateResult{Ticket: ticket, Lines: lines}
		return nil
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("repairs: update ticket %d: %w", id, err)
	}
	meta := map[string]any{"from": from, "to": result.Ticket.Status}
	if len(result.Lines) > 0 {
		meta["lines"] = result.Lines
	}
	s.afterWrite(ctx, "repairs:update", id, meta)
	return result, nil
}

func applyUpdate(ticket *Ticket, input UpdateTicketInput, status *Status, payment *shared.PaymentMethod) {
	if input.CustomerRef != nil {
		ticket.CustomerRef = strings.TrimSpace(*input.CustomerRef)
	}
	if input.CustomerName != nil {
		ticket.CustomerName = strings.TrimSpace(*input.CustomerName)
	}
	if input.DeviceModel != nil {
		ticket.DeviceModel = strings.TrimSpace(*input.DeviceModel)
	}
	if input.IssueDescription != nil {
		ticket.IssueDescription = *input.IssueDescription
	}
	if input.EstimatedCost != nil {
		ticket.EstimatedCost = input.EstimatedCost.Round(2)
	}
	if status != nil {
		ticket.Status = *status
	}
	if payment != nil {
		ticket.PaymentMethod = *payment
	}
}

// consumeParts runs every part line of the ticket through the lenient ledger policy.
// Item rows are locked in ascending id order before any deduction.
func (s *Service) consumeParts(ctx context.Context, tx TxRepository, ticketID int64) ([]LineResult, error) {
	parts, err := tx.ListParts(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	itemIDs := make([]int64, 0, len(parts))
	seen := make(map[int64]bool, len(parts))
	for _, p := range parts {
		if p.ConsumedAt == nil && !seen[p.ItemID] {
			seen[p.ItemID] = true
			itemIDs = append(itemIDs, p.ItemID)
		}
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })
	items := make(map[int64]inventory.Item, len(itemIDs))
	for _, itemID := range itemIDs {
		item, err := s.ledger.Lock(ctx, tx, itemID)
		if err != nil {
			return nil, err
		}
		items[itemID] = item
	}

	now := s.now().UTC()
	lines := make([]LineResult, 0, len(parts))
	for _, p := range parts {
		line := LineResult{PartID: p.ID, ItemID: p.ItemID, Quantity: p.Quantity}
		if p.ConsumedAt != nil {
			line.Outcome = inventory.OutcomeAlreadyConsumed
			lines = append(lines, line)
			continue
		}
		item, outcome, err := s.ledger.DeductIfAvailable(ctx, tx, items[p.ItemID], p.Quantity, inventory.MovementRef{
			Reason:    inventory.ReasonRepairPart,
			RefModule: refModule,
			RefID:     ticketID,
			Note:      "part " + strconv.FormatInt(p.ID, 10),
		})
		if err != nil {
			return nil, err
		}
		items[p.ItemID] = item
		if outcome == inventory.OutcomeConsumed {
			if err := tx.MarkPartConsumed(ctx, p.ID, now); err != nil {
				return nil, err
			}
		}
		line.Outcome = outcome
		lines = append(lines, line)
	}
	return lines, nil
}

// AddPart attaches an item quantity to a ticket. Stock is untouched until completion,
// so the item row is read without a lock.
func (s *Service) AddPart(ctx context.Context, ticketID int64, input AddPartInput) (Part, error) {
	if input.Quantity < 0 {
		return Part{}, inventory.ErrInvalidQuantity
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	var part Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetTicketForUpdate(ctx, ticketID); err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		part, err = tx.InsertPart(ctx, Part{TicketID: ticketID, ItemID: item.ID, Quantity: input.Quantity})
		if err != nil {
			return err
		}
		part.ItemName = item.Name
		return nil
	})
	if err != nil {
		return Part{}, fmt.Errorf("repairs: add part to ticket %d: %w", ticketID, err)
	}
	s.afterWrite(ctx, "repairs:add_part", ticketID, map[string]any{"item_id": part.ItemID, "quantity": part.Quantity})
	return part, nil
}

// DeleteTicket removes a ticket and its part lines. Consumed stock is not restored.
func (s *Service) DeleteTicket(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteTicket(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("repairs: delete ticket %d: %w", id, err)
	}
	s.afterWrite(ctx, "repairs:delete", id, nil)
	return nil
}

// GetTicket returns one ticket with its parts.
func (s *Service) GetTicket(ctx context.Context, id int64) (Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// ListTickets lists tickets newest first.
func (s *Service) ListTickets(ctx context.Context, page shared.Page) ([]Ticket, error) {
	if page.Size == 0 {
		page = shared.NewPage(1, 0)
	}
	return s.repo.ListTickets(ctx, page)
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
			Entity:   "repair_ticket",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	}
}
