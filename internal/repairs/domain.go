package repairs

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/shared"
)

// Status is the progress of a repair ticket.
type Status string

const (
	StatusReceived   Status = "Received"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusDelivered  Status = "Delivered"
)

var statusLabels = map[Status]string{
	StatusReceived:   "Received",
	StatusInProgress: "In Progress",
	StatusDone:       "Done",
	StatusDelivered:  "Delivered",
}

// ParseStatus matches raw ignoring case; "in_progress" and "InProgress" are accepted.
func ParseStatus(raw string) (Status, error) {
	v, ok := shared.MatchFold(raw, statusLabels)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw)
	}
	return v, nil
}

// Active reports whether the ticket still occupies the bench.
func (s Status) Active() bool {
	return s != StatusDone && s != StatusDelivered
}

// Effect is the stock side effect of a status change.
type Effect int

const (
	// EffectNone leaves stock untouched.
	EffectNone Effect = iota
	// EffectConsumeParts deducts the ticket's unconsumed part lines.
	EffectConsumeParts
)

// Transition maps a status change to its side effect. Only entering Done consumes parts.
func Transition(from, to Status) Effect {
	if from != StatusDone && to == StatusDone {
		return EffectConsumeParts
	}
	return EffectNone
}

// Ticket is a customer repair job.
type Ticket struct {
	ID               int64                `json:"id"`
	CustomerRef      string               `json:"customer_id"`
	CustomerName     string               `json:"customer_name"`
	DeviceModel      string               `json:"device_model"`
	IssueDescription string               `json:"issue_description"`
	Status           Status               `json:"status"`
	EstimatedCost    decimal.Decimal      `json:"estimated_cost"`
	PaymentMethod    shared.PaymentMethod `json:"payment_method"`
	CreatedAt        time.Time            `json:"created_at"`
	Parts            []Part               `json:"parts"`
}

// Part is an item quantity planned for, or consumed by, a ticket.
type Part struct {
	ID         int64      `json:"id"`
	TicketID   int64      `json:"repair"`
	ItemID     int64      `json:"item"`
	ItemName   string     `json:"item_name"`
	Quantity   int64      `json:"quantity"`
	ConsumedAt *time.Time `json:"consumed_at"`
}

// LineResult reports what a status change did with one part line.
type LineResult struct {
	PartID   int64             `json:"part_id"`
	ItemID   int64             `json:"item_id"`
	Quantity int64             `json:"quantity"`
	Outcome  inventory.Outcome `json:"outcome"`
}

// UpdateResult is the ticket after an update plus the per-line stock outcomes.
type UpdateResult struct {
	Ticket Ticket       `json:"ticket"`
	Lines  []LineResult `json:"lines"`
}

// CreateTicketInput describes a new ticket.
type CreateTicketInput struct {
	CustomerRef      string          `json:"customer_id,omitempty" validate:"max=50"`
	CustomerName     string          `json:"customer_name" validate:"required,max=100"`
	DeviceModel      string          `json:"device_model" validate:"required,max=100"`
	IssueDescription string          `json:"issue_description"`
	Status           string          `json:"status,omitempty"`
	EstimatedCost    decimal.Decimal `json:"estimated_cost"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
}

// UpdateTicketInput patches a ticket. The stored status is the only source of the old status.
type UpdateTicketInput struct {
	CustomerRef      *string          `json:"customer_id,omitempty" validate:"omitempty,max=50"`
	CustomerName     *string          `json:"customer_name,omitempty" validate:"omitempty,min=1,max=100"`
	DeviceModel      *string          `json:"device_model,omitempty" validate:"omitempty,min=1,max=100"`
	IssueDescription *string          `json:"issue_description,omitempty"`
	Status           *string          `json:"status,omitempty"`
	EstimatedCost    *decimal.Decimal `json:"estimated_cost,omitempty"`
	PaymentMethod    *string          `json:"payment_method,omitempty"`
}

// AddPartInput attaches an item quantity to a ticket. Quantity defaults to 1.
type AddPartInput struct {
	ItemID   int64 `json:"item" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"gte=0"`
}

var (
	// ErrTicketNotFound indicates the referenced ticket does not exist.
	ErrTicketNotFound = fmt.Errorf("repairs: ticket %w", shared.ErrNotFound)
	// ErrPartNotFound indicates the referenced part line does not exist.
	ErrPartNotFound = fmt.Errorf("repairs: part %w", shared.ErrNotFound)
	// ErrNegativeCost indicates an estimate below zero.
	ErrNegativeCost = fmt.Errorf("repairs: estimated cost must not be negative: %w", shared.ErrValidation)
)
