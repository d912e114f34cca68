package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/shared"
)

// Item is a stocked product or spare part.
type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Stock     int64           `json:"stock"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementReason classifies a stock movement.
type MovementReason string

const (
	// ReasonOpening records the stock an item was created with.
	ReasonOpening MovementReason = "OPENING"
	// ReasonSale records a sale deduction.
	ReasonSale MovementReason = "SALE"
	// ReasonSaleReversal restores stock of a deleted sale.
	ReasonSaleReversal MovementReason = "SALE_REVERSAL"
	// ReasonRepairPart records a part consumed by a finished repair.
	ReasonRepairPart MovementReason = "REPAIR_PART"
	// ReasonDamage records a damage write-off.
	ReasonDamage MovementReason = "DAMAGE"
	// ReasonAdjustment records a manual correction.
	ReasonAdjustment MovementReason = "ADJUSTMENT"
)

// MovementRef identifies the business record that caused a stock change.
type MovementRef struct {
	Reason    MovementReason
	RefModule string
	RefID     int64
	Note      string
}

// Movement is one journal row; exactly one is written per stock write.
type Movement struct {
	ID          int64          `json:"id"`
	ItemID      int64          `json:"item_id"`
	Reason      MovementReason `json:"reason"`
	Delta       int64          `json:"delta"`
	StockBefore int64          `json:"stock_before"`
	StockAfter  int64          `json:"stock_after"`
	RefModule   string         `json:"ref_module,omitempty"`
	RefID       int64          `json:"ref_id,omitempty"`
	Note        string         `json:"note,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Outcome reports what a lenient deduction did with one line.
type Outcome string

const (
	// OutcomeConsumed means stock was deducted.
	OutcomeConsumed Outcome = "CONSUMED"
	// OutcomeSkippedInsufficientStock means stock was too low and left untouched.
	OutcomeSkippedInsufficientStock Outcome = "SKIPPED_INSUFFICIENT_STOCK"
	// OutcomeAlreadyConsumed means the line was deducted by an earlier event.
	OutcomeAlreadyConsumed Outcome = "ALREADY_CONSUMED"
)

// StockDrift reports an item whose stock disagrees with its movement journal.
type StockDrift struct {
	ItemID  int64  `json:"item_id"`
	Name    string `json:"name"`
	Stock   int64  `json:"stock"`
	Journal int64  `json:"journal"`
}

// CreateItemInput describes a new catalogue entry.
type CreateItemInput struct {
	Name      string          `json:"name" validate:"required,max=100"`
	Category  string          `json:"category" validate:"required,max=100"`
	Stock     int64           `json:"stock" validate:"gte=0"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Price     decimal.Decimal `json:"price"`
}

// UpdateItemInput patches an item. A Stock value is applied as a journalled correction.
type UpdateItemInput struct {
	Name      *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Category  *string          `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Stock     *int64           `json:"stock,omitempty" validate:"omitempty,gte=0"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Note      string           `json:"note,omitempty" validate:"max=500"`
}

// ListFilter narrows catalogue listings.
type ListFilter struct {
	Ordering shared.Ordering
	Page     shared.Page
}

// DefaultOrdering lists newest items first.
var DefaultOrdering = shared.Ordering{Field: "created_at", Desc: true}

// OrderingFields are the accepted ?ordering= keys.
var OrderingFields = []string{"created_at", "price", "stock", "name"}

var (
	// ErrItemNotFound indicates the referenced item does not exist.
	ErrItemNotFound = fmt.Errorf("inventory: item %w", shared.ErrNotFound)
	// ErrInsufficientStock is matched by every *InsufficientStockError.
	ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrRejected)
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	// ErrNegativePrice indicates a price or cost below zero.
	ErrNegativePrice = fmt.Errorf("inventory: price must not be negative: %w", shared.ErrValidation)
)

// InsufficientStockError carries the stock that was available when a strict deduction was refused.
type InsufficientStockError struct {
	ItemID    int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: not enough stock for item %d: requested %d, only %d left", e.ItemID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock and shared.ErrRejected.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == shared.ErrRejected
}

// AvailableStock exposes the available quantity to transport layers.
func (e *InsufficientStockError) AvailableStock() int64 {
	return e.Available
}
