package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/shared"
)

// SaleType is informational; it never changes pricing.
type SaleType string

const (
	SaleTypeRetail    SaleType = "Retail"
	SaleTypeWholesale SaleType = "Wholesale"
)

var saleTypeLabels = map[SaleType]string{
	SaleTypeRetail:    "Retail",
	SaleTypeWholesale: "Wholesale",
}

// ParseSaleType matches raw ignoring case. Empty input yields SaleTypeRetail.
func ParseSaleType(raw string) (SaleType, error) {
	if strings.TrimSpace(raw) == "" {
		return SaleTypeRetail, nil
	}
	v, ok := shared.MatchFold(raw, saleTypeLabels)
	if !ok {
		return "", fmt.Errorf("%w: unknown sale type %q", shared.ErrValidation, raw)
	}
	return v, nil
}

// Sale is a recorded counter sale. Totals and profit are frozen at creation.
type Sale struct {
	ID            int64                `json:"id"`
	ItemID        int64                `json:"item"`
	ItemName      string               `json:"item_name"`
	ItemCategory  string               `json:"item_category"`
	Quantity      int64                `json:"quantity"`
	UnitPrice     decimal.Decimal      `json:"unit_price"`
	TotalPrice    decimal.Decimal      `json:"total_price"`
	SaleType      SaleType             `json:"sale_type"`
	PaymentMethod shared.PaymentMethod `json:"payment_method"`
	IMEINumber    string               `json:"imei_number"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	Profit        decimal.Decimal      `json:"profit"`
	SaleDate      time.Time            `json:"sale_date"`
}

// CreateSaleInput captures a counter sale request.
type CreateSaleInput struct {
	ItemID        int64            `json:"item" validate:"required,gt=0"`
	Quantity      int64            `json:"quantity" validate:"required,gt=0"`
	UnitPrice     OptionalPrice    `json:"unit_price"`
	SaleType      string           `json:"sale_type,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	IMEINumber    string           `json:"imei_number,omitempty" validate:"max=50"`
	CustomerName  string           `json:"customer_name,omitempty" validate:"max=100"`
	CustomerPhone string           `json:"customer_phone,omitempty" validate:"max=20"`

	// IdempotencyKey is a client UUID taken from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Ordering shared.Ordering
	Page     shared.Page
}

// DefaultOrdering lists newest sales first.
var DefaultOrdering = shared.Ordering{Field: "sale_date", Desc: true}

// OrderingFields are the accepted ?ordering= keys.
var OrderingFields = []string{"sale_date", "total_price", "profit"}

var (
	// ErrInvalidTotal indicates a computed total that is not positive.
	ErrInvalidTotal = fmt.Errorf("sales: total price must be positive: %w", shared.ErrRejected)
	// ErrSaleNotFound indicates the referenced sale does not exist.
	ErrSaleNotFound = fmt.Errorf("sales: sale %w", shared.ErrNotFound)
)
