package sales

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/inventory"
)

// Quote holds the amounts a sale is frozen with.
type Quote struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Profit    decimal.Decimal
}

// OptionalPrice is a caller-typed price that may be left blank.
// JSON null and an empty or blank string both decode as absent.
type OptionalPrice struct {
	decimal.NullDecimal
}

// PriceOf wraps a typed price.
func PriceOf(d decimal.Decimal) OptionalPrice {
	return OptionalPrice{decimal.NullDecimal{Decimal: d, Valid: true}}
}

// UnmarshalJSON accepts numbers, numeric strings, null and "".
func (p *OptionalPrice) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || strings.TrimSpace(strings.Trim(raw, `"`)) == "" {
		p.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	return p.NullDecimal.UnmarshalJSON(data)
}

// ResolveUnitPrice uses the caller price when present and positive, else the list price.
func ResolveUnitPrice(input OptionalPrice, listPrice decimal.Decimal) decimal.Decimal {
	if input.Valid && input.Decimal.IsPositive() {
		return input.Decimal.Round(2)
	}
	return listPrice
}

// QuoteSale prices qty units of item.
func QuoteSale(item inventory.Item, qty int64, input OptionalPrice) (Quote, error) {
	unit := ResolveUnitPrice(input, item.Price)
	n := decimal.NewFromInt(qty)
	total := unit.Mul(n)
	if !total.IsPositive() {
		return Quote{}, ErrInvalidTotal
	}
	return Quote{
		UnitPrice: unit,
		Total:     total,
		Profit:    total.Sub(item.CostPrice.Mul(n)),
	}, nil
}
