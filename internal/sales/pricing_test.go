package sales

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repairdesk/internal/inventory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveUnitPrice(t *testing.T) {
	list := dec("100")
	cases := []struct {
		name  string
		input OptionalPrice
		want  string
	}{
		{"absent uses list price", OptionalPrice{}, "100"},
		{"zero uses list price", PriceOf(dec("0")), "100"},
		{"negative uses list price", PriceOf(dec("-5")), "100"},
		{"positive overrides", PriceOf(dec("80")), "80"},
		{"rounded to cents", PriceOf(dec("79.999")), "80"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveUnitPrice(tc.input, list)
			assert.True(t, dec(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestQuoteSale(t *testing.T) {
	item := inventory.Item{ID: 1, Price: dec("100"), CostPrice: dec("60")}

	q, err := QuoteSale(item, 3, OptionalPrice{})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(q.UnitPrice))
	assert.True(t, dec("300").Equal(q.Total))
	assert.True(t, dec("120").Equal(q.Profit))

	q, err = QuoteSale(item, 3, PriceOf(dec("80")))
	require.NoError(t, err)
	assert.True(t, dec("240").Equal(q.Total))
	assert.True(t, dec("60").Equal(q.Profit))

	// Selling under cost yields a negative profit, which is allowed.
	q, err = QuoteSale(item, 2, PriceOf(dec("50")))
	require.NoError(t, err)
	assert.True(t, dec("-20").Equal(q.Profit))
}

func TestCreateSaleInputBlankPriceFallsBackToList(t *testing.T) {
	list := dec("100")
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty string", `{"item":1,"quantity":1,"unit_price":""}`, "100"},
		{"blank string", `{"item":1,"quantity":1,"unit_price":"  "}`, "100"},
		{"null", `{"item":1,"quantity":1,"unit_price":null}`, "100"},
		{"missing", `{"item":1,"quantity":1}`, "100"},
		{"numeric string", `{"item":1,"quantity":1,"unit_price":"85.50"}`, "85.5"},
		{"number", `{"item":1,"quantity":1,"unit_price":90}`, "90"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var input CreateSaleInput
			require.NoError(t, json.Unmarshal([]byte(tc.body), &input))
			got := ResolveUnitPrice(input.UnitPrice, list)
			assert.True(t, dec(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestCreateSaleInputRejectsNonNumericPrice(t *testing.T) {
	var input CreateSaleInput
	require.Error(t, json.Unmarshal([]byte(`{"item":1,"quantity":1,"unit_price":"abc"}`), &input))
}

func TestQuoteSaleRejectsZeroTotal(t *testing.T) {
	free := inventory.Item{ID: 2, Price: decimal.Zero, CostPrice: dec("5")}
	_, err := QuoteSale(free, 1, OptionalPrice{})
	require.ErrorIs(t, err, ErrInvalidTotal)
}

func TestParseSaleType(t *testing.T) {
	got, err := ParseSaleType("")
	require.NoError(t, err)
	assert.Equal(t, SaleTypeRetail, got)

	got, err = ParseSaleType("wholesale")
	require.NoError(t, err)
	assert.Equal(t, SaleTypeWholesale, got)

	_, err = ParseSaleType("barter")
	require.Error(t, err)
}
