package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
	"github.com/repairdesk/repairdesk/internal/sales"
	"github.com/repairdesk/repairdesk/internal/shared"
)

type invalidations struct {
	mu sync.Mutex
	n  int
}

func (i *invalidations) Invalidate(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.n++
	return nil
}

type SalesServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memstore.Store
	ledger  *inventory.Ledger
	items   *inventory.Service
	sales   *sales.Service
	invalid *invalidations
	phone   inventory.Item
}

func TestSalesServiceSuite(t *testing.T) {
	suite.Run(t, new(SalesServiceSuite))
}

func (s *SalesServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.invalid = &invalidations{}
	s.ledger = inventory.NewLedger(nil, nil)
	s.items = inventory.NewService(s.store.Inventory(), s.ledger, nil, nil, nil)
	s.sales = sales.NewService(s.store.Sales(), s.ledger, nil, shared.NewMemoryIdempotencyStore(), s.invalid, nil)

	var err error
	s.phone, err = s.items.CreateItem(s.ctx, inventory.CreateItemInput{
		Name: "Redmi Note 12", Category: "Phone", Stock: 10,
		CostPrice: decimal.NewFromInt(60), Price: decimal.NewFromInt(100),
	})
	s.Require().NoError(err)
}

func (s *SalesServiceSuite) stock() int64 {
	item, err := s.items.GetItem(s.ctx, s.phone.ID)
	s.Require().NoError(err)
	return item.Stock
}

func (s *SalesServiceSuite) requireJournalBalanced() {
	drift, err := s.items.StockDrift(s.ctx)
	s.Require().NoError(err)
	s.Empty(drift)
}

func (s *SalesServiceSuite) TestCounterDayScenario() {
	first, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 3})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(300).Equal(first.TotalPrice))
	s.True(decimal.NewFromInt(120).Equal(first.Profit))
	s.Equal(int64(7), s.stock())

	price := decimal.NewFromInt(80)
	second, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 3, UnitPrice: sales.PriceOf(price)})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(240).Equal(second.TotalPrice))
	s.True(decimal.NewFromInt(60).Equal(second.Profit))
	s.Equal(int64(4), s.stock())

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 10})
	s.Require().ErrorIs(err, inventory.ErrInsufficientStock)
	var short *inventory.InsufficientStockError
	s.Require().True(errors.As(err, &short))
	s.Equal(int64(4), short.Available)
	s.Equal(int64(4), s.stock())

	s.Require().NoError(s.sales.DeleteSale(s.ctx, second.ID))
	s.Equal(int64(7), s.stock())

	listed, err := s.sales.ListSales(s.ctx, sales.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(first.ID, listed[0].ID)
	s.Equal("Redmi Note 12", listed[0].ItemName)

	s.requireJournalBalanced()
	s.Equal(3, s.invalid.n)
}

func (s *SalesServiceSuite) TestDeleteRestoresSoldQuantityAfterInterveningChanges() {
	first, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 3})
	s.Require().NoError(err)
	s.Equal(int64(7), s.stock())

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 2})
	s.Require().NoError(err)

	restock := int64(12)
	_, err = s.items.UpdateItem(s.ctx, s.phone.ID, inventory.UpdateItemInput{Stock: &restock, Note: "delivery"})
	s.Require().NoError(err)

	reports := damage.NewService(s.store.Damage(), s.ledger, nil, nil, nil)
	res, err := reports.CreateReport(s.ctx, damage.CreateReportInput{ItemID: s.phone.ID, Quantity: 4, Reason: "cracked screen"})
	s.Require().NoError(err)
	s.Equal(inventory.OutcomeConsumed, res.Outcome)
	intermediate := s.stock()
	s.Equal(int64(8), intermediate)

	s.Require().NoError(s.sales.DeleteSale(s.ctx, first.ID))
	s.Equal(intermediate+3, s.stock())

	moves, err := s.items.ListMovements(s.ctx, s.phone.ID, shared.NewPage(1, 0))
	s.Require().NoError(err)
	s.Require().NotEmpty(moves)
	s.Equal(inventory.ReasonSaleReversal, moves[0].Reason)
	s.Equal(int64(3), moves[0].Delta)
	s.Equal(first.ID, moves[0].RefID)
	s.requireJournalBalanced()
}

func (s *SalesServiceSuite) TestSaleJournalsMovementWithSaleReference() {
	sale, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 2})
	s.Require().NoError(err)

	moves, err := s.items.ListMovements(s.ctx, s.phone.ID, shared.NewPage(1, 0))
	s.Require().NoError(err)
	s.Require().Len(moves, 2)
	s.Equal(inventory.ReasonSale, moves[0].Reason)
	s.Equal(int64(-2), moves[0].Delta)
	s.Equal(int64(10), moves[0].StockBefore)
	s.Equal(int64(8), moves[0].StockAfter)
	s.Equal("sales", moves[0].RefModule)
	s.Equal(sale.ID, moves[0].RefID)
	s.Equal(inventory.ReasonOpening, moves[1].Reason)
}

func (s *SalesServiceSuite) TestSellingExactlyAvailableStock() {
	_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 10})
	s.Require().NoError(err)
	s.Equal(int64(0), s.stock())

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 1})
	s.Require().ErrorIs(err, shared.ErrRejected)
}

func (s *SalesServiceSuite) TestRejectedSaleLeavesNoTrace() {
	zero := s.mustItem("Screen guard", 0, 5)
	_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: zero.ID, Quantity: 2})
	s.Require().ErrorIs(err, sales.ErrInvalidTotal)

	listed, err := s.sales.ListSales(s.ctx, sales.ListFilter{})
	s.Require().NoError(err)
	s.Empty(listed)
	s.Equal(0, s.invalid.n)
	s.requireJournalBalanced()
}

func (s *SalesServiceSuite) TestValidation() {
	_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 0})
	s.Require().ErrorIs(err, shared.ErrValidation)

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 1, PaymentMethod: "cheque"})
	s.Require().ErrorIs(err, shared.ErrValidation)

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: 999, Quantity: 1})
	s.Require().ErrorIs(err, shared.ErrNotFound)
}

func (s *SalesServiceSuite) TestPaymentAndTypeAreNormalised() {
	sale, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{
		ItemID: s.phone.ID, Quantity: 1, PaymentMethod: "fonepay", SaleType: "WHOLESALE",
		CustomerName: "  Sita  ", IMEINumber: "356938035643809",
	})
	s.Require().NoError(err)
	s.Equal(shared.PaymentFonepay, sale.PaymentMethod)
	s.Equal(sales.SaleTypeWholesale, sale.SaleType)
	s.Equal("Sita", sale.CustomerName)
}

func (s *SalesServiceSuite) TestIdempotentRetryIsRejected() {
	key := uuid.NewString()
	_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 1, IdempotencyKey: key})
	s.Require().NoError(err)

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 1, IdempotencyKey: key})
	s.Require().ErrorIs(err, shared.ErrIdempotencyConflict)
	s.Equal(int64(9), s.stock())
}

func (s *SalesServiceSuite) TestFailedSaleReleasesIdempotencyKey() {
	key := uuid.NewString()
	_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 50, IdempotencyKey: key})
	s.Require().ErrorIs(err, inventory.ErrInsufficientStock)

	_, err = s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 5, IdempotencyKey: key})
	s.Require().NoError(err)
	s.Equal(int64(5), s.stock())
}

func (s *SalesServiceSuite) TestConcurrentSalesNeverOversell() {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.sales.CreateSale(s.ctx, sales.CreateSaleInput{ItemID: s.phone.ID, Quantity: 6})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, inventory.ErrInsufficientStock) {
				refused++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, accepted)
	s.Equal(1, refused)
	s.Equal(int64(4), s.stock())
	s.requireJournalBalanced()
}

func (s *SalesServiceSuite) TestDeleteUnknownSale() {
	err := s.sales.DeleteSale(s.ctx, 42)
	s.Require().ErrorIs(err, sales.ErrSaleNotFound)
}

func (s *SalesServiceSuite) mustItem(name string, price, cost int64) inventory.Item {
	item, err := s.items.CreateItem(s.ctx, inventory.CreateItemInput{
		Name: name, Category: "Accessory", Stock: 5,
		CostPrice: decimal.NewFromInt(cost), Price: decimal.NewFromInt(price),
	})
	require.NoError(s.T(), err)
	return item
}
