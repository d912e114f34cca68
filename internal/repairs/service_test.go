package repairs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/shared"
)

type skipCounter struct {
	mu      sync.Mutex
	skipped map[string]int
}

func (c *skipCounter) ObserveStockMovement(string, int64) {}

func (c *skipCounter) ObserveSkippedLine(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[source]++
}

// lockRecorder counts item row locks taken through repairs transactions.
type lockRecorder struct {
	repairs.RepositoryPort
	mu    sync.Mutex
	locks map[int64]int
}

func (r *lockRecorder) WithTx(ctx context.Context, fn func(context.Context, repairs.TxRepository) error) error {
	return r.RepositoryPort.WithTx(ctx, func(ctx context.Context, tx repairs.TxRepository) error {
		return fn(ctx, &recordingTx{TxRepository: tx, rec: r})
	})
}

func (r *lockRecorder) count(itemID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locks[itemID]
}

type recordingTx struct {
	repairs.TxRepository
	rec *lockRecorder
}

func (t *recordingTx) GetItemForUpdate(ctx context.Context, id int64) (inventory.Item, error) {
	t.rec.mu.Lock()
	t.rec.locks[id]++
	t.rec.mu.Unlock()
	return t.TxRepository.GetItemForUpdate(ctx, id)
}

type RepairServiceSuite struct {
	suite.Suite
	ctx     context.Context
	items   *inventory.Service
	repairs *repairs.Service
	metrics *skipCounter
	locks   *lockRecorder
}

func TestRepairServiceSuite(t *testing.T) {
	suite.Run(t, new(RepairServiceSuite))
}

func (s *RepairServiceSuite) SetupTest() {
	s.ctx = context.Background()
	store := memstore.New()
	s.metrics = &skipCounter{skipped: map[string]int{}}
	ledger := inventory.NewLedger(nil, s.metrics)
	s.items = inventory.NewService(store.Inventory(), ledger, nil, nil, nil)
	s.locks = &lockRecorder{RepositoryPort: store.Repairs(), locks: map[int64]int{}}
	s.repairs = repairs.NewService(s.locks, ledger, nil, nil, nil)
}

func (s *RepairServiceSuite) item(name string, stock int64) inventory.Item {
	item, err := s.items.CreateItem(s.ctx, inventory.CreateItemInput{
		Name: name, Category: "Spare", Stock: stock,
		CostPrice: decimal.NewFromInt(200), Price: decimal.NewFromInt(450),
	})
	s.Require().NoError(err)
	return item
}

func (s *RepairServiceSuite) stock(id int64) int64 {
	item, err := s.items.GetItem(s.ctx, id)
	s.Require().NoError(err)
	return item.Stock
}

func (s *RepairServiceSuite) ticket() repairs.Ticket {
	t, err := s.repairs.CreateTicket(s.ctx, repairs.CreateTicketInput{
		CustomerName: "Ram", DeviceModel: "iPhone 11", IssueDescription: "cracked screen",
		EstimatedCost: decimal.NewFromInt(3500),
	})
	s.Require().NoError(err)
	return t
}

func (s *RepairServiceSuite) setStatus(id int64, status string) repairs.UpdateResult {
	res, err := s.repairs.UpdateTicket(s.ctx, id, repairs.UpdateTicketInput{Status: &status})
	s.Require().NoError(err)
	return res
}

func (s *RepairServiceSuite) restock(id, stock int64) {
	_, err := s.items.UpdateItem(s.ctx, id, inventory.UpdateItemInput{Stock: &stock, Note: "delivery"})
	s.Require().NoError(err)
}

func (s *RepairServiceSuite) TestCreateDefaults() {
	t := s.ticket()
	s.Equal(repairs.StatusReceived, t.Status)
	s.Equal(shared.PaymentCash, t.PaymentMethod)
	s.NotNil(t.Parts)
	s.Empty(t.Parts)
}

func (s *RepairServiceSuite) TestAddPartDoesNotTouchStock() {
	screen := s.item("iPhone 11 screen", 2)
	t := s.ticket()

	part, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), part.Quantity)
	s.Equal("iPhone 11 screen", part.ItemName)
	s.Equal(int64(2), s.stock(screen.ID))

	got, err := s.repairs.GetTicket(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Parts, 1)
	s.Nil(got.Parts[0].ConsumedAt)
}

func (s *RepairServiceSuite) TestAddPartLeavesItemRowUnlocked() {
	screen := s.item("Galaxy A14 screen", 3)
	t := s.ticket()

	_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID, Quantity: 2})
	s.Require().NoError(err)
	s.Equal(0, s.locks.count(screen.ID))

	_, err = s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: 9999})
	s.Require().ErrorIs(err, shared.ErrNotFound)

	s.setStatus(t.ID, "Done")
	s.Equal(1, s.locks.count(screen.ID))
	s.Equal(int64(1), s.stock(screen.ID))
}

func (s *RepairServiceSuite) TestDoneConsumesCoveredPartsAndSkipsShortOnes() {
	screen := s.item("Screen", 5)
	battery := s.item("Battery", 1)
	t := s.ticket()
	_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID, Quantity: 2})
	s.Require().NoError(err)
	_, err = s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: battery.ID, Quantity: 3})
	s.Require().NoError(err)

	res := s.setStatus(t.ID, "Done")
	s.Equal(repairs.StatusDone, res.Ticket.Status)
	s.Require().Len(res.Lines, 2)
	s.Equal(inventory.OutcomeConsumed, res.Lines[0].Outcome)
	s.Equal(inventory.OutcomeSkippedInsufficientStock, res.Lines[1].Outcome)
	s.Equal(int64(3), s.stock(screen.ID))
	s.Equal(int64(1), s.stock(battery.ID))
	s.NotNil(res.Ticket.Parts[0].ConsumedAt)
	s.Nil(res.Ticket.Parts[1].ConsumedAt)
	s.Equal(1, s.metrics.skipped["repairs"])

	drift, err := s.items.StockDrift(s.ctx)
	s.Require().NoError(err)
	s.Empty(drift)
}

func (s *RepairServiceSuite) TestDoneToDoneHasNoEffect() {
	screen := s.item("Screen", 5)
	t := s.ticket()
	_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID, Quantity: 1})
	s.Require().NoError(err)

	s.setStatus(t.ID, "Done")
	s.Equal(int64(4), s.stock(screen.ID))

	res := s.setStatus(t.ID, "done")
	s.Empty(res.Lines)
	s.Equal(int64(4), s.stock(screen.ID))
}

func (s *RepairServiceSuite) TestReenteringDoneOnlyConsumesRemainingLines() {
	screen := s.item("Screen", 5)
	battery := s.item("Battery", 0)
	t := s.ticket()
	_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID, Quantity: 1})
	s.Require().NoError(err)
	_, err = s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: battery.ID, Quantity: 1})
	s.Require().NoError(err)

	s.setStatus(t.ID, "Done")
	s.setStatus(t.ID, "in_progress")
	s.restock(battery.ID, 2)

	res := s.setStatus(t.ID, "Done")
	s.Require().Len(res.Lines, 2)
	s.Equal(inventory.OutcomeAlreadyConsumed, res.Lines[0].Outcome)
	s.Equal(inventory.OutcomeConsumed, res.Lines[1].Outcome)
	s.Equal(int64(4), s.stock(screen.ID))
	s.Equal(int64(1), s.stock(battery.ID))
}

func (s *RepairServiceSuite) TestLinesOnSameItemSeeEarlierDeductions() {
	glue := s.item("B7000 glue", 3)
	t := s.ticket()
	for i := 0; i < 2; i++ {
		_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: glue.ID, Quantity: 2})
		s.Require().NoError(err)
	}

	res := s.setStatus(t.ID, "Done")
	s.Equal(inventory.OutcomeConsumed, res.Lines[0].Outcome)
	s.Equal(inventory.OutcomeSkippedInsufficientStock, res.Lines[1].Outcome)
	s.Equal(int64(1), s.stock(glue.ID))
}

func (s *RepairServiceSuite) TestCreatedAsDoneWithoutPartsDoesNothing() {
	t, err := s.repairs.CreateTicket(s.ctx, repairs.CreateTicketInput{
		CustomerName: "Hari", DeviceModel: "Galaxy A52", Status: "Done",
	})
	s.Require().NoError(err)
	s.Equal(repairs.StatusDone, t.Status)
}

func (s *RepairServiceSuite) TestDeleteDoesNotRestoreStock() {
	screen := s.item("Screen", 5)
	t := s.ticket()
	_, err := s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: screen.ID, Quantity: 2})
	s.Require().NoError(err)
	s.setStatus(t.ID, "Done")

	s.Require().NoError(s.repairs.DeleteTicket(s.ctx, t.ID))
	s.Equal(int64(3), s.stock(screen.ID))

	_, err = s.repairs.GetTicket(s.ctx, t.ID)
	s.Require().ErrorIs(err, repairs.ErrTicketNotFound)
}

func (s *RepairServiceSuite) TestUpdateValidation() {
	t := s.ticket()
	bad := "Waiting"
	_, err := s.repairs.UpdateTicket(s.ctx, t.ID, repairs.UpdateTicketInput{Status: &bad})
	s.Require().ErrorIs(err, shared.ErrValidation)

	negative := decimal.NewFromInt(-1)
	_, err = s.repairs.UpdateTicket(s.ctx, t.ID, repairs.UpdateTicketInput{EstimatedCost: &negative})
	s.Require().ErrorIs(err, repairs.ErrNegativeCost)

	status := "Done"
	_, err = s.repairs.UpdateTicket(s.ctx, 404, repairs.UpdateTicketInput{Status: &status})
	s.Require().ErrorIs(err, shared.ErrNotFound)

	_, err = s.repairs.AddPart(s.ctx, t.ID, repairs.AddPartInput{ItemID: 999})
	s.Require().ErrorIs(err, inventory.ErrItemNotFound)
}

func (s *RepairServiceSuite) TestListNewestFirst() {
	first := s.ticket()
	second := s.ticket()
	list, err := s.repairs.ListTickets(s.ctx, shared.Page{})
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)
}
