// Package acceptance runs the shop's Gherkin scenarios against the HTTP API on the in-memory store.
package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/app"
	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/dashboard"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/httpx"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
)

type shopContext struct {
	handler http.Handler
	items   map[string]int64
	tickets map[string]int64

	lastSaleID int64
	status     int
	body       []byte
}

func (c *shopContext) reset() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	services := app.NewServices(app.MemoryStores(memstore.New(), logger), nil, nil, logger)
	c.handler = app.NewRouter(app.RouterParams{Logger: logger, Services: services})
	c.items = map[string]int64{}
	c.tickets = map[string]int64{}
	c.lastSaleID = 0
	c.status = 0
	c.body = nil
}

func (c *shopContext) do(method, path string, payload any, header http.Header) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	c.status = rec.Code
	c.body = rec.Body.Bytes()
	return nil
}

func (c *shopContext) decode(dest any) error {
	if err := json.Unmarshal(c.body, dest); err != nil {
		return fmt.Errorf("decode %d response %q: %w", c.status, c.body, err)
	}
	return nil
}

func (c *shopContext) expectStatus(want int) error {
	if c.status != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, c.status, c.body)
	}
	return nil
}

func (c *shopContext) itemID(name string) (int64, error) {
	id, ok := c.items[name]
	if !ok {
		return 0, fmt.Errorf("unknown item %q", name)
	}
	return id, nil
}

func (c *shopContext) ticketID(customer string) (int64, error) {
	id, ok := c.tickets[customer]
	if !ok {
		return 0, fmt.Errorf("no ticket for %q", customer)
	}
	return id, nil
}

func (c *shopContext) theCatalogueHolds(name string, stock int64, cost, price string) error {
	err := c.do(http.MethodPost, "/api/items", map[string]any{
		"name":       name,
		"category":   "General",
		"stock":      stock,
		"cost_price": cost,
		"price":      price,
	}, nil)
	if err != nil {
		return err
	}
	if err := c.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	var item inventory.Item
	if err := c.decode(&item); err != nil {
		return err
	}
	c.items[name] = item.ID
	return nil
}

// sell posts a sale. A nil unitPrice leaves the field out of the body.
func (c *shopContext) sell(qty int64, name string, unitPrice any, key string) error {
	id, err := c.itemID(name)
	if err != nil {
		return err
	}
	payload := map[string]any{"item": id, "quantity": qty}
	if unitPrice != nil {
		payload["unit_price"] = unitPrice
	}
	header := http.Header{}
	if key != "" {
		header.Set(sales.IdempotencyHeader, key)
	}
	if err := c.do(http.MethodPost, "/api/sales", payload, header); err != nil {
		return err
	}
	if c.status == http.StatusCreated {
		var sale sales.Sale
		if err := c.decode(&sale); err != nil {
			return err
		}
		c.lastSaleID = sale.ID
	}
	return nil
}

func (c *shopContext) iSell(qty int64, name string) error {
	return c.sell(qty, name, nil, "")
}

func (c *shopContext) iSellWithBlankPrice(qty int64, name string) error {
	return c.sell(qty, name, "", "")
}

func (c *shopContext) iSellAt(qty int64, name, unitPrice string) error {
	return c.sell(qty, name, unitPrice, "")
}

func (c *shopContext) iSellWithKey(qty int64, name, key string) error {
	return c.sell(qty, name, nil, key)
}

func (c *shopContext) iDeleteTheLastSale() error {
	if c.lastSaleID == 0 {
		return fmt.Errorf("no sale recorded yet")
	}
	return c.do(http.MethodDelete, "/api/sales/"+strconv.FormatInt(c.lastSaleID, 10), nil, nil)
}

func (c *shopContext) aTicketIsOpened(customer, device string) error {
	err := c.do(http.MethodPost, "/api/repairs", map[string]any{
		"customer_name": customer,
		"device_model":  device,
	}, nil)
	if err != nil {
		return err
	}
	if err := c.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	var ticket repairs.Ticket
	if err := c.decode(&ticket); err != nil {
		return err
	}
	c.tickets[customer] = ticket.ID
	return nil
}

func (c *shopContext) theTicketPlans(customer string, qty int64, name string) error {
	ticket, err := c.ticketID(customer)
	if err != nil {
		return err
	}
	item, err := c.itemID(name)
	if err != nil {
		return err
	}
	return c.do(http.MethodPost, fmt.Sprintf("/api/repairs/%d/parts", ticket), map[string]any{"item": item, "quantity": qty}, nil)
}

func (c *shopContext) theTicketIsMarked(customer, status string) error {
	ticket, err := c.ticketID(customer)
	if err != nil {
		return err
	}
	if err := c.do(http.MethodPatch, fmt.Sprintf("/api/repairs/%d", ticket), map[string]any{"status": status}, nil); err != nil {
		return err
	}
	return c.expectStatus(http.StatusOK)
}

func (c *shopContext) iRestock(name string, stock int64) error {
	id, err := c.itemID(name)
	if err != nil {
		return err
	}
	if err := c.do(http.MethodPatch, fmt.Sprintf("/api/items/%d", id), map[string]any{"stock": stock}, nil); err != nil {
		return err
	}
	return c.expectStatus(http.StatusOK)
}

func (c *shopContext) reportedDamaged(qty int64, name, reason string) error {
	id, err := c.itemID(name)
	if err != nil {
		return err
	}
	return c.do(http.MethodPost, "/api/damaged", map[string]any{"item": id, "quantity": qty, "reason": reason}, nil)
}

func (c *shopContext) theResponseStatusIs(status int) error {
	return c.expectStatus(status)
}

func (c *shopContext) theStockIs(name string, want int64) error {
	id, err := c.itemID(name)
	if err != nil {
		return err
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/items/%d", id), nil, nil); err != nil {
		return err
	}
	var item inventory.Item
	if err := c.decode(&item); err != nil {
		return err
	}
	if item.Stock != want {
		return fmt.Errorf("expected %s stock %d, got %d", name, want, item.Stock)
	}
	return nil
}

func (c *shopContext) theProblemReportsAvailable(want int64) error {
	var problem httpx.ProblemDetail
	if err := c.decode(&problem); err != nil {
		return err
	}
	if problem.Available == nil || *problem.Available != want {
		return fmt.Errorf("expected %d available, got %s", want, c.body)
	}
	return nil
}

func (c *shopContext) theSaleTotals(total, profit string) error {
	var sale sales.Sale
	if err := c.decode(&sale); err != nil {
		return err
	}
	if !sale.TotalPrice.Equal(decimal.RequireFromString(total)) || !sale.Profit.Equal(decimal.RequireFromString(profit)) {
		return fmt.Errorf("expected total %s profit %s, got %s / %s", total, profit, sale.TotalPrice, sale.Profit)
	}
	return nil
}

func (c *shopContext) theLineOutcomesAre(joined string) error {
	var result repairs.UpdateResult
	if err := c.decode(&result); err != nil {
		return err
	}
	got := make([]string, 0, len(result.Lines))
	for _, line := range result.Lines {
		got = append(got, string(line.Outcome))
	}
	if strings.Join(got, ",") != joined {
		return fmt.Errorf("expected outcomes %q, got %q", joined, strings.Join(got, ","))
	}
	return nil
}

func (c *shopContext) theDamageReportIsRecorded(deducted string) error {
	var result damage.Result
	if err := c.decode(&result); err != nil {
		return err
	}
	if result.Report.ID == 0 {
		return fmt.Errorf("damage report was not stored: %s", c.body)
	}
	if strconv.FormatBool(result.Report.Deducted) != deducted {
		return fmt.Errorf("expected deducted=%s, got %t", deducted, result.Report.Deducted)
	}
	return nil
}

func (c *shopContext) theJournalEndsWith(name, reason string, delta int64) error {
	id, err := c.itemID(name)
	if err != nil {
		return err
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/items/%d/movements", id), nil, nil); err != nil {
		return err
	}
	var movements []inventory.Movement
	if err := c.decode(&movements); err != nil {
		return err
	}
	if len(movements) == 0 {
		return fmt.Errorf("no movements for %s", name)
	}
	latest := movements[0]
	if string(latest.Reason) != reason || latest.Delta != delta {
		return fmt.Errorf("expected latest movement %s %d, got %s %d", reason, delta, latest.Reason, latest.Delta)
	}
	return nil
}

func (c *shopContext) dashboard() (dashboard.Summary, error) {
	var summary dashboard.Summary
	if err := c.do(http.MethodGet, "/api/dashboard", nil, nil); err != nil {
		return summary, err
	}
	if err := c.expectStatus(http.StatusOK); err != nil {
		return summary, err
	}
	return summary, c.decode(&summary)
}

func (c *shopContext) theDashboardShowsTotals(total, profit string) error {
	summary, err := c.dashboard()
	if err != nil {
		return err
	}
	if !summary.TotalSales.Equal(decimal.RequireFromString(total)) || !summary.NetProfit.Equal(decimal.RequireFromString(profit)) {
		return fmt.Errorf("expected sales %s profit %s, got %s / %s", total, profit, summary.TotalSales, summary.NetProfit)
	}
	return nil
}

func (c *shopContext) theDashboardShowsActiveRepairs(want int64) error {
	summary, err := c.dashboard()
	if err != nil {
		return err
	}
	if summary.ActiveRepairs != want {
		return fmt.Errorf("expected %d active repairs, got %d", want, summary.ActiveRepairs)
	}
	return nil
}

func (c *shopContext) lowStockListed(name string) (bool, error) {
	summary, err := c.dashboard()
	if err != nil {
		return false, err
	}
	for _, item := range summary.LowStockItems {
		if item.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *shopContext) theDashboardListsLowStock(name string) error {
	listed, err := c.lowStockListed(name)
	if err != nil {
		return err
	}
	if !listed {
		return fmt.Errorf("%s is not listed as low on stock", name)
	}
	return nil
}

func (c *shopContext) theDashboardDoesNotListLowStock(name string) error {
	listed, err := c.lowStockListed(name)
	if err != nil {
		return err
	}
	if listed {
		return fmt.Errorf("%s is listed as low on stock", name)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	sc := &shopContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		sc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the catalogue holds "([^"]*)" with stock (\d+), cost (\d+(?:\.\d+)?) and price (\d+(?:\.\d+)?)$`, sc.theCatalogueHolds)
	ctx.Step(`^a repair ticket is opened for "([^"]*)" on "([^"]*)"$`, sc.aTicketIsOpened)
	ctx.Step(`^I restock "([^"]*)" to (\d+)$`, sc.iRestock)

	// When steps
	ctx.Step(`^I sell (\d+) of "([^"]*)"$`, sc.iSell)
	ctx.Step(`^I sell (\d+) of "([^"]*)" at (\d+(?:\.\d+)?) each$`, sc.iSellAt)
	ctx.Step(`^I sell (\d+) of "([^"]*)" with a blank price$`, sc.iSellWithBlankPrice)
	ctx.Step(`^I sell (\d+) of "([^"]*)" with idempotency key "([^"]*)"$`, sc.iSellWithKey)
	ctx.Step(`^I delete the last sale$`, sc.iDeleteTheLastSale)
	ctx.Step(`^the ticket for "([^"]*)" plans (\d+) of "([^"]*)"$`, sc.theTicketPlans)
	ctx.Step(`^the ticket for "([^"]*)" is marked "([^"]*)"$`, sc.theTicketIsMarked)
	ctx.Step(`^(\d+) of "([^"]*)" are reported damaged because "([^"]*)"$`, sc.reportedDamaged)

	// Then steps
	ctx.Step(`^the response status is (\d+)$`, sc.theResponseStatusIs)
	ctx.Step(`^the stock of "([^"]*)" is (\d+)$`, sc.theStockIs)
	ctx.Step(`^the problem reports (\d+) available$`, sc.theProblemReportsAvailable)
	ctx.Step(`^the sale totals (\S+) with profit (\S+)$`, sc.theSaleTotals)
	ctx.Step(`^the line outcomes are "([^"]*)"$`, sc.theLineOutcomesAre)
	ctx.Step(`^the damage report is recorded with deducted (true|false)$`, sc.theDamageReportIsRecorded)
	ctx.Step(`^the movement journal of "([^"]*)" ends with "([^"]*)" of (-?\d+)$`, sc.theJournalEndsWith)
	ctx.Step(`^the dashboard shows total sales (\S+) and net profit (\S+)$`, sc.theDashboardShowsTotals)
	ctx.Step(`^the dashboard shows (\d+) active repairs?$`, sc.theDashboardShowsActiveRepairs)
	ctx.Step(`^the dashboard lists "([^"]*)" as low on stock$`, sc.theDashboardListsLowStock)
	ctx.Step(`^the dashboard does not list "([^"]*)" as low on stock$`, sc.theDashboardDoesNotListLowStock)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
