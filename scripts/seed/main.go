// Command seed loads a small demo catalogue and a day of shop activity through the services,
// so every row carries matching stock movements.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/repairdesk/repairdesk/internal/app"
	"github.com/repairdesk/repairdesk/internal/damage"
	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/repairs"
	"github.com/repairdesk/repairdesk/internal/sales"
	"github.com/repairdesk/repairdesk/jobs"
)

type catalogueEntry struct {
	name, category string
	stock          int64
	cost, price    string
}

var catalogue = []catalogueEntry{
	{"Redmi Note 12", "Phone", 10, "18000", "21999"},
	{"Samsung Galaxy A15", "Phone", 6, "20500", "24499"},
	{"Nokia 105", "Phone", 2, "2300", "2999"},
	{"iPhone 11 Display", "Spare Part", 4, "4200", "6500"},
	{"Redmi Note 12 Battery", "Spare Part", 8, "900", "1500"},
	{"Type-C Charger 25W", "Accessory", 25, "450", "899"},
	{"Tempered Glass", "Accessory", 60, "40", "200"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger, flush := app.NewLogger(cfg)
	defer flush()

	rt, err := app.OpenRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("open runtime", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close()

	if err := seed(ctx, rt.Services, logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed complete")

	if cfg.UsesPostgres() && rt.Redis != nil {
		queueFollowUps(ctx, cfg.RedisAddr, logger)
	}
}

// queueFollowUps asks a running worker to check the seeded journal and warm the dashboard.
func queueFollowUps(ctx context.Context, redisAddr string, logger *slog.Logger) {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err != nil {
		logger.Warn("job client", slog.Any("error", err))
		return
	}
	defer client.Close()
	if _, err := client.EnqueueStockReconcile(ctx); err != nil {
		logger.Warn("enqueue reconcile", slog.Any("error", err))
	}
	if _, err := client.EnqueueDashboardWarmup(ctx); err != nil {
		logger.Warn("enqueue dashboard warmup", slog.Any("error", err))
	}
}

func seed(ctx context.Context, svc *app.Services, logger *slog.Logger) error {
	items := make(map[string]inventory.Item, len(catalogue))
	for _, entry := range catalogue {
		item, err := svc.Inventory.CreateItem(ctx, inventory.CreateItemInput{
			Name:      entry.name,
			Category:  entry.category,
			Stock:     entry.stock,
			CostPrice: decimal.RequireFromString(entry.cost),
			Price:     decimal.RequireFromString(entry.price),
		})
		if err != nil {
			return err
		}
		items[entry.name] = item
	}
	logger.Info("seeded catalogue", slog.Int("items", len(items)))

	wholesale := decimal.RequireFromString("650")
	saleInputs := []sales.CreateSaleInput{
		{ItemID: items["Redmi Note 12"].ID, Quantity: 1, PaymentMethod: "fonepay", CustomerName: "Sita", IMEINumber: "356789104512331"},
		{ItemID: items["Tempered Glass"].ID, Quantity: 3, PaymentMethod: "cash"},
		{ItemID: items["Type-C Charger 25W"].ID, Quantity: 10, UnitPrice: sales.PriceOf(wholesale), SaleType: "wholesale", PaymentMethod: "bank"},
	}
	for _, in := range saleInputs {
		if _, err := svc.Sales.CreateSale(ctx, in); err != nil {
			return err
		}
	}

	ticket, err := svc.Repairs.CreateTicket(ctx, repairs.CreateTicketInput{
		CustomerName:     "Ram",
		DeviceModel:      "iPhone 11",
		IssueDescription: "Cracked display",
		EstimatedCost:    decimal.RequireFromString("8000"),
	})
	if err != nil {
		return err
	}
	if _, err := svc.Repairs.AddPart(ctx, ticket.ID, repairs.AddPartInput{ItemID: items["iPhone 11 Display"].ID}); err != nil {
		return err
	}
	done := string(repairs.StatusDone)
	if _, err := svc.Repairs.UpdateTicket(ctx, ticket.ID, repairs.UpdateTicketInput{Status: &done}); err != nil {
		return err
	}
	if _, err := svc.Repairs.CreateTicket(ctx, repairs.CreateTicketInput{
		CustomerName:     "Gita",
		DeviceModel:      "Redmi Note 12",
		IssueDescription: "Battery drains overnight",
		EstimatedCost:    decimal.RequireFromString("1800"),
	}); err != nil {
		return err
	}

	_, err = svc.Damage.CreateReport(ctx, damage.CreateReportInput{
		ItemID:   items["Tempered Glass"].ID,
		Quantity: 2,
		Reason:   "Cracked while fitting",
	})
	return err
}
