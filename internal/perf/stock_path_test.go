package perf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repairdesk/internal/app"
	"github.com/repairdesk/repairdesk/internal/inventory"
	jobmetrics "github.com/repairdesk/repairdesk/internal/jobs"
	"github.com/repairdesk/repairdesk/internal/platform/memstore"
	"github.com/repairdesk/repairdesk/internal/sales"
)

func newShop(tb testing.TB, stock int64) (*app.Services, inventory.Item) {
	tb.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := app.NewServices(app.MemoryStores(memstore.New(), logger), nil, nil, logger)
	item, err := svc.Inventory.CreateItem(context.Background(), inventory.CreateItemInput{
		Name:      "Type-C Charger 25W",
		Category:  "Accessory",
		Stock:     stock,
		CostPrice: decimal.NewFromInt(450),
		Price:     decimal.NewFromInt(899),
	})
	require.NoError(tb, err)
	return svc, item
}

func TestCounterSaleLatencyTarget(t *testing.T) {
	svc, item := newShop(t, 500)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		_, err := svc.Sales.CreateSale(ctx, sales.CreateSaleInput{ItemID: item.ID, Quantity: 1})
		require.NoError(t, err)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("counter sale latency regression: p95=%s threshold=50ms", p95)
	}

	summary, err := svc.Dashboard.GetDashboard(ctx)
	require.NoError(t, err)
	require.True(t, summary.TotalSales.Equal(decimal.NewFromInt(200*899)))
}

func TestJobFailureRatioStaysVisible(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	for i := 0; i < 20; i++ {
		require.NoError(t, metrics.Track("stock:reconcile").End(nil))
	}
	for i := 0; i < 2; i++ {
		require.Error(t, metrics.Track("stock:reconcile").End(errors.New("db timeout")))
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	runs := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "repairdesk_jobs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			runs[labelValue(m, "status")] += m.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(20), runs["success"])
	require.Equal(t, float64(2), runs["failure"])
}

func BenchmarkCreateSale(b *testing.B) {
	svc, item := newShop(b, int64(b.N)+1)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Sales.CreateSale(ctx, sales.CreateSaleInput{ItemID: item.ID, Quantity: 1}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDashboardCompute(b *testing.B) {
	svc, item := newShop(b, 1000)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if _, err := svc.Sales.CreateSale(ctx, sales.CreateSaleInput{ItemID: item.ID, Quantity: 1}); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Dashboard.Compute(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
