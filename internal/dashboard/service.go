package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/repairdesk/repairdesk/internal/inventory"
	"github.com/repairdesk/repairdesk/internal/platform/cache"
	"github.com/repairdesk/repairdesk/internal/repairs"
)

// Service computes and caches the dashboard summary.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Versioned
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. A nil or disabled cache computes on every call.
func NewService(repo RepositoryPort, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger, now: time.Now}
}

// GetDashboard returns the cached summary, computing it on a miss. Concurrent
// misses for the same cache version share one computation.
func (s *Service) GetDashboard(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "summary")
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard cache unavailable", slog.Any("error", err))
		return s.Compute(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		var (
			summary    Summary
			computeErr error
		)
		err := s.cache.FetchJSON(detached, key, &summary, func(ctx context.Context) (any, error) {
			var v Summary
			v, computeErr = s.Compute(ctx)
			return v, computeErr
		})
		if err != nil && computeErr == nil {
			s.logger.WarnContext(ctx, "dashboard cache read failed", slog.String("key", key), slog.Any("error", err))
			return s.Compute(detached)
		}
		return summary, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

// Compute builds the summary from one read-only snapshot, bypassing the cache.
func (s *Service) Compute(ctx context.Context) (Summary, error) {
	var summary Summary
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, r SnapshotReader) error {
		var err error
		if summary.TotalSales, summary.NetProfit, err = r.SalesTotals(ctx); err != nil {
			return err
		}
		if summary.InventoryValue, err = r.InventoryValue(ctx); err != nil {
			return err
		}
		if summary.ActiveRepairs, err = r.CountActiveRepairs(ctx); err != nil {
			return err
		}
		if summary.LowStockItems, err = r.LowStockItems(ctx, LowStockThreshold); err != nil {
			return err
		}
		if summary.TopItems, err = r.TopItemsByRevenue(ctx, TopItemsLimit); err != nil {
			return err
		}
		summary.RecentRepairs, err = r.RecentRepairs(ctx, RecentRepairsLimit)
		return err
	})
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard: compute: %w", err)
	}
	if summary.LowStockItems == nil {
		summary.LowStockItems = []inventory.Item{}
	}
	if summary.TopItems == nil {
		summary.TopItems = []TopItem{}
	}
	if summary.RecentRepairs == nil {
		summary.RecentRepairs = []repairs.Ticket{}
	}
	summary.LowStockCount = int64(len(summary.LowStockItems))
	summary.GeneratedAt = s.now().UTC()
	return summary, nil
}

// Invalidate orphans every cached summary. Write services call it after commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warmup fills the cache for the current version.
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.GetDashboard(ctx)
	return err
}
