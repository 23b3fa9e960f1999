package cache

import (
	"context"
	"time"

	"skycafe/backend/internal/domain"
)

// StatsCache holds recently computed dashboard summaries, keyed by
// date range. Reads from the spreadsheet are slow and rate-limited, so
// the dashboard is the one place a short-lived cache pays off.
type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardStats, ttl time.Duration) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}
