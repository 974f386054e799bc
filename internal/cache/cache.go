package cache

import (
	"context"
	"time"

	"cardapio/backend/internal/domain"
)

// ReportCache stores computed month views. Keys carry the snapshot
// fingerprint, so entries never need explicit invalidation.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.MonthView, bool, error)
	Set(ctx context.Context, key string, value *domain.MonthView, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.MonthView, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.MonthView, _ time.Duration) error {
	return nil
}
