package cache

import (
	"context"
	"time"

	"shiftdesk/backend/internal/domain"
)

// ReportCache keeps summaries of closed shifts. Closed shifts never change, so
// entries only expire by TTL.
type ReportCache interface {
	Get(ctx context.Context, shiftID string) (*domain.ShiftSummary, bool, error)
	Set(ctx context.Context, shiftID string, value *domain.ShiftSummary, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ShiftSummary, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ShiftSummary, _ time.Duration) error {
	return nil
}

func reportKey(shiftID string) string {
	return "shiftdesk:report:" + shiftID
}
