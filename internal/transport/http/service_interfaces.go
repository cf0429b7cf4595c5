package http

import (
	"context"

	"rxpulse/internal/analytics"
	"rxpulse/internal/dataset"
	"rxpulse/internal/services"
)

// DashboardServiceInterface defines the dashboard query operations.
type DashboardServiceInterface interface {
	Options(ctx context.Context) (analytics.Options, error)
	Records(ctx context.Context, criteria analytics.Criteria) ([]dataset.Record, error)
	Aggregate(ctx context.Context, criteria analytics.Criteria, groupBy, metric string, op analytics.Op) ([]analytics.Group, error)
	Summary(ctx context.Context, criteria analytics.Criteria) (analytics.Summary, error)
	Opportunities(ctx context.Context, criteria analytics.Criteria, threshold *float64) ([]analytics.Opportunity, error)
	Charts(ctx context.Context, criteria analytics.Criteria) (map[string][]analytics.Group, error)
	Reload(ctx context.Context) (*dataset.Table, error)
}

// HealthServiceInterface defines the health check operations.
type HealthServiceInterface interface {
	Check(ctx context.Context) services.HealthStatus
	Version() string
}
