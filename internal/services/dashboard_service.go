// Package services contains the business layer between HTTP transport
// and the dataset/analytics packages.
package services

import (
	"context"
	"log/slog"
	"time"

	"rxpulse/internal/analytics"
	"rxpulse/internal/config"
	"rxpulse/internal/dataset"
	"rxpulse/internal/infrastructure"
	ws "rxpulse/internal/websocket"
)

// DashboardService answers filter, aggregation and insight queries over
// the cached sales table.
type DashboardService struct {
	store   *dataset.Store
	hub     *ws.Hub
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	opportunityThreshold float64
}

// NewDashboardService wires the service. hub and metrics may be nil;
// reload notifications and instrumentation are then skipped.
func NewDashboardService(store *dataset.Store, cfg config.DatasetConfig, hub *ws.Hub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.OpportunityThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &DashboardService{
		store:                store,
		hub:                  hub,
		metrics:              metrics,
		logger:               logger.With(slog.String("component", "dashboard_service")),
		opportunityThreshold: threshold,
	}
}

// Options returns the filterable domain of the loaded table.
func (s *DashboardService) Options(ctx context.Context) (analytics.Options, error) {
	table, err := s.store.Get(ctx)
	if err != nil {
		return analytics.Options{}, err
	}
	return analytics.OptionsOf(table), nil
}

// Records returns the rows matching criteria, in load order.
func (s *DashboardService) Records(ctx context.Context, criteria analytics.Criteria) ([]dataset.Record, error) {
	start := time.Now()
	table, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	records := analytics.Filter(table, criteria)
	s.metrics.RecordQuery(ctx, "records", time.Since(start))
	return records, nil
}

// Aggregate filters and groups the table in one call.
func (s *DashboardService) Aggregate(ctx context.Context, criteria analytics.Criteria, groupBy, metric string, op analytics.Op) ([]analytics.Group, error) {
	start := time.Now()
	table, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := analytics.Aggregate(analytics.Filter(table, criteria), groupBy, metric, op)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordQuery(ctx, "aggregate", time.Since(start))
	return groups, nil
}

// Summary computes the KPI block over the filtered table.
func (s *DashboardService) Summary(ctx context.Context, criteria analytics.Criteria) (analytics.Summary, error) {
	start := time.Now()
	table, err := s.store.Get(ctx)
	if err != nil {
		return analytics.Summary{}, err
	}
	summary := analytics.Summarize(analytics.Filter(table, criteria), table.Degraded())
	s.metrics.RecordQuery(ctx, "summary", time.Since(start))
	return summary, nil
}

// Opportunities returns filtered records priced below their competitor
// by more than the threshold, best first. A nil threshold uses the
// configured default.
func (s *DashboardService) Opportunities(ctx context.Context, criteria analytics.Criteria, threshold *float64) ([]analytics.Opportunity, error) {
	start := time.Now()
	table, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	limit := s.opportunityThreshold
	if threshold != nil {
		limit = *threshold
	}
	opps := analytics.Opportunities(analytics.Filter(table, criteria), limit)
	s.metrics.RecordQuery(ctx, "opportunities", time.Since(start))
	return opps, nil
}

// chartFeeds names the standard dashboard charts and the aggregation
// each one is built from.
var chartFeeds = []struct {
	name    string
	groupBy string
	metric  string
	op      analytics.Op
}{
	{"orders_by_city", dataset.ColCity, dataset.ColOrders, analytics.OpSum},
	{"orders_by_disease", dataset.ColDisease, dataset.ColOrders, analytics.OpSum},
	{"orders_by_month", dataset.ColMonth, dataset.ColOrders, analytics.OpSum},
	{"revenue_by_city", dataset.ColCity, "Revenue", analytics.OpSum},
	{"price_difference_by_city", dataset.ColCity, "Price_Difference", analytics.OpMean},
}

// Charts computes the standard dashboard chart feeds over the filtered
// table in one pass.
func (s *DashboardService) Charts(ctx context.Context, criteria analytics.Criteria) (map[string][]analytics.Group, error) {
	start := time.Now()
	table, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	records := analytics.Filter(table, criteria)

	charts := make(map[string][]analytics.Group, len(chartFeeds))
	for _, feed := range chartFeeds {
		groups, err := analytics.Aggregate(records, feed.groupBy, feed.metric, feed.op)
		if err != nil {
			return nil, err
		}
		charts[feed.name] = groups
	}
	s.metrics.RecordQuery(ctx, "charts", time.Since(start))
	return charts, nil
}

// Reload re-reads the dataset file, replaces the cache and notifies
// connected clients. The previous table stays in place on failure.
func (s *DashboardService) Reload(ctx context.Context) (*dataset.Table, error) {
	table, err := s.store.Reload(ctx)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDatasetRows(ctx, table.Len())
	if s.hub != nil {
		s.hub.BroadcastDataRefresh(table.Len(), table.Degraded())
	}

	s.logger.InfoContext(ctx, "dataset reload complete",
		slog.Int("rows", table.Len()),
		slog.Bool("degraded", table.Degraded()))
	return table, nil
}

// Warm loads the dataset eagerly so the first request does not pay the
// load cost. Errors are returned so callers can decide whether to start
// degraded or abort.
func (s *DashboardService) Warm(ctx context.Context) error {
	table, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	s.metrics.RecordDatasetRows(ctx, table.Len())
	return nil
}
