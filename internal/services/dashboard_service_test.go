package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rxpulse/internal/analytics"
	"rxpulse/internal/config"
	"rxpulse/internal/dataset"
	apperrors "rxpulse/internal/errors"
)

const serviceTestCSV = `City,Month,Disease,Medicine,Orders,Price,Competitor_Price
Baghdad,January,Flu,Panadol,10,100,120
Basra,January,Asthma,Ventolin,5,40,50
Baghdad,February,Flu,Aspirin,8,25,20
Mosul,March,Diabetes,Metformin,12,60,60
`

func newTestService(t *testing.T) (*DashboardService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(serviceTestCSV), 0o644))

	store := dataset.NewStore(dataset.NewLoader(dataset.DefaultLoaderConfig(), nil), path, nil)
	svc := NewDashboardService(store, config.Default().Dataset, nil, nil, nil)
	return svc, path
}

func TestDashboardService_Options(t *testing.T) {
	svc, _ := newTestService(t)

	opts, err := svc.Options(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Baghdad", "Basra", "Mosul"}, opts.Cities)
	assert.Equal(t, []string{"January", "February", "March"}, opts.Months)
	assert.InDelta(t, 25.0, opts.PriceMin, 1e-9)
	assert.InDelta(t, 100.0, opts.PriceMax, 1e-9)
}

func TestDashboardService_Records(t *testing.T) {
	svc, _ := newTestService(t)

	records, err := svc.Records(context.Background(), analytics.Criteria{Cities: []string{"Baghdad"}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Panadol", records[0].Medicine)
	assert.Equal(t, "Aspirin", records[1].Medicine)
}

func TestDashboardService_Aggregate(t *testing.T) {
	svc, _ := newTestService(t)

	groups, err := svc.Aggregate(context.Background(), analytics.Criteria{}, dataset.ColCity, "Revenue", analytics.OpSum)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Baghdad", groups[0].Key)
	assert.InDelta(t, 1200.0, groups[0].Value, 1e-9)
}

func TestDashboardService_Aggregate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Aggregate(context.Background(), analytics.Criteria{}, "Nope", "Revenue", analytics.OpSum)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
}

func TestDashboardService_Summary(t *testing.T) {
	svc, _ := newTestService(t)

	summary, err := svc.Summary(context.Background(), analytics.Criteria{Months: []string{"January"}})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Records)
	assert.InDelta(t, 1200.0, summary.TotalRevenue, 1e-9)
	assert.Equal(t, int64(15), summary.TotalOrders)
	assert.False(t, summary.Degraded)
}

func TestDashboardService_Opportunities(t *testing.T) {
	svc, _ := newTestService(t)

	opps, err := svc.Opportunities(context.Background(), analytics.Criteria{}, nil)
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, "Panadol", opps[0].Medicine)
	assert.Equal(t, "Ventolin", opps[1].Medicine)
}

func TestDashboardService_Opportunities_ThresholdOverride(t *testing.T) {
	svc, _ := newTestService(t)

	threshold := 15.0
	opps, err := svc.Opportunities(context.Background(), analytics.Criteria{}, &threshold)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "Panadol", opps[0].Medicine)
}

func TestDashboardService_Charts(t *testing.T) {
	svc, _ := newTestService(t)

	charts, err := svc.Charts(context.Background(), analytics.Criteria{})
	require.NoError(t, err)
	require.Contains(t, charts, "orders_by_city")
	require.Contains(t, charts, "orders_by_disease")
	require.Contains(t, charts, "orders_by_month")
	require.Contains(t, charts, "revenue_by_city")
	require.Contains(t, charts, "price_difference_by_city")

	ordersByCity := charts["orders_by_city"]
	require.Len(t, ordersByCity, 3)
	assert.Equal(t, "Baghdad", ordersByCity[0].Key)
	assert.InDelta(t, 18.0, ordersByCity[0].Value, 1e-9)
}

func TestDashboardService_Reload(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))

	require.NoError(t, os.WriteFile(path, []byte("City,Month,Disease,Medicine,Orders,Price\nErbil,April,Flu,Panadol,1,10\n"), 0o644))

	table, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.True(t, table.Degraded())

	records, err := svc.Records(ctx, analytics.Criteria{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDashboardService_Reload_KeepsServingOnFailure(t *testing.T) {
	svc, path := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))

	_, err := svc.Reload(ctx)
	require.Error(t, err)

	records, err := svc.Records(ctx, analytics.Criteria{})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestDashboardService_MissingDataset(t *testing.T) {
	store := dataset.NewStore(dataset.NewLoader(dataset.DefaultLoaderConfig(), nil), filepath.Join(t.TempDir(), "missing.csv"), nil)
	svc := NewDashboardService(store, config.Default().Dataset, nil, nil, nil)

	_, err := svc.Options(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeLoad, appErr.Type)
}
