package exporter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rxpulse/internal/analytics"
	apperrors "rxpulse/internal/errors"
)

func TestReportWriter_WriteSummary(t *testing.T) {
	writer := NewReportWriter(t.TempDir(), nil)

	path, err := writer.WriteSummary(analytics.Summary{
		Records:      4,
		TotalRevenue: 2120,
		TotalOrders:  35,
	}, "summary.json")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	summary := decoded["summary"].(map[string]interface{})
	assert.Equal(t, float64(2120), summary["total_revenue"])
	assert.NotEmpty(t, decoded["generated_at"])
}

func TestReportWriter_WriteGroups(t *testing.T) {
	writer := NewReportWriter(t.TempDir(), nil)

	path, err := writer.WriteGroups([]analytics.Group{
		{Key: "Baghdad", Value: 1200, Count: 2},
		{Key: "Basra", Value: 200, Count: 1},
	}, "City", "Revenue", "revenue_by_city.csv")
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"City", "Revenue", "Count"}, rows[0])
	assert.Equal(t, []string{"Baghdad", "1200", "2"}, rows[1])
}

func TestReportWriter_WriteOpportunities(t *testing.T) {
	writer := NewReportWriter(t.TempDir(), nil)

	path, err := writer.WriteOpportunities([]analytics.Opportunity{
		{City: "Baghdad", Month: "January", Medicine: "Panadol", Price: 100, CompetitorPrice: 120, PriceDifference: 20, Orders: 10},
	}, "opportunities.csv")
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Panadol", rows[1][2])
	assert.Equal(t, "20.00", rows[1][5])
}

func TestReportWriter_CreatesOutputDir(t *testing.T) {
	dir := t.TempDir() + "/nested/reports"
	writer := NewReportWriter(dir, nil)

	_, err := writer.WriteSummary(analytics.Summary{}, "summary.json")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestReportWriter_UnwritableOutputDir(t *testing.T) {
	// A regular file where the output directory should be makes
	// MkdirAll fail on every platform.
	blocker := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	writer := NewReportWriter(blocker, nil)

	_, err := writer.WriteSummary(analytics.Summary{}, "summary.json")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeStorage, appErr.Type)
	assert.Equal(t, blocker, appErr.Context["dir"])

	_, err = writer.WriteGroups(nil, "City", "Revenue", "revenue_by_city.csv")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeStorage, appErr.Type)
}
