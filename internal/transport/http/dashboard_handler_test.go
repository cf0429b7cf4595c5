package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rxpulse/internal/analytics"
	"rxpulse/internal/dataset"
	apierrors "rxpulse/internal/errors"
)

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Options(ctx context.Context) (analytics.Options, error) {
	args := m.Called()
	return args.Get(0).(analytics.Options), args.Error(1)
}

func (m *MockDashboardService) Records(ctx context.Context, criteria analytics.Criteria) ([]dataset.Record, error) {
	args := m.Called(criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dataset.Record), args.Error(1)
}

func (m *MockDashboardService) Aggregate(ctx context.Context, criteria analytics.Criteria, groupBy, metric string, op analytics.Op) ([]analytics.Group, error) {
	args := m.Called(criteria, groupBy, metric, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.Group), args.Error(1)
}

func (m *MockDashboardService) Summary(ctx context.Context, criteria analytics.Criteria) (analytics.Summary, error) {
	args := m.Called(criteria)
	return args.Get(0).(analytics.Summary), args.Error(1)
}

func (m *MockDashboardService) Opportunities(ctx context.Context, criteria analytics.Criteria, threshold *float64) ([]analytics.Opportunity, error) {
	args := m.Called(criteria, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.Opportunity), args.Error(1)
}

func (m *MockDashboardService) Charts(ctx context.Context, criteria analytics.Criteria) (map[string][]analytics.Group, error) {
	args := m.Called(criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]analytics.Group), args.Error(1)
}

func (m *MockDashboardService) Reload(ctx context.Context) (*dataset.Table, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataset.Table), args.Error(1)
}

func newTestHandler(svc DashboardServiceInterface) *DashboardHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewDashboardHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
}

func TestDashboardHandler_GetOptions(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Options").Return(analytics.Options{
		Cities:   []string{"Baghdad", "Basra"},
		PriceMin: 10,
		PriceMax: 100,
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/options", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetRecords_QueryParsing(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected analytics.Criteria
	}{
		{
			name:     "no filters",
			url:      "/records",
			expected: analytics.Criteria{},
		},
		{
			name:     "repeated params",
			url:      "/records?cities=Baghdad&cities=Basra",
			expected: analytics.Criteria{Cities: []string{"Baghdad", "Basra"}},
		},
		{
			name:     "comma separated",
			url:      "/records?months=January,February",
			expected: analytics.Criteria{Months: []string{"January", "February"}},
		},
		{
			name:     "explicit empty set",
			url:      "/records?cities=",
			expected: analytics.Criteria{Cities: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			svc.On("Records", tt.expected).Return([]dataset.Record{}, nil)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			newTestHandler(svc).Routes().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_GetRecords_PriceBounds(t *testing.T) {
	min, max := 10.0, 50.0
	svc := new(MockDashboardService)
	svc.On("Records", analytics.Criteria{PriceMin: &min, PriceMax: &max}).
		Return([]dataset.Record{{City: "Baghdad"}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/records?price_min=10&price_max=50", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetRecords_InvalidPrice(t *testing.T) {
	svc := new(MockDashboardService)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/records?price_min=cheap", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/validation", problem["type"])
	svc.AssertNotCalled(t, "Records")
}

func TestDashboardHandler_Aggregate(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Aggregate", analytics.Criteria{Cities: []string{"Baghdad"}}, "City", "Revenue", analytics.OpSum).
		Return([]analytics.Group{{Key: "Baghdad", Value: 1200, Count: 2}}, nil)

	body := `{"criteria":{"cities":["Baghdad"]},"group_by":"City","metric":"Revenue","op":"sum"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/aggregate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "City", resp["group_by"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_Aggregate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing group_by", `{"metric":"Revenue","op":"sum"}`},
		{"missing metric", `{"group_by":"City","op":"sum"}`},
		{"bad op", `{"group_by":"City","metric":"Revenue","op":"median"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/aggregate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			newTestHandler(svc).Routes().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "Aggregate")
		})
	}
}

func TestDashboardHandler_Aggregate_UnknownColumn(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Aggregate", analytics.Criteria{}, "Nope", "Revenue", analytics.OpSum).
		Return(nil, apierrors.NewAppValidationError(`unknown group-by column "Nope"`))

	body := `{"group_by":"Nope","metric":"Revenue","op":"sum"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/aggregate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/validation", problem["type"])
}

func TestDashboardHandler_Reload(t *testing.T) {
	table := dataset.NewTable([]dataset.Record{{City: "Baghdad"}}, "Competitor_Price", "sales.csv", 0.3)
	svc := new(MockDashboardService)
	svc.On("Reload").Return(table, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["rows"])
	assert.Equal(t, false, data["degraded"])
}

func TestDashboardHandler_Reload_Failure(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Reload").Return(nil, apierrors.NewLoadError("cannot open dataset file", nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/dataset/load-failed", problem["type"])
}

func TestDashboardHandler_GetSummary(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Summary", analytics.Criteria{Diseases: []string{"Flu"}}).
		Return(analytics.Summary{Records: 2, TotalRevenue: 1200, TotalOrders: 18}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary?diseases=Flu", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1200), data["total_revenue"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetOpportunities(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Opportunities", analytics.Criteria{}, (*float64)(nil)).Return([]analytics.Opportunity{
		{Medicine: "Panadol", PriceDifference: 20},
		{Medicine: "Ventolin", PriceDifference: 10},
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/opportunities", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["count"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetOpportunities_ThresholdOverride(t *testing.T) {
	threshold := 15.0
	svc := new(MockDashboardService)
	svc.On("Opportunities", analytics.Criteria{}, &threshold).Return([]analytics.Opportunity{
		{Medicine: "Panadol", PriceDifference: 20},
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/opportunities?threshold=15", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_GetOpportunities_InvalidThreshold(t *testing.T) {
	svc := new(MockDashboardService)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/opportunities?threshold=lots", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Opportunities")
}

func TestDashboardHandler_GetCharts(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Charts", analytics.Criteria{}).Return(map[string][]analytics.Group{
		"orders_by_city": {{Key: "Baghdad", Value: 18, Count: 2}},
	}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/charts", nil)
	newTestHandler(svc).Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Contains(t, data, "orders_by_city")
	svc.AssertExpectations(t)
}
