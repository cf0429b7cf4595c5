// Package http contains the chi HTTP handlers for the dashboard API.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"rxpulse/internal/analytics"
	apierrors "rxpulse/internal/errors"
)

// DashboardHandler serves the filter, aggregation and insight endpoints.
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDashboardHandler creates a dashboard handler with RFC 7807 error
// handling.
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/options", h.GetOptions)
	r.Get("/records", h.GetRecords)
	r.Get("/summary", h.GetSummary)
	r.Get("/charts", h.GetCharts)
	r.Get("/opportunities", h.GetOpportunities)
	r.Post("/aggregate", h.Aggregate)
	r.Post("/reload", h.Reload)

	return r
}

// GetOptions handles GET /api/data/options.
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.Options(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   options,
	})
}

// GetRecords handles GET /api/data/records. Filter dimensions come from
// repeated or comma-separated query parameters; price bounds from
// price_min and price_max.
func (h *DashboardHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	records, err := h.service.Records(r.Context(), criteria)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// GetSummary handles GET /api/data/summary.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), criteria)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// GetCharts handles GET /api/data/charts, returning the standard
// dashboard chart feeds in one response.
func (h *DashboardHandler) GetCharts(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	charts, err := h.service.Charts(r.Context(), criteria)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   charts,
	})
}

// GetOpportunities handles GET /api/data/opportunities. An optional
// threshold parameter overrides the configured minimum price difference.
func (h *DashboardHandler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var threshold *float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("threshold",
				fmt.Sprintf("must be a number, got %q", raw)))
			return
		}
		threshold = &value
	}

	opportunities, err := h.service.Opportunities(r.Context(), criteria, threshold)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   opportunities,
		"count":  len(opportunities),
	})
}

// AggregateRequest is the POST /api/data/aggregate body.
type AggregateRequest struct {
	Criteria analytics.Criteria `json:"criteria"`
	GroupBy  string             `json:"group_by" validate:"required"`
	Metric   string             `json:"metric" validate:"required"`
	Op       string             `json:"op" validate:"required,oneof=sum mean"`
}

// Bind implements render.Binder.
func (req *AggregateRequest) Bind(r *http.Request) error {
	return nil
}

// Aggregate handles POST /api/data/aggregate.
func (h *DashboardHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := render.Bind(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, validationToAPIError(err))
		return
	}

	groups, err := h.service.Aggregate(r.Context(), req.Criteria, req.GroupBy, req.Metric, analytics.Op(req.Op))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":   "success",
		"data":     groups,
		"count":    len(groups),
		"group_by": req.GroupBy,
		"metric":   req.Metric,
		"op":       req.Op,
	})
}

// Reload handles POST /api/data/reload.
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "dataset reload requested",
		slog.String("remote_addr", r.RemoteAddr))

	table, err := h.service.Reload(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"rows":      table.Len(),
			"degraded":  table.Degraded(),
			"loaded_at": table.LoadedAt(),
		},
	})
}

// criteriaFromQuery builds filter criteria from query parameters. An
// absent parameter leaves its dimension unconstrained; a present but
// empty one selects nothing.
func criteriaFromQuery(query url.Values) (analytics.Criteria, error) {
	criteria := analytics.Criteria{
		Cities:   multiValue(query, "cities"),
		Months:   multiValue(query, "months"),
		Diseases: multiValue(query, "diseases"),
	}

	for _, bound := range []struct {
		param string
		dst   **float64
	}{
		{"price_min", &criteria.PriceMin},
		{"price_max", &criteria.PriceMax},
	} {
		raw := query.Get(bound.param)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return analytics.Criteria{}, apierrors.ErrValidation(bound.param,
				fmt.Sprintf("must be a number, got %q", raw))
		}
		*bound.dst = &value
	}

	return criteria, nil
}

// multiValue collects values of a repeated query parameter, splitting
// comma-separated lists. It keeps the nil/empty distinction: nil when
// the parameter is absent, empty when present without values.
func multiValue(query url.Values, key string) []string {
	raw, present := query[key]
	if !present {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values
}

// validationToAPIError converts validator errors to field-level API
// errors.
func validationToAPIError(err error) *apierrors.APIError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.InvalidRequestWithError(err)
	}

	fields := make([]apierrors.ValidationError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, apierrors.ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed validation rule %q", fe.Tag()),
		})
	}
	return apierrors.NewValidationErrors(fields)
}
