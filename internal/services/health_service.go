package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"rxpulse/internal/dataset"
	ws "rxpulse/internal/websocket"
)

// HealthService reports liveness and dataset readiness.
type HealthService struct {
	version   string
	store     *dataset.Store
	hub       *ws.Hub
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Dataset   DatasetHealth          `json:"dataset"`
	Clients   int                    `json:"websocket_clients"`
}

// DatasetHealth describes the state of the cached table.
type DatasetHealth struct {
	Status   string    `json:"status"`
	Rows     int       `json:"rows,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Source   string    `json:"source,omitempty"`
}

// NewHealthService creates a health service.
func NewHealthService(version string, store *dataset.Store, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// Check reports the current health. The dataset is probed through the
// store so the first health check triggers the initial load.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}

	table, err := s.store.Get(ctx)
	if err != nil {
		status.Status = "degraded"
		status.Dataset = DatasetHealth{Status: "unavailable"}
		s.logger.WarnContext(ctx, "health check: dataset unavailable",
			slog.String("error", err.Error()))
	} else {
		status.Dataset = DatasetHealth{
			Status:   "loaded",
			Rows:     table.Len(),
			Degraded: table.Degraded(),
			LoadedAt: table.LoadedAt(),
			Source:   table.SourcePath(),
		}
	}

	if s.hub != nil {
		status.Clients = s.hub.ClientCount()
	}
	return status
}

// Version returns the service version string.
func (s *HealthService) Version() string {
	return s.version
}
