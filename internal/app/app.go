// Package app wires the application: configuration, logging, metrics,
// the dataset store, services, HTTP transport and the websocket hub.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"rxpulse/internal/config"
	"rxpulse/internal/dataset"
	apperrors "rxpulse/internal/errors"
	"rxpulse/internal/infrastructure"
	customMiddleware "rxpulse/internal/middleware"
	"rxpulse/internal/services"
	transporthttp "rxpulse/internal/transport/http"
	ws "rxpulse/internal/websocket"
)

const (
	// AppName is the service name used in logs and startup banners.
	AppName = "rxpulse"

	// Version is the reported service version.
	Version = "v1.0.0"
)

// Application holds the wired components.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        chi.Router
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	Store            *dataset.Store
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	WebSocketHub     *ws.Hub
	ErrorHandler     *apperrors.ErrorHandler
}

// NewApplication builds the application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var metrics *infrastructure.BusinessMetrics
	if providers.Meter != nil {
		metrics, err = infrastructure.CreateBusinessMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, false),
		WebSocketHub:  ws.NewHub(logger),
	}

	loader := dataset.NewLoader(dataset.LoaderConfig{MarginRate: cfg.Dataset.MarginRate}, logger)
	app.Store = dataset.NewStore(loader, cfg.Dataset.Path, logger)
	app.DashboardService = services.NewDashboardService(app.Store, cfg.Dataset, app.WebSocketHub, metrics, logger)
	app.HealthService = services.NewHealthService(Version, app.Store, app.WebSocketHub, logger)

	app.setupRouter()
	app.createServer()

	return app, nil
}

// setupRouter assembles the middleware chain and routes. The websocket
// endpoint stays outside the full chain because wrapping its
// ResponseWriter breaks the upgrade.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		if a.Metrics != nil {
			r.Use(customMiddleware.Metrics(a.Metrics))
		}
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.Compress(5))

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.ErrorHandler,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout, a.ErrorHandler))

		r.Route("/api", func(r chi.Router) {
			healthHandler := transporthttp.NewHealthHandler(a.HealthService, a.Logger, a.ErrorHandler)
			r.Get("/health", healthHandler.GetHealth)
			r.Get("/version", healthHandler.GetVersion)

			dashboardHandler := transporthttp.NewDashboardHandler(a.DashboardService, a.Logger, a.ErrorHandler)
			r.Mount("/data", dashboardHandler.Routes())
		})

		r.NotFound(a.ErrorHandler.NotFound)
		r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(a.WebSocketHub, w, r, a.Config.WebSocket, a.Logger)
}

// Start launches the hub and HTTP server. The dataset is loaded eagerly
// and a load or schema failure aborts startup; serving without data
// would only defer the same error to every request.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("dataset", a.Config.Dataset.Path))

	a.WebSocketHub.Start()

	if err := a.DashboardService.Warm(ctx); err != nil {
		a.WebSocketHub.Stop()
		return fmt.Errorf("dataset load failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return g.Wait()
}

// Stop gracefully shuts down the server, hub and telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down telemetry",
				slog.String("error", err.Error()))
		}
	}

	infrastructure.CloseLogFile()
	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		a.Logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	return a.Start(ctx)
}
