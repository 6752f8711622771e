package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"cpicli/internal/config"
	apierrors "cpicli/internal/errors"
	"cpicli/internal/infrastructure"
	"cpicli/internal/loader"
	customMiddleware "cpicli/internal/middleware"
	"cpicli/internal/results"
	"cpicli/internal/services"
	handlers "cpicli/internal/transport/http"
	"cpicli/pkg/contracts"
)

// AppName is reported in startup logs
const AppName = "cpi"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.CPIMetrics
	ErrorHandler  *apierrors.ErrorHandler
	Source        loader.Source
	Store         results.Store
	CPIService    *services.CPIService
	HealthService *services.HealthService
}

// NewApplication wires the data source, results store, services and router
// described by cfg. A nil logger initializes the global JSON logger from
// cfg.Logging.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		var err error
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("source", cfg.Source.Kind),
		slog.String("results", cfg.Results.Kind))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateCPIMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(ctx); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices opens the source and results store, then builds the
// services on top of them
func (a *Application) initializeServices(ctx context.Context) error {
	source, err := loader.Open(ctx, a.Config.Source, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", a.Config.Source.Kind, err)
	}
	a.Source = source

	store, err := results.Open(ctx, a.Config.Results, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open %s results store: %w", a.Config.Results.Kind, err)
	}
	a.Store = store

	a.CPIService = services.NewCPIService(source, store, services.CPIServiceConfig{
		Calculation:   a.Config.Calculation,
		SourceTimeout: a.Config.Source.Timeout,
		Tracer:        a.OTelProviders.Tracer,
		Metrics:       a.Metrics,
	}, a.Logger)

	a.HealthService = services.NewHealthService(
		contracts.Version,
		contracts.BuildTime,
		a.Config.Source.Kind,
		store,
		a.Logger,
	)
	return nil
}

// setupRouter builds the middleware chain and mounts the API.
// Order: RequestID → OTel → Logger → Recoverer → SecureHeaders → RateLimit → Timeout
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(a.ErrorHandler.Recoverer)
	r.Use(customMiddleware.DefaultSecureHeaders().Handler)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Probes and scraping stay outside rate limiting
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Mount("/healthz", healthHandler.Routes())
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.ErrorHandler).Handler)
		}
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		}

		cpiHandler := handlers.NewCPIHandler(a.CPIService, handlers.CPIHandlerConfig{
			Scale:       a.Config.Output.Scale,
			ReportTitle: a.Config.Output.Title,
		}, a.Logger, a.ErrorHandler)
		r.Mount("/cpi", cpiHandler.Routes())
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// performStartupHealthCheck reads the category table once so a broken
// source shows up in the logs before the first request
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	categories, err := a.Source.LoadCategories(ctx)
	if err != nil {
		return fmt.Errorf("category data unavailable: %w", err)
	}
	a.Logger.InfoContext(ctx, "Source reachable",
		slog.String("source", a.Config.Source.Kind),
		slog.Int("categories", categories.Len()))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.close(shutdownCtx)
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// close releases the source, store and telemetry providers. Errors are
// logged.
func (a *Application) close(ctx context.Context) {
	if a.Source != nil {
		if err := a.Source.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing source", slog.String("error", err.Error()))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing results store", slog.String("error", err.Error()))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
