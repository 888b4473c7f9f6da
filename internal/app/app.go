package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/config"
	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/infrastructure"
	customMiddleware "github.com/QUANTMATRIXAI/trinity-dev/internal/middleware"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	handlers "github.com/QUANTMATRIXAI/trinity-dev/internal/transport/http"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
	ws "github.com/QUANTMATRIXAI/trinity-dev/internal/websocket"
	"github.com/QUANTMATRIXAI/trinity-dev/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config            *config.Config
	Router            *chi.Mux
	Server            *http.Server
	Logger            *slog.Logger
	OTelProviders     *infrastructure.OTelProviders
	Metrics           *infrastructure.Metrics
	WebSocketHub      *ws.Hub
	Dispatcher        *validation.Dispatcher
	ValidationService *services.ValidationService
	HealthService     *services.HealthService
	RulesWatcher      *config.RulesWatcher

	errorHandler *apierrors.ErrorHandler
	listener     net.Listener
}

// NewApplication loads configuration and logging from the environment and
// builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from cfg. Nothing listens until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("service", contracts.ServiceName),
		slog.String("version", contracts.Version),
		slog.String("addr", cfg.Server.Addr()))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		errorHandler:  apierrors.NewErrorHandler(logger, cfg.Security.IncludeStack),
	}

	if err := app.initializeServices(); err != nil {
		_ = otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = metrics

	rules, err := validation.LoadRules(a.Config.Rules.File)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	a.Dispatcher = validation.NewDispatcher(validation.WithRules(rules))

	hub := ws.NewHub(a.Logger, metrics)
	hub.Start()
	a.WebSocketHub = hub

	a.ValidationService = services.NewValidationService(a.Dispatcher, a.OTelProviders.Tracer, metrics, hub, a.Logger)

	var reloads func() int
	if a.Config.Rules.File != "" && a.Config.Rules.Watch {
		watcher, err := config.NewRulesWatcher(a.Config.Rules.File, a.Config.Rules.Delay, a.ValidationService.ApplyRules, a.Logger)
		if err != nil {
			hub.Stop()
			return fmt.Errorf("failed to watch rules file: %w", err)
		}
		a.RulesWatcher = watcher
		reloads = watcher.Reloads
	}

	a.HealthService = services.NewHealthService(contracts.Version, hub, reloads, a.Logger)
	return nil
}

// setupRouter configures the middleware chain and routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// The websocket route sits before the wrapping middleware so the
	// connection can be hijacked
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Get("/ws", ws.Handler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimit
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.ValidationService.Pipelines(), a.Logger)
		r.Get("/", healthHandler.ServiceInfo)
		r.Get("/health", healthHandler.HealthCheck)

		a.setupAPIRoutes(r, healthHandler)
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

func (a *Application) setupAPIRoutes(r chi.Router, healthHandler *handlers.HealthHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		files := validation.NewFileValidator(a.Logger, a.Config.Upload.MaxFileSize, a.Config.Upload.AllowedExtensions...)
		validationHandler := handlers.NewValidationHandler(a.ValidationService, files, handlers.ValidationHandlerConfig{
			MaxBodySize: a.Config.Upload.MaxFileSize,
			MaxFiles:    a.Config.Upload.MaxFiles,
		}, a.Logger, a.errorHandler)
		r.Mount("/v1", validationHandler.Routes())
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
			"X-Validation-Verdict",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start binds the listen address and serves in the background. A serve
// failure after startup calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	if a.RulesWatcher != nil {
		a.RulesWatcher.Start(ctx)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", ln.Addr().String()),
		slog.String("rules_file", a.Config.Rules.File),
		slog.Bool("rules_watch", a.RulesWatcher != nil))
	return nil
}

// Addr returns the bound address once Start has succeeded
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.RulesWatcher != nil {
		if err := a.RulesWatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("rules watcher stop: %w", err))
		}
	}
	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until SIGINT or SIGTERM
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
