// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/api"
	"github.com/JakeFAU/sitebaker/internal/config"
	"github.com/JakeFAU/sitebaker/internal/dispatcher"
	"github.com/JakeFAU/sitebaker/internal/id/uuid"
	"github.com/JakeFAU/sitebaker/internal/logging"
	queueMemory "github.com/JakeFAU/sitebaker/internal/queue/memory"
	memoryStorage "github.com/JakeFAU/sitebaker/internal/storage/memory"
	"github.com/JakeFAU/sitebaker/internal/telemetry"
	"github.com/JakeFAU/sitebaker/internal/worker"
)

// Version is reported in the telemetry resource.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
	resources *Resources
	telemetry *telemetry.Providers
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Define a struct for logging only non-sensitive config fields
	type SanitizedConfig struct {
		ServerPort  int    `json:"server_port"`
		BakedDir    string `json:"baked_dir"`
		BakedURL    string `json:"baked_url"`
		Mirror      string `json:"mirror"`
		AuthEnabled bool   `json:"auth_enabled"`
	}
	safeCfg := SanitizedConfig{
		ServerPort:  cfg.Server.Port,
		BakedDir:    cfg.Site.BakedDir,
		BakedURL:    cfg.BakedURL(),
		Mirror:      cfg.Deploy.Mirror.Driver,
		AuthEnabled: cfg.Auth.Enabled,
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	<-done

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.resources.Close()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

// Build creates the application's dependencies. A single worker drains the
// queue because bakes share one git working tree.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.telemetry, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
		ProjectID:   cfg.Telemetry.ProjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	app.logger.Info("building application dependencies")
	app.resources, err = OpenResources(ctx, *cfg, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	jobStore := memoryStorage.NewJobStore()
	app.queue = queueMemory.NewQueue(cfg.Bake.QueueDepth)

	factory := NewBakerFactory(*cfg, app.resources, logger.Named("baker"))
	bakeWorker := worker.New(
		app.queue,
		jobStore,
		app.resources.Publisher,
		app.resources.Clock,
		factory.ForWorker(),
		worker.Config{JobTimeout: cfg.Bake.JobTimeout},
		logger.Named("worker"),
	)
	app.logger.Info("worker config",
		zap.String("topic", worker.DefaultTopic),
		zap.Duration("job_timeout", cfg.Bake.JobTimeout),
		zap.Int("queue_depth", cfg.Bake.QueueDepth),
	)
	app.dispatch = dispatcher.New(app.queue, []dispatcher.Runner{bakeWorker})

	app.apiServer = api.NewServer(
		jobStore,
		app.dispatch,
		uuid.New(),
		app.resources.Clock,
		*cfg,
		logger.Named("api"),
	)

	return app, nil
}
