// Package bootstrap wires the shared startup path of every bridge service:
// configuration, logging, telemetry, the metrics endpoint and the signal
// driven lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tqbridge/internal/config"
	"tqbridge/internal/core"
	"tqbridge/internal/infrastructure/metrics"
	"tqbridge/pkg/logging"
	"tqbridge/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App holds the dependencies every service shares.
type App struct {
	Cfg    *config.Config
	Logger core.ILogger

	telemetry     *telemetry.Telemetry
	metricsServer *metrics.Server
}

// NewApp loads configuration and initializes logging and telemetry for one
// named service.
func NewApp(serviceName, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logging.SetGlobalLogger(logger)

	tel, err := telemetry.Setup(serviceName)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	app := &App{
		Cfg:       cfg,
		Logger:    logger.WithField("service", serviceName),
		telemetry: tel,
	}

	if cfg.System.EnableMetrics {
		app.metricsServer = metrics.NewServer(cfg.System.MetricsPort, app.Logger)
		app.metricsServer.Start()
	}

	app.Logger.Info("service bootstrapped", "config", "\n"+cfg.String())
	return app, nil
}

// Runner is one long-running component of a service.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Run drives the runners until a termination signal or the first failure,
// then tears down telemetry and the metrics endpoint.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, runner := range runners {
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	err := g.Wait()
	a.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("service stopped with error", "error", err)
		return err
	}
	a.Logger.Info("service shut down")
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.Logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.Logger.Error("telemetry shutdown failed", "error", err)
		}
	}
}
