package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/AhmedAl-shari/GoldVision/internal/api"
	"github.com/AhmedAl-shari/GoldVision/internal/cache"
	"github.com/AhmedAl-shari/GoldVision/internal/config"
	"github.com/AhmedAl-shari/GoldVision/internal/logging"
	"github.com/AhmedAl-shari/GoldVision/internal/metrics"
	"github.com/AhmedAl-shari/GoldVision/internal/services"
	"github.com/AhmedAl-shari/GoldVision/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	errCh := make(chan error, 1)
	go func() {
		app.logger.LogStartup(telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	app.logger.LogShutdown(telemetry.ServiceName, "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 30*time.Second))
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	app.serviceLogger.Info("Server exited gracefully")
	return nil
}

// application is the fully wired process.
type application struct {
	server        *http.Server
	logger        *logging.StandardLogger
	serviceLogger *logrus.Logger
	closers       []func(context.Context) error
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}

	app.logger = logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	app.serviceLogger = logging.NewLogrus(cfg.LogLevel, cfg.Environment)

	if cfg.Telemetry.Enabled && !strings.EqualFold(cfg.Telemetry.Exporter, telemetry.ExporterStdout) {
		stdLogger, otlpLogger, err := logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.Telemetry.LogLevel,
		})
		if err != nil {
			app.serviceLogger.WithError(err).Warn("OTLP logging unavailable, logging to stdout")
		} else {
			app.logger = stdLogger
			app.serviceLogger.AddHook(otlpLogger.Hook())
			app.closers = append(app.closers, otlpLogger.Shutdown)
		}
	}

	provider, err := telemetry.InitTelemetry(ctx, cfg.Telemetry, cfg.Environment, app.logger.Logger())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.closers = append(app.closers, provider.Shutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	deps := api.Dependencies{
		Logger:         app.logger,
		ServiceLogger:  app.serviceLogger,
		Metrics:        cfg.Metrics,
		Gatherer:       registry,
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        cfg.Telemetry.ServiceVersion,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisConnection(cfg.Redis, app.serviceLogger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error {
			redisClient.Close()
			return nil
		})
		forecastCache := cache.NewRedisForecastCache(
			redisClient.Client,
			config.Duration(cfg.Cache.ForecastTTL, 10*time.Minute),
			cfg.Cache.Prefix,
			app.serviceLogger,
			recorder,
		)
		forecastCache.SetEventLogger(app.logger)
		deps.Cache = forecastCache
		deps.CacheAdmin = forecastCache
		deps.Redis = redisClient
	}

	engine, err := services.NewForecastEngineFromConfig(cfg.Forecast, app.serviceLogger, recorder)
	if err != nil {
		app.close()
		return nil, err
	}
	engine.SetEventLogger(app.logger)
	optimizer := services.NewResourceOptimizer(services.ResourceOptimizerConfig{}, app.serviceLogger)
	if err := optimizer.UpdateSystemMetrics(ctx); err != nil {
		app.serviceLogger.WithError(err).Debug("Could not sample system load")
	}
	stats := optimizer.GetSystemInfo()
	stats["adapters"] = len(engine.Adapters())
	stats["max_workers"] = engine.Workers()
	app.logger.LogResourceStats(telemetry.ServiceName, stats)
	deps.Engine = engine
	deps.Evaluator = services.NewForecastEvaluator(engine)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(deps),
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// close releases resources in reverse order of acquisition.
func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownLog := a.logger.WithOperation("shutdown")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			shutdownLog.Warn("Shutdown step failed", "error", err.Error(), "step", i)
		}
	}
	a.closers = nil
}
