// Package main is the entry point for the specmux gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/specificity-ai/specmux"
	"github.com/specificity-ai/specmux/internal/api"
	"github.com/specificity-ai/specmux/internal/config"
	"github.com/specificity-ai/specmux/internal/health"
	"github.com/specificity-ai/specmux/internal/metrics"
	"github.com/specificity-ai/specmux/internal/observability"
	"github.com/specificity-ai/specmux/internal/store"
	"github.com/specificity-ai/specmux/internal/upstream"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfgManager, err := config.NewManager(configPath, slog.Default())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer cfgManager.Close()

	cfg := cfgManager.Get()

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Logging.Level),
		JSONFormat: cfg.Logging.Format == "json",
	})
	slog.SetDefault(logger)
	logger.Info("starting specmux gateway",
		"version", specmux.Version,
		"environment", cfg.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}
	cfgManager.OnChange(func(newCfg *config.Config) {
		logger.Info("configuration reloaded; provider and threshold changes need a restart",
			"environment", newCfg.Environment)
	})

	tracerProvider, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	recorder := metrics.NewRecorder(metrics.RecorderConfig{
		Retention:     cfg.Metrics.Retention,
		SlowThreshold: cfg.Metrics.SlowThreshold,
	})

	client, err := buildClient(cfg, recorder, tracerProvider.Tracer(), logger)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	var specs api.SpecStore
	if cfg.Database.Enabled {
		pgStore, err := store.NewPostgresStore(store.DefaultPostgresConfig(cfg.Database.DSN), recorder)
		if err != nil {
			return fmt.Errorf("open spec store: %w", err)
		}
		defer pgStore.Close()
		specs = pgStore
		logger.Info("spec store connected")
	}

	handler := api.NewHandler(client, specs, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      observability.RequestIDMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildClient assembles the specmux client from configuration: upstream
// adapters, failover thresholds, metrics, sinks, rate limiting, and the
// optional Redis-shared health store.
func buildClient(cfg *config.Config, recorder *metrics.Recorder, tracer trace.Tracer, logger *slog.Logger) (*specmux.Client, error) {
	opts := []specmux.Option{
		specmux.WithLogger(logger),
		specmux.WithRecorder(recorder),
		specmux.WithTracer(tracer),
		specmux.WithSink(observability.NewSlogSink(logger)),
		specmux.WithSink(observability.NewPrometheusSink()),
	}

	if cfg.Failover.Enabled {
		opts = append(opts, specmux.WithHealthOptions(specmux.HealthOptions{
			MaxFailures:   cfg.Failover.MaxFailures,
			Cooldown:      cfg.Failover.Cooldown,
			FailureWindow: cfg.Failover.FailureWindow,
		}))
	}

	for _, provCfg := range cfg.Providers {
		adapter, err := upstream.NewOpenAI(upstream.Config{
			Name:    provCfg.Name,
			BaseURL: provCfg.BaseURL,
			APIKey:  provCfg.APIKey,
			Model:   provCfg.Model,
			Timeout: provCfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", provCfg.Name, err)
		}
		opts = append(opts, specmux.WithProvider(provCfg.Config, adapter))
		logger.Info("provider registered",
			"name", provCfg.Name,
			"priority", provCfg.Priority,
			"enabled", provCfg.Enabled,
		)
	}

	if cfg.RateLimit.Enabled {
		opts = append(opts, specmux.WithRateLimit(cfg.RateLimit.RPM, cfg.RateLimit.Burst))
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		shared := health.NewRedisStore(rdb, health.WithThresholds(health.Options{
			MaxFailures:   cfg.Failover.MaxFailures,
			Cooldown:      cfg.Failover.Cooldown,
			FailureWindow: cfg.Failover.FailureWindow,
		}))
		opts = append(opts, specmux.WithSharedHealth(shared))
		logger.Info("shared health store enabled", "addr", cfg.Redis.Addr)
	}

	return specmux.New(opts...)
}
