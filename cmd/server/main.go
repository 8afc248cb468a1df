package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/recall-analytics/internal/adapter/httpapi"
	"github.com/couchcryptid/recall-analytics/internal/adapter/openfda"
	"github.com/couchcryptid/recall-analytics/internal/adapter/sample"
	"github.com/couchcryptid/recall-analytics/internal/analytics"
	"github.com/couchcryptid/recall-analytics/internal/config"
	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/observability"
	"github.com/couchcryptid/recall-analytics/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	client := openfda.NewClient(cfg.OpenFDABaseURL, cfg.FetchTimeout, cfg.FetchLimitMax, metrics, logger)
	classifier := domain.NewClassifier(cfg.BoostKeywords)

	builder, err := pipeline.New(client, sample.NewSource(), classifier, logger, metrics, pipeline.Options{
		MaxRetries:      cfg.FetchMaxRetries,
		RetryBackoff:    cfg.FetchRetryBackoff,
		RetryBackoffMax: cfg.FetchRetryBackoffMax,
		CacheSize:       cfg.DatasetCacheSize,
	})
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, builder, builder, analytics.NewTrendForecaster(), httpapi.Defaults{
		Limit:         cfg.DefaultLimit,
		LookbackYears: cfg.LookbackYears,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
