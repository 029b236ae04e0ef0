package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/hydro-chart-service/internal/adapter/chart"
	"github.com/couchcryptid/hydro-chart-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/hydro-chart-service/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-chart-service/internal/adapter/hydromet"
	"github.com/couchcryptid/hydro-chart-service/internal/config"
	"github.com/couchcryptid/hydro-chart-service/internal/domain"
	"github.com/couchcryptid/hydro-chart-service/internal/observability"
	"github.com/couchcryptid/hydro-chart-service/internal/pipeline"
)

func main() {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	transform, err := domain.EPSGTransform(cfg.SourceEPSG)
	if err != nil {
		logger.Error("failed to build coordinate transform", "epsg", cfg.SourceEPSG, "error", err)
		os.Exit(1)
	}

	client := hydromet.NewClient(cfg.HydrometBaseURL, cfg.HydrometTimeout, logger, metrics)
	source := hydromet.NewCachedClient(client, cfg.WellInfoCache)

	renderer, err := chart.NewRenderer(cfg.OutputDir, logger)
	if err != nil {
		logger.Error("failed to create renderer", "dir", cfg.OutputDir, "error", err)
		os.Exit(1)
	}

	// Manifest publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.ManifestPublisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("manifest publishing enabled", "topic", cfg.KafkaSummaryTopic)
	} else {
		logger.Info("manifest publishing disabled")
	}

	p := pipeline.New(source, renderer, publisher, logger, metrics,
		transform, cfg.WellIDs, cfg.RenderInterval, cfg.RunOnce)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start render pipeline. In run-once mode Run returns after the first
	// pass and the service shuts itself down.
	pipeErr := make(chan error, 1)
	go func() {
		pipeErr <- p.Run(ctx)
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	select {
	case err := <-pipeErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			logger.Info("shutdown complete")
			os.Exit(1)
		}
	default:
	}

	logger.Info("shutdown complete")
}
