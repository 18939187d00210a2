package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/outage-equity-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/outage-equity-service/internal/adapter/kafka"
	"github.com/couchcryptid/outage-equity-service/internal/adapter/mapbox"
	"github.com/couchcryptid/outage-equity-service/internal/adapter/sqlite"
	"github.com/couchcryptid/outage-equity-service/internal/analysis"
	"github.com/couchcryptid/outage-equity-service/internal/config"
	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
	"github.com/couchcryptid/outage-equity-service/internal/pipeline"
	"github.com/couchcryptid/outage-equity-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoding cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(logger, metrics)
	transformer := pipeline.NewTransformer(geocoder, logger)
	if err := seed(ctx, cfg, st, transformer, logger); err != nil {
		logger.Error("failed to seed tables", "error", err)
		os.Exit(1)
	}

	var closers []namedCloser
	var auditors []analysis.Auditor
	var serverOpts []httpadapter.Option
	if cfg.AuditDBPath != "" {
		auditLog, err := sqlite.Open(cfg.AuditDBPath)
		if err != nil {
			logger.Error("failed to open audit log", "error", err)
			os.Exit(1)
		}
		closers = append(closers, namedCloser{"audit log", auditLog})
		auditors = append(auditors, auditLog)
		serverOpts = append(serverOpts, httpadapter.WithAuditLog(auditLog))
		logger.Info("sqlite audit log enabled", "path", cfg.AuditDBPath)
	}

	var p *pipeline.Pipeline
	if cfg.KafkaEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, namedCloser{"kafka reader", reader}, namedCloser{"kafka writer", writer})
		auditors = append(auditors, writer)
		p = pipeline.New(reader, transformer, st, logger, metrics, cfg.BatchSize,
			pipeline.WithTransformWorkers(cfg.TransformWorkers))
	} else {
		logger.Info("kafka ingest and audit topic disabled")
	}

	svc := analysis.New(st, analysis.FanOut(auditors...), logger, metrics)
	serverOpts = append(serverOpts, httpadapter.WithRateLimit(cfg.QueryRateLimit, cfg.QueryRateBurst))
	srv, err := httpadapter.NewServer(cfg.HTTPAddr, st, svc, logger, serverOpts...)
	if err != nil {
		logger.Error("failed to create http server", "error", err)
		os.Exit(1)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error(c.name+" close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type namedCloser struct {
	name string
	io.Closer
}

// seed builds the EJ table and loads DataSampleSize synthetic outage
// records so the service answers queries before any Kafka traffic arrives.
func seed(ctx context.Context, cfg *config.Config, st *store.Store, t pipeline.Transformer, logger *slog.Logger) error {
	if err := st.SetEJ(domain.EJTable(domain.GenerateEJIndicators(cfg.DataSeed))); err != nil {
		return err
	}
	if cfg.DataSampleSize == 0 {
		logger.Info("synthetic outage seeding disabled")
		return nil
	}
	records := domain.GenerateOutageRecords(cfg.DataSeed, cfg.DataSampleSize)
	n, err := pipeline.Seed(ctx, records, t, st, cfg.BatchSize)
	if err != nil {
		return err
	}
	logger.Info("seeded outage table", "records", len(records), "loaded", n, "seed", cfg.DataSeed)
	return nil
}
