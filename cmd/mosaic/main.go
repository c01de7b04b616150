// Command mosaic fetches the latest NEXRAD scans for the configured sites,
// merges them onto one grid and writes a Leaflet map with reflectivity,
// velocity and correlation coefficient overlays.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/storm-radar-mosaic/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-radar-mosaic/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-mosaic/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-radar-mosaic/internal/adapter/nexrad"
	"github.com/couchcryptid/storm-radar-mosaic/internal/config"
	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
	"github.com/couchcryptid/storm-radar-mosaic/internal/grid"
	"github.com/couchcryptid/storm-radar-mosaic/internal/level2"
	"github.com/couchcryptid/storm-radar-mosaic/internal/observability"
	"github.com/couchcryptid/storm-radar-mosaic/internal/pipeline"
	"github.com/couchcryptid/storm-radar-mosaic/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, logger, metrics)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) int {
	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	archive, closeArchive, err := newArchive(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create archive client", "error", err)
		return 1
	}
	defer closeArchive()

	gridder, err := grid.NewMosaicker(grid.Spec{
		Bounds:      cfg.Bounds,
		Rows:        cfg.GridRows,
		Cols:        cfg.GridCols,
		MaxAltitude: cfg.MaxAltitude,
		Fields:      domain.GridFields,
	}, logger)
	if err != nil {
		logger.Error("invalid grid", "error", err)
		return 1
	}

	renderer := render.NewRenderer(cfg.OutputDir, domain.DefaultLayers(), geocoder, logger)

	var notifier pipeline.Notifier
	if cfg.NotifyEnabled() {
		n := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("kafka notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(archive, level2.FileDecoder{}, gridder, renderer, notifier, pipeline.Options{
		Sites:         cfg.Sites,
		Date:          cfg.ScanDate,
		DownloadDir:   cfg.DownloadDir,
		KeepDownloads: cfg.KeepDownloads,
	}, logger, metrics)

	_, err = p.Run(ctx)
	writeMetrics(cfg, logger)

	switch {
	case errors.Is(err, pipeline.ErrNoScans), errors.Is(err, pipeline.ErrNoVolumes):
		return 0
	case err != nil:
		logger.Error("pipeline failed", "error", err)
		return 1
	}

	if cfg.PreviewAddr != "" {
		serve(ctx, cfg, p, logger)
	}
	return 0
}

// newArchive builds the configured archive provider and a function that
// releases it.
func newArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Archive, func(), error) {
	if cfg.ArchiveProvider == config.ProviderGCS {
		a, err := nexrad.NewGCSArchive(ctx, cfg.GCSBucket, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using gcs archive", "bucket", cfg.GCSBucket)
		return a, func() {
			if err := a.Close(); err != nil {
				logger.Error("storage client close error", "error", err)
			}
		}, nil
	}
	logger.Info("using s3 archive", "url", cfg.ArchiveURL)
	return nexrad.NewS3Archive(cfg.ArchiveURL, cfg.HTTPTimeout, logger), func() {}, nil
}

func writeMetrics(cfg *config.Config, logger *slog.Logger) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := observability.WriteTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
		logger.Error("metrics export failed", "error", err)
		return
	}
	logger.Info("metrics written", "path", cfg.MetricsTextfile)
}

// serve exposes the output directory until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, ready *pipeline.Pipeline, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.PreviewAddr, cfg.OutputDir, ready, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
		return
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
