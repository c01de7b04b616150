package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// Archive providers.
const (
	ProviderAWS = "aws"
	ProviderGCS = "gcs"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	Sites    []string
	ScanDate time.Time // midnight UTC; zero means "today" at run time

	ArchiveProvider string
	ArchiveURL      string
	GCSBucket       string
	HTTPTimeout     time.Duration

	Bounds      domain.Bounds
	GridRows    int
	GridCols    int
	MaxAltitude float64

	DownloadDir   string
	OutputDir     string
	KeepDownloads bool

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PreviewAddr     string
	MetricsTextfile string

	// Optional mosaic-ready notifications.
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	sites, err := parseSites(sharedcfg.EnvOrDefault("RADAR_SITES", "KCCX,KDIX"))
	if err != nil {
		return nil, err
	}

	var scanDate time.Time
	if s := os.Getenv("SCAN_DATE"); s != "" {
		scanDate, err = time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_DATE %q: want YYYY-MM-DD", s)
		}
	}

	var bounds domain.Bounds
	for _, f := range []struct {
		key string
		def float64
		dst *float64
	}{
		{"GRID_LAT_MIN", 39, &bounds.LatMin},
		{"GRID_LAT_MAX", 42, &bounds.LatMax},
		{"GRID_LON_MIN", -79, &bounds.LonMin},
		{"GRID_LON_MAX", -73, &bounds.LonMax},
	} {
		if *f.dst, err = parseFloat(f.key, f.def); err != nil {
			return nil, err
		}
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid bounds: %w", err)
	}

	rows, err := parsePositiveInt("GRID_ROWS", 600)
	if err != nil {
		return nil, err
	}
	cols, err := parsePositiveInt("GRID_COLS", 800)
	if err != nil {
		return nil, err
	}
	maxAltitude, err := parseFloat("GRID_MAX_ALTITUDE", 2000)
	if err != nil {
		return nil, err
	}
	if maxAltitude <= 0 {
		return nil, errors.New("GRID_MAX_ALTITUDE must be positive")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		Sites:    sites,
		ScanDate: scanDate,

		ArchiveProvider: strings.ToLower(sharedcfg.EnvOrDefault("ARCHIVE_PROVIDER", ProviderAWS)),
		ArchiveURL:      sharedcfg.EnvOrDefault("ARCHIVE_URL", "https://unidata-nexrad-level2.s3.amazonaws.com"),
		GCSBucket:       sharedcfg.EnvOrDefault("GCS_BUCKET", "gcp-public-data-nexrad-l2"),
		HTTPTimeout:     httpTimeout,

		Bounds:      bounds,
		GridRows:    rows,
		GridCols:    cols,
		MaxAltitude: maxAltitude,

		DownloadDir:   sharedcfg.EnvOrDefault("DOWNLOAD_DIR", "radar_data"),
		OutputDir:     sharedcfg.EnvOrDefault("OUTPUT_DIR", "."),
		KeepDownloads: os.Getenv("KEEP_DOWNLOADS") == "true",

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PreviewAddr:     os.Getenv("PREVIEW_ADDR"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "radar-mosaics"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.ArchiveProvider != ProviderAWS && cfg.ArchiveProvider != ProviderGCS {
		return nil, fmt.Errorf("ARCHIVE_PROVIDER must be %q or %q, got %q", ProviderAWS, ProviderGCS, cfg.ArchiveProvider)
	}
	if cfg.DownloadDir == "" {
		return nil, errors.New("DOWNLOAD_DIR is required")
	}
	if err := checkDownloadDir(cfg.DownloadDir, cfg.OutputDir); err != nil {
		return nil, err
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// NotifyEnabled reports whether mosaic-ready events should be published.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// checkDownloadDir rejects a download directory that is, or contains, the
// output directory. It is removed after every successful run.
func checkDownloadDir(download, output string) error {
	dl, err := filepath.Abs(download)
	if err != nil {
		return fmt.Errorf("invalid DOWNLOAD_DIR: %w", err)
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("invalid OUTPUT_DIR: %w", err)
	}
	rel, err := filepath.Rel(dl, out)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("DOWNLOAD_DIR %q must not contain OUTPUT_DIR %q", download, output)
	}
	return nil
}

func parseSites(s string) ([]string, error) {
	var sites []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		site := strings.ToUpper(strings.TrimSpace(part))
		if site == "" || seen[site] {
			continue
		}
		if !domain.ValidSite(site) {
			return nil, fmt.Errorf("invalid RADAR_SITES entry %q", part)
		}
		seen[site] = true
		sites = append(sites, site)
	}
	if len(sites) == 0 {
		return nil, errors.New("RADAR_SITES is required")
	}
	return sites, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
