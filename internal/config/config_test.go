package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"KCCX", "KDIX"}, cfg.Sites)
	assert.True(t, cfg.ScanDate.IsZero())
	assert.Equal(t, ProviderAWS, cfg.ArchiveProvider)
	assert.Equal(t, "https://unidata-nexrad-level2.s3.amazonaws.com", cfg.ArchiveURL)
	assert.Equal(t, "gcp-public-data-nexrad-l2", cfg.GCSBucket)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, domain.Bounds{LatMin: 39, LatMax: 42, LonMin: -79, LonMax: -73}, cfg.Bounds)
	assert.Equal(t, 600, cfg.GridRows)
	assert.Equal(t, 800, cfg.GridCols)
	assert.Equal(t, 2000.0, cfg.MaxAltitude)
	assert.Equal(t, "radar_data", cfg.DownloadDir)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.False(t, cfg.KeepDownloads)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.PreviewAddr)
	assert.Empty(t, cfg.MetricsTextfile)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.NotifyEnabled())
	assert.Equal(t, "radar-mosaics", cfg.KafkaTopic)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("RADAR_SITES", "klwx, kdox,KLWX")
	t.Setenv("SCAN_DATE", "2024-04-26")
	t.Setenv("ARCHIVE_PROVIDER", "GCS")
	t.Setenv("GCS_BUCKET", "my-bucket")
	t.Setenv("HTTP_TIMEOUT", "2m")
	t.Setenv("GRID_LAT_MIN", "37.5")
	t.Setenv("GRID_LAT_MAX", "40")
	t.Setenv("GRID_LON_MIN", "-78.5")
	t.Setenv("GRID_LON_MAX", "-74")
	t.Setenv("GRID_ROWS", "300")
	t.Setenv("GRID_COLS", "400")
	t.Setenv("GRID_MAX_ALTITUDE", "3500")
	t.Setenv("DOWNLOAD_DIR", "/tmp/scans")
	t.Setenv("OUTPUT_DIR", "/srv/www")
	t.Setenv("KEEP_DOWNLOADS", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PREVIEW_ADDR", ":8080")
	t.Setenv("METRICS_TEXTFILE", "/var/lib/node_exporter/radar.prom")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "mosaics")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"KLWX", "KDOX"}, cfg.Sites)
	assert.Equal(t, time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC), cfg.ScanDate)
	assert.Equal(t, ProviderGCS, cfg.ArchiveProvider)
	assert.Equal(t, "my-bucket", cfg.GCSBucket)
	assert.Equal(t, 2*time.Minute, cfg.HTTPTimeout)
	assert.Equal(t, domain.Bounds{LatMin: 37.5, LatMax: 40, LonMin: -78.5, LonMax: -74}, cfg.Bounds)
	assert.Equal(t, 300, cfg.GridRows)
	assert.Equal(t, 400, cfg.GridCols)
	assert.Equal(t, 3500.0, cfg.MaxAltitude)
	assert.Equal(t, "/tmp/scans", cfg.DownloadDir)
	assert.Equal(t, "/srv/www", cfg.OutputDir)
	assert.True(t, cfg.KeepDownloads)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ":8080", cfg.PreviewAddr)
	assert.Equal(t, "/var/lib/node_exporter/radar.prom", cfg.MetricsTextfile)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.NotifyEnabled())
	assert.Equal(t, "mosaics", cfg.KafkaTopic)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 50, cfg.MapboxCacheSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"invalid http timeout", map[string]string{"HTTP_TIMEOUT": "0s"}, "HTTP_TIMEOUT"},
		{"invalid mapbox timeout", map[string]string{"MAPBOX_TIMEOUT": "bad"}, "MAPBOX_TIMEOUT"},
		{"bad site", map[string]string{"RADAR_SITES": "KCCX,TOOLONG"}, "RADAR_SITES"},
		{"no sites", map[string]string{"RADAR_SITES": " , "}, "RADAR_SITES"},
		{"bad scan date", map[string]string{"SCAN_DATE": "04/26/2024"}, "SCAN_DATE"},
		{"bad provider", map[string]string{"ARCHIVE_PROVIDER": "azure"}, "ARCHIVE_PROVIDER"},
		{"bad latitude", map[string]string{"GRID_LAT_MIN": "north"}, "GRID_LAT_MIN"},
		{"empty box", map[string]string{"GRID_LAT_MIN": "42", "GRID_LAT_MAX": "39"}, "grid bounds"},
		{"zero rows", map[string]string{"GRID_ROWS": "0"}, "GRID_ROWS"},
		{"bad cols", map[string]string{"GRID_COLS": "many"}, "GRID_COLS"},
		{"negative altitude", map[string]string{"GRID_MAX_ALTITUDE": "-5"}, "GRID_MAX_ALTITUDE"},
		{"mapbox enabled without token", map[string]string{"MAPBOX_ENABLED": "true"}, "MAPBOX_TOKEN"},
		{"download dir is output dir", map[string]string{"DOWNLOAD_DIR": "out", "OUTPUT_DIR": "./out/"}, "DOWNLOAD_DIR"},
		{"download dir contains output dir", map[string]string{"DOWNLOAD_DIR": "/srv", "OUTPUT_DIR": "/srv/www/map"}, "DOWNLOAD_DIR"},
		{"download dir is working dir", map[string]string{"DOWNLOAD_DIR": "."}, "DOWNLOAD_DIR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("MAPBOX_CACHE_SIZE", "-3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestCheckDownloadDir_Allowed(t *testing.T) {
	for _, tc := range []struct{ download, output string }{
		{"radar_data", "."},
		{"/tmp/scans", "/srv/www"},
		{"/srv/www-scans", "/srv/www"},
		{"/srv/www/scans", "/srv/www"},
	} {
		assert.NoError(t, checkDownloadDir(tc.download, tc.output), "%s vs %s", tc.download, tc.output)
	}
}
