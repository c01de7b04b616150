package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar_mosaic"

// Metrics holds the Prometheus counters, histograms, and gauges for one run.
type Metrics struct {
	Runs          *prometheus.CounterVec   // labels: outcome={success,no_scans,no_volumes,error}
	StageDuration *prometheus.HistogramVec // labels: stage={discover,fetch,grid,render,notify}
	LastSuccess   prometheus.Gauge

	// Archive metrics.
	ScansListed    *prometheus.CounterVec // labels: site
	ListRetries    prometheus.Counter
	Downloads      *prometheus.CounterVec // labels: outcome={success,error}
	DownloadBytes  prometheus.Counter
	DecodeFailures prometheus.Counter

	// Output metrics.
	ValidCells    *prometheus.GaugeVec   // labels: field
	Notifications *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote a map.",
		}),
		ScansListed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_listed_total",
			Help:      "Volume scans found in the archive by site.",
		}, []string{"site"}),
		ListRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_retries_total",
			Help:      "Archive listing attempts retried after a transient error.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Scan downloads by outcome.",
		}, []string{"outcome"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes of scan data downloaded.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Downloaded scans that could not be decoded.",
		}),
		ValidCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_valid_cells",
			Help:      "Grid cells holding data, by field.",
		}, []string{"field"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Mosaic-ready notifications by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when site labels are enriched by geocoding, 0 otherwise.",
		}),
	}
}

// Collectors returns every metric for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Runs,
		m.StageDuration,
		m.LastSuccess,
		m.ScansListed,
		m.ListRetries,
		m.Downloads,
		m.DownloadBytes,
		m.DecodeFailures,
		m.ValidCells,
		m.Notifications,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// WriteTextfile writes the gathered metrics in the node-exporter textfile
// collector format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
