// Package monitoring exposes Prometheus metrics for the launcher daemon.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Plugin metrics
	PluginsLoaded  prometheus.Gauge
	PluginLoads    *prometheus.CounterVec
	RegistryRescan prometheus.Counter

	// Search metrics
	SearchTotal    *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	CorpusItems    prometheus.Gauge
	CorpusRebuilds prometheus.Counter

	// View metrics
	ViewOpens    prometheus.Counter
	ViewCloses   prometheus.Counter
	ViewSessions prometheus.Gauge
	Subsurfaces  prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector and registers everything with the
// default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcherd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcherd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		PluginsLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_plugins_loaded",
			Help: "Number of plugins in the live catalog",
		}),
		PluginLoads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcherd_plugin_loads_total",
				Help: "Plugin package load attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistryRescan: promauto.NewCounter(prometheus.CounterOpts{
			Name: "launcherd_registry_rescans_total",
			Help: "Number of catalog rescans",
		}),

		SearchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcherd_searches_total",
				Help: "Search calls by path (corpus, instant, combined)",
			},
			[]string{"path"},
		),
		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcherd_search_duration_seconds",
				Help:    "Search call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"path"},
		),
		CorpusItems: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_corpus_items",
			Help: "Number of items in the cached search corpus",
		}),
		CorpusRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "launcherd_corpus_rebuilds_total",
			Help: "Number of corpus rebuilds",
		}),

		ViewOpens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "launcherd_view_opens_total",
			Help: "Number of view sessions opened",
		}),
		ViewCloses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "launcherd_view_closes_total",
			Help: "Number of view sessions closed",
		}),
		ViewSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_view_sessions_active",
			Help: "Active view sessions (0 or 1)",
		}),
		Subsurfaces: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_view_subsurfaces",
			Help: "Embedded subsurfaces in the active session",
		}),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_ws_connections",
			Help: "Connected event stream clients",
		}),

		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "launcherd_uptime_seconds",
			Help: "Daemon uptime in seconds",
		}),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSearch records one search call.
func (m *Metrics) RecordSearch(path string, duration time.Duration) {
	m.SearchTotal.WithLabelValues(path).Inc()
	m.SearchDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
