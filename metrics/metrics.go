// Package metrics exposes Prometheus instrumentation for the delivery service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the instrumentation surface used by services and middleware.
type Metrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
	IncCacheLookup(result string)
	ObserveArchiveBuild(status string, durationSeconds float64, sizeBytes int)
	IncWebhook(source, eventType, outcome string)
	IncEntitlementDecision(granted bool)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncCacheLookup(string)                          {}
func (Noop) ObserveArchiveBuild(string, float64, int)       {}
func (Noop) IncWebhook(string, string, string)              {}
func (Noop) IncEntitlementDecision(bool)                    {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	archiveBytes  prometheus.Gauge
	webhooks      *prometheus.CounterVec
	entitlements  *prometheus.CounterVec
}

// NewProm registers all collectors on a private registry so repeated construction
// (tests, multiple app instances) never collides with the default registerer.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_cache_lookups_total",
			Help:      "Archive cache lookups by result (hit, miss, stale)",
		}, []string{"result"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_builds_total",
			Help:      "Library archive builds by status",
		}, []string{"status"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_build_duration_seconds",
			Help:      "Library archive build duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size_bytes",
			Help:      "Size of the most recently built library archive",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by source, event type and outcome",
		}, []string{"source", "type", "outcome"}),
		entitlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_decisions_total",
			Help:      "Library access decisions",
		}, []string{"granted"}),
	}
	p.registry.MustRegister(
		p.requests, p.latency, p.cacheLookups, p.builds,
		p.buildDuration, p.archiveBytes, p.webhooks, p.entitlements,
	)
	return p
}

// Handler returns an HTTP handler exposing the registry in the text exposition format.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

func (p *Prom) IncCacheLookup(result string) {
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *Prom) ObserveArchiveBuild(status string, durationSeconds float64, sizeBytes int) {
	p.builds.WithLabelValues(status).Inc()
	p.buildDuration.Observe(durationSeconds)
	if status == "ok" {
		p.archiveBytes.Set(float64(sizeBytes))
	}
}

func (p *Prom) IncWebhook(source, eventType, outcome string) {
	p.webhooks.WithLabelValues(source, eventType, outcome).Inc()
}

func (p *Prom) IncEntitlementDecision(granted bool) {
	label := "false"
	if granted {
		label = "true"
	}
	p.entitlements.WithLabelValues(label).Inc()
}
