// Package metrics exposes pathwise's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric, registered on its own registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Completions     *prometheus.CounterVec
	PathSelections  *prometheus.CounterVec
	Recommendations *prometheus.CounterVec
	Diagnostics     *prometheus.CounterVec
	StoreConflicts  prometheus.Counter

	CoursesLoaded  prometheus.Gauge
	ContentReloads *prometheus.CounterVec
}

// NewCollector creates a collector with metric names under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_completions_total",
				Help:      "Nodes newly marked completed",
			},
			[]string{"course"},
		),
		PathSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "path_selections_total",
				Help:      "Learning paths selected",
			},
			[]string{"course", "path"},
		),
		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Recommendation lists computed",
			},
			[]string{"course"},
		),
		Diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendation_diagnostics_total",
				Help:      "Progress entries ignored while recommending",
			},
			[]string{"kind"},
		),
		StoreConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_conflicts_total",
				Help:      "Progress saves that hit a version conflict and were merged",
			},
		),
		CoursesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "courses_loaded",
				Help:      "Courses currently served",
			},
		),
		ContentReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_reloads_total",
				Help:      "Course reloads by result",
			},
			[]string{"result"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Completions,
		c.PathSelections,
		c.Recommendations,
		c.Diagnostics,
		c.StoreConflicts,
		c.CoursesLoaded,
		c.ContentReloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
