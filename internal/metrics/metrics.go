// Package metrics exposes the detection engine's prometheus metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector owns a private registry with the finder timers and the
// secret, whitelist and request counters.
type Collector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	finderDuration     *prometheus.HistogramVec
	secretsFound       *prometheus.CounterVec
	whitelistRefreshes *prometheus.CounterVec
	whitelistEntries   *prometheus.GaugeVec
	scanRequests       *prometheus.CounterVec
}

// NewCollector creates a collector; namespace and subsystem prefix every metric
func NewCollector(logger *zap.Logger, namespace, subsystem string) *Collector {
	if namespace == "" {
		namespace = "trace_sentinel"
	}

	c := &Collector{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	c.finderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "finder_duration_seconds",
			Help:      "Time spent in a single finder invocation",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"finder"},
	)

	c.secretsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "secrets_found_total",
			Help:      "Total number of confidential values found, after whitelisting",
		},
		[]string{"finder", "service"},
	)

	c.whitelistRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "whitelist_refreshes_total",
			Help:      "Whitelist refresh attempts by outcome",
		},
		[]string{"kind", "status"},
	)

	c.whitelistEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "whitelist_entries",
			Help:      "Entries in the current whitelist snapshot",
		},
		[]string{"kind"},
	)

	c.scanRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scan_requests_total",
			Help:      "Documents scanned, by document shape",
		},
		[]string{"shape"},
	)

	c.registry.MustRegister(
		c.finderDuration,
		c.secretsFound,
		c.whitelistRefreshes,
		c.whitelistEntries,
		c.scanRequests,
		collectors.NewGoCollector(),
	)

	logger.Info("Metrics collector initialized",
		zap.String("namespace", namespace),
		zap.String("subsystem", subsystem))

	return c
}

// ObserveFinder records the latency of one finder call
func (c *Collector) ObserveFinder(name string, d time.Duration) {
	c.finderDuration.WithLabelValues(name).Observe(d.Seconds())
}

// IncSecret counts one confidential value found by finder in service
func (c *Collector) IncSecret(finder, service string) {
	c.secretsFound.WithLabelValues(finder, service).Inc()
}

// ObserveRefresh records the outcome of a whitelist refresh
func (c *Collector) ObserveRefresh(kind string, entries int, err error) {
	if err != nil {
		c.whitelistRefreshes.WithLabelValues(kind, "error").Inc()
		return
	}
	c.whitelistRefreshes.WithLabelValues(kind, "success").Inc()
	c.whitelistEntries.WithLabelValues(kind).Set(float64(entries))
}

// IncScan counts one scanned document of the given shape (span, json, xml)
func (c *Collector) IncScan(shape string) {
	c.scanRequests.WithLabelValues(shape).Inc()
}

// Registry returns the prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
