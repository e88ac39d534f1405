package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/hedisam/tiersync/lib/journal"
)

const namespace = "tiersync"

// RunMetrics collects the metrics of one run in its own registry. Runs are short lived, so the metrics are pushed to
// a Pushgateway or written to a node exporter textfile at the end instead of being scraped.
type RunMetrics struct {
	registry *prometheus.Registry

	items         *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	objects       *prometheus.CounterVec
	retries       *prometheus.CounterVec
	lastRun       prometheus.Gauge
	httpInFlight  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpLatencies *prometheus.HistogramVec
}

func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed, labeled by operation and outcome",
		}, []string{"operation", "status"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Histogram of the time spent on a single item",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"operation"}),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_total",
			Help:      "Objects enumerated, deleted or moved, labeled by operation and outcome",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Provider calls retried after a transient failure",
		}, []string{"component"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_in_flight_requests",
			Help:      "Current number of in-flight catalog requests",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog requests, labeled by status code and method",
		}, []string{"code", "method"}),
		httpLatencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Histogram of catalog request durations in seconds",
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.items,
		m.itemDuration,
		m.objects,
		m.retries,
		m.lastRun,
		m.httpInFlight,
		m.httpRequests,
		m.httpLatencies,
	)

	return m
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *RunMetrics) ItemDone(operation string, status journal.Status, elapsed time.Duration) {
	m.items.WithLabelValues(operation, string(status)).Inc()
	m.itemDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *RunMetrics) ObjectsDone(operation, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.objects.WithLabelValues(operation, outcome).Add(float64(n))
}

// RetryObserver returns a callback for retry.Policy.OnRetry counting retries of the component.
func (m *RunMetrics) RetryObserver(component string) func(err error, wait time.Duration) {
	c := m.retries.WithLabelValues(component)
	return func(error, time.Duration) {
		c.Inc()
	}
}

// InstrumentTransport counts and times the requests made through next.
func (m *RunMetrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(m.httpInFlight,
		promhttp.InstrumentRoundTripperDuration(m.httpLatencies,
			promhttp.InstrumentRoundTripperCounter(m.httpRequests, next),
		),
	)
}

// Finish stamps the end of the run.
func (m *RunMetrics) Finish() {
	m.lastRun.SetToCurrentTime()
}

// Push replaces the metrics of job on the Pushgateway at url.
func (m *RunMetrics) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).Gatherer(m.registry).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// WriteTextfile writes the metrics in the text exposition format, atomically replacing path.
func (m *RunMetrics) WriteTextfile(path string) error {
	err := prometheus.WriteToTextfile(path, m.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
