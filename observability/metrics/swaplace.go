package metrics

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"swaplace/native/swaplace"
)

// SwaplaceMetrics records engine outcomes and escrow levels.
type SwaplaceMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	escrowed   prometheus.Gauge
}

// HTTPMetrics records swapd API traffic.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	swaplaceOnce     sync.Once
	swaplaceRegistry *SwaplaceMetrics

	httpOnce     sync.Once
	httpRegistry *HTTPMetrics
)

// Swaplace returns the lazily-initialised engine metrics registry.
func Swaplace() *SwaplaceMetrics {
	swaplaceOnce.Do(func() {
		swaplaceRegistry = &SwaplaceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaplace",
				Subsystem: "swaps",
				Name:      "operations_total",
				Help:      "Count of swap lifecycle operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaplace",
				Subsystem: "swaps",
				Name:      "failures_total",
				Help:      "Count of failed swap operations segmented by operation and error class.",
			}, []string{"operation", "class"}),
			escrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "swaplace",
				Subsystem: "swaps",
				Name:      "escrowed_wei",
				Help:      "Native value currently escrowed by the engine.",
			}),
		}
		prometheus.MustRegister(
			swaplaceRegistry.operations,
			swaplaceRegistry.failures,
			swaplaceRegistry.escrowed,
		)
	})
	return swaplaceRegistry
}

// Observe implements swaplace.Observer.
func (m *SwaplaceMetrics) Observe(operation string, class swaplace.ErrorClass) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if class == swaplace.ClassNone {
		m.operations.WithLabelValues(operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "error").Inc()
	m.failures.WithLabelValues(operation, string(class)).Inc()
}

// SetEscrowed publishes the engine's escrow balance.
func (m *SwaplaceMetrics) SetEscrowed(amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.escrowed.Set(value)
}

// HTTP returns the lazily-initialised API metrics registry.
func HTTP() *HTTPMetrics {
	httpOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaplace",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaplace",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "swaplace",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaplace",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			httpRegistry.requests,
			httpRegistry.errors,
			httpRegistry.latency,
			httpRegistry.throttles,
		)
	})
	return httpRegistry
}

// Observe records the outcome of one request. status is the HTTP status that
// was written to the client.
func (m *HTTPMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" or "replay".
func (m *HTTPMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
