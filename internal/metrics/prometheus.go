// Package metrics provides recorders for service operation outcomes and
// resource throughput: a Prometheus collector with its own registry, and a
// process-local expvar recorder.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records service metrics into a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	moved      *prometheus.CounterVec
	machines   prometheus.Gauge
}

// NewCollector creates a collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "machinecore"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Total number of service operations by result",
		},
		[]string{"operation", "result"},
	)
	c.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Time taken by service operations",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"operation"},
	)
	c.moved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "moved_total",
			Help:      "Resource amount moved between machines, by category",
		},
		[]string{"category"},
	)
	c.machines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "machines",
		Help:      "Number of registered machines",
	})

	c.registry.MustRegister(c.operations, c.latency, c.moved, c.machines)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe records one operation outcome.
func (c *Collector) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	c.operations.WithLabelValues(operation, result(success)).Inc()
	c.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Moved records a completed transfer.
func (c *Collector) Moved(category string, amount uint64) {
	c.moved.WithLabelValues(category).Add(float64(amount))
}

// SetMachines records the number of registered machines.
func (c *Collector) SetMachines(n int) {
	c.machines.Set(float64(n))
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
