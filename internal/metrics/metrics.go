// Package metrics wraps prometheus/client_golang behind the same
// call shape used throughout the relay's ambient stack:
// metrics.NewCounter(CounterOpts{...}, labelNames) returns a
// ready-to-increment vector, sparing call sites the promauto
// boilerplate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alertbridge"

// CounterOpts names one counter family. Subsystem groups related
// counters (e.g. "hmac", "forwarder") the way the relay's components
// are named.
type CounterOpts struct {
	Subsystem string
	Name      string
	Help      string
}

// NewCounter registers (and returns) a label-partitioned counter
// family. Calling it twice for the same Subsystem/Name panics via the
// underlying prometheus registry, matching promauto's fail-fast
// behavior for duplicate registration.
func NewCounter(opts CounterOpts, labelNames []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, labelNames)
}

// GaugeOpts names one gauge family.
type GaugeOpts struct {
	Subsystem string
	Name      string
	Help      string
}

// NewGauge registers (and returns) a label-partitioned gauge family.
func NewGauge(opts GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, labelNames)
}

// HistogramOpts names one histogram family.
type HistogramOpts struct {
	Subsystem string
	Name      string
	Help      string
	Buckets   []float64
}

// NewHistogram registers (and returns) a label-partitioned histogram
// family, used for forward-duration observations.
func NewHistogram(opts HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
		Buckets:   buckets,
	}, labelNames)
}
