package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every collector this package registers
const namespace = "rmx"

// Standard histogram buckets for different metric types
var (
	// DurationBuckets: 10ms to ~3min, runs range from a few files to whole build trees
	DurationBuckets = prometheus.ExponentialBuckets(0.01, 4, 8)

	// APIBuckets: 1ms to 500ms for exporter scrapes
	APIBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5}
)

// NewDurationHistogram creates a histogram in seconds over DurationBuckets
func NewDurationHistogram(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   DurationBuckets,
	})
}

// NewHistogramVec creates a labeled histogram with the given buckets
func NewHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// NewCounter creates a standard counter metric
func NewCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// NewCounterVec creates a labeled counter
func NewCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

func NewGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func NewGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}
