package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rmx/internal/broker"
	"rmx/internal/report"
)

// Run metrics
var (
	// RunDuration tracks how long whole runs take
	RunDuration prometheus.Histogram

	FilesRemovedTotal prometheus.Counter
	DirsRemovedTotal  prometheus.Counter
	LinksRemovedTotal prometheus.Counter

	// BytesRemovedTotal tracks the size of removed regular files
	BytesRemovedTotal prometheus.Counter

	// RetriesTotal counts lock-retry attempts beyond the first
	RetriesTotal prometheus.Counter

	// ProcessesTerminatedTotal counts lock holders ended by --kill-processes or --unlock
	ProcessesTerminatedTotal prometheus.Counter

	// ErrorsTotal counts permanent failures by kind
	ErrorsTotal *prometheus.CounterVec

	// LastRunTimestamp records Unix timestamp of the last finished run
	LastRunTimestamp prometheus.Gauge

	// LastRunMode is 1 for the mode of the last run (delete, dry_run, unlock)
	LastRunMode *prometheus.GaugeVec

	// WorkersActive is the size of the pool currently running
	WorkersActive prometheus.Gauge

	// FanOutsTotal counts batches split across the pool
	FanOutsTotal prometheus.Counter
)

// initRunMetrics initializes all run metrics
func initRunMetrics() {
	RunDuration = NewDurationHistogram(
		"run_duration_seconds",
		"Duration of rmx runs in seconds.",
	)
	FilesRemovedTotal = NewCounter(
		"files_removed_total",
		"Total number of files removed.",
	)
	DirsRemovedTotal = NewCounter(
		"dirs_removed_total",
		"Total number of directories removed.",
	)
	LinksRemovedTotal = NewCounter(
		"links_removed_total",
		"Total number of links and reparse points removed.",
	)
	BytesRemovedTotal = NewCounter(
		"bytes_removed_total",
		"Total bytes of regular files removed.",
	)
	RetriesTotal = NewCounter(
		"lock_retries_total",
		"Total number of retried deletions after a sharing violation.",
	)
	ProcessesTerminatedTotal = NewCounter(
		"processes_terminated_total",
		"Total number of lock-holding processes terminated.",
	)
	ErrorsTotal = NewCounterVec(
		"errors_total",
		"Total number of permanent failures by kind.",
		[]string{"kind"},
	)
	LastRunTimestamp = NewGauge(
		"last_run_timestamp",
		"Timestamp of the last finished run (Unix epoch seconds).",
	)
	LastRunMode = NewGaugeVec(
		"last_run_mode",
		"Mode of the last run, the active mode is 1.",
		[]string{"mode"},
	)
	WorkersActive = NewGauge(
		"workers_active",
		"Number of deletion workers in the running pool.",
	)
	FanOutsTotal = NewCounter(
		"batch_fanouts_total",
		"Total number of directory batches split across workers.",
	)
}

// registerRunMetrics registers all run metrics with Prometheus
func registerRunMetrics() {
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(FilesRemovedTotal)
	prometheus.MustRegister(DirsRemovedTotal)
	prometheus.MustRegister(LinksRemovedTotal)
	prometheus.MustRegister(BytesRemovedTotal)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(ProcessesTerminatedTotal)
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(LastRunMode)
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(FanOutsTotal)
}

func errorKinds() []string {
	kinds := report.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}

// SetRunMode resets all mode gauges to 0, then sets the active mode to 1
func SetRunMode(mode string) {
	modeMutex.Lock()
	defer modeMutex.Unlock()

	LastRunMode.Reset()
	LastRunMode.WithLabelValues(mode).Set(1)
}

// SetActiveWorkers records the pool size; zero when the pool stops
func SetActiveWorkers(count int) {
	WorkersActive.Set(float64(count))
}

// RecordFanOut counts one split batch
func RecordFanOut() {
	FanOutsTotal.Inc()
}

// RecordRun stamps a finished run. Per-item counters are fed live by Sink.
func RecordRun(elapsed time.Duration) {
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError counts one failure that never went through a worker, such as
// a root rejected before scheduling
func RecordError(kind report.Kind) {
	ErrorsTotal.WithLabelValues(kind.String()).Inc()
}

// Sink feeds the counters from broker results as they are accounted
type Sink struct{}

// NewSink initializes the metrics and returns a sink for the broker
func NewSink() Sink {
	Init()
	return Sink{}
}

// Observe implements broker.Sink
func (Sink) Observe(res broker.Result) {
	FilesRemovedTotal.Add(float64(res.FilesRemoved))
	DirsRemovedTotal.Add(float64(res.DirsRemoved))
	LinksRemovedTotal.Add(float64(res.LinksRemoved))
	BytesRemovedTotal.Add(float64(res.Bytes))
	RetriesTotal.Add(float64(res.Retries))
	ProcessesTerminatedTotal.Add(float64(res.Killed))
	for _, rec := range res.Failures {
		RecordError(rec.Kind)
	}
}

var _ broker.Sink = Sink{}
