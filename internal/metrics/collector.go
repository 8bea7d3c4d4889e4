// Package metrics provides Prometheus metrics for go-test-harness.
// Mostly useful in long-lived watch mode.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	harnessRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_runs_total",
			Help: "Run cycles initiated",
		},
	)

	harnessRunsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_runs_failed_total",
			Help: "Run cycles that ended with a non-zero test exit code",
		},
	)

	harnessRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harness_run_duration_seconds",
			Help:    "Duration of complete run cycles",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	harnessTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_triggers_total",
			Help: "Watch-mode triggers received, by source",
		},
		[]string{"source"},
	)

	harnessSegmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_segments_total",
			Help: "Output segments submitted to the multiplexer",
		},
	)

	harnessSinkBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_sink_bytes_total",
			Help: "Bytes forwarded to the ordered sink",
		},
	)

	harnessProbeReachable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harness_probe_reachable",
			Help: "Dependent service reachability (1 = reachable)",
		},
		[]string{"service"},
	)

	harnessSchedulerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_scheduler_state",
			Help: "Watch scheduler state (0 idle, 1 running, 2 running+pending)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		harnessRunsTotal,
		harnessRunsFailedTotal,
		harnessRunDurationSeconds,
		harnessTriggersTotal,
		harnessSegmentsTotal,
		harnessSinkBytesTotal,
		harnessProbeReachable,
		harnessSchedulerState,
	)
}

// Collector updates harness metrics.
type Collector struct {
	lastSegments uint64
	lastBytes    int64
}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RunStarted records an initiated run cycle.
func (c *Collector) RunStarted() {
	harnessRunsTotal.Inc()
}

// RunCompleted records a finished run cycle.
func (c *Collector) RunCompleted(duration time.Duration, exitCode int) {
	harnessRunDurationSeconds.Observe(duration.Seconds())
	if exitCode != 0 {
		harnessRunsFailedTotal.Inc()
	}
}

// TriggerReceived records one watch-mode trigger.
func (c *Collector) TriggerReceived(source string) {
	harnessTriggersTotal.WithLabelValues(source).Inc()
}

// SchedulerState records the scheduler's current state ordinal.
func (c *Collector) SchedulerState(state int) {
	harnessSchedulerState.Set(float64(state))
}

// ProbeResult records a service's reachability.
func (c *Collector) ProbeResult(service string, reachable bool) {
	v := 0.0
	if reachable {
		v = 1.0
	}
	harnessProbeReachable.WithLabelValues(service).Set(v)
}

// MuxStats folds the multiplexer's cumulative counters into the
// monotonic Prometheus counters.
func (c *Collector) MuxStats(segments uint64, bytes int64) {
	if segments > c.lastSegments {
		harnessSegmentsTotal.Add(float64(segments - c.lastSegments))
		c.lastSegments = segments
	}
	if bytes > c.lastBytes {
		harnessSinkBytesTotal.Add(float64(bytes - c.lastBytes))
		c.lastBytes = bytes
	}
}
