package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics represents the pipeline's Prometheus metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SuitesBuilt   *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	SuitesRun     *prometheus.CounterVec
	SuiteDuration *prometheus.HistogramVec

	BenchmarksReported prometheus.Counter
	InvalidBenchmarks  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.SuitesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codspeed_suites_built_total",
			Help: "Total number of benchmark suites built",
		},
		[]string{"mode"},
	)

	m.BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codspeed_build_duration_seconds",
			Help:    "Duration of cargo builds in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"mode"},
	)

	m.SuitesRun = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codspeed_suites_run_total",
			Help: "Total number of benchmark suites executed",
		},
		[]string{"mode", "status"},
	)

	m.SuiteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codspeed_suite_duration_seconds",
			Help:    "Duration of benchmark suite processes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	m.BenchmarksReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codspeed_benchmarks_reported_total",
			Help: "Total number of walltime benchmarks written to a report",
		},
	)

	m.InvalidBenchmarks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codspeed_invalid_benchmarks_total",
			Help: "Total number of benchmarks whose minimum time was zero",
		},
	)

	m.registry.MustRegister(
		m.SuitesBuilt,
		m.BuildDuration,
		m.SuitesRun,
		m.SuiteDuration,
		m.BenchmarksReported,
		m.InvalidBenchmarks,
	)

	return m
}

// ObserveBuild records one cargo build of the given mode.
func (m *Metrics) ObserveBuild(mode string, d time.Duration, suites int) {
	if m == nil {
		return
	}
	m.BuildDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.SuitesBuilt.WithLabelValues(mode).Add(float64(suites))
}

// ObserveSuite records one benchmark process.
func (m *Metrics) ObserveSuite(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.SuitesRun.WithLabelValues(mode, status).Inc()
	m.SuiteDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveReport records a written walltime report.
func (m *Metrics) ObserveReport(benchmarks, invalid int) {
	if m == nil {
		return
	}
	m.BenchmarksReported.Add(float64(benchmarks))
	m.InvalidBenchmarks.Add(float64(invalid))
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
