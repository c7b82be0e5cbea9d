package codspeed

import (
	"fmt"

	"codspeed/internal/fifo"
	"codspeed/internal/telemetry"
)

// Backend is the measurement instrument a benchmark process talks to.
type Backend interface {
	// IsActive reports whether measurements are actually recorded.
	IsActive() bool
	StartBenchmark() error
	StopBenchmark() error
	// SetExecutedBenchmark tags the data collected since the last start.
	SetExecutedBenchmark(pid int, uri string) error
	SetIntegration(name, version string) error
	// ToggleCollect pauses or resumes data collection.
	ToggleCollect() error
	Close() error
}

// BackendError carries the numeric status returned by an instrument.
type BackendError struct {
	Op   string
	Code int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed with code %d", e.Op, e.Code)
}

// NoopBackend records nothing. Benchmarks are only checked for correctness.
type NoopBackend struct{}

func (NoopBackend) IsActive() bool                         { return false }
func (NoopBackend) StartBenchmark() error                  { return nil }
func (NoopBackend) StopBenchmark() error                   { return nil }
func (NoopBackend) SetExecutedBenchmark(int, string) error { return nil }
func (NoopBackend) SetIntegration(string, string) error    { return nil }
func (NoopBackend) ToggleCollect() error                   { return nil }
func (NoopBackend) Close() error                           { return nil }

// DetectBackend picks the instrument available to this process: the inline
// simulator requests when running under the simulator, the runner pipes when
// they exist, and the no-op backend otherwise.
func DetectBackend() Backend {
	inline := InlineBackend{}
	if inline.IsActive() {
		telemetry.LogDebug("Using inline simulator backend")
		return inline
	}
	if fifo.Exists(fifo.RunnerCtlPath) && fifo.Exists(fifo.RunnerAckPath) {
		b, err := NewFifoBackend(fifo.RunnerCtlPath, fifo.RunnerAckPath)
		if err == nil {
			telemetry.LogDebug("Using runner fifo backend")
			return b
		}
		telemetry.LogWarn("Runner pipes found but unusable", "error", err)
	}
	return NoopBackend{}
}
