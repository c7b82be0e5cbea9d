// Package codspeed is the measurement engine linked into benchmark programs.
// It drives an instrument backend around each benchmark body and reports
// which benchmarks were measured.
package codspeed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codspeed/internal/config"
	"codspeed/internal/mode"
	"codspeed/internal/stats"
	"codspeed/internal/telemetry"
	"codspeed/internal/version"
)

// WarmupRuns is the number of untimed executions before measuring.
const WarmupRuns = 5

// SimulationRoundsTime bounds the rounds loop in simulation mode.
const SimulationRoundsTime = 100 * time.Millisecond

var (
	ErrInvalidRunnerMode   = errors.New("invalid runner mode")
	ErrBenchmarkInProgress = errors.New("a benchmark is already running")
	ErrNoBenchmark         = errors.New("no benchmark is running")
)

// State is the lifecycle position of the current benchmark.
type State int

const (
	Idle State = iota
	WarmingUp
	Measuring
	Reporting
)

func (s State) String() string {
	switch s {
	case WarmingUp:
		return "warming-up"
	case Measuring:
		return "measuring"
	case Reporting:
		return "reporting"
	default:
		return "idle"
	}
}

// Config wires an Engine. Zero values fall back to the no-op backend,
// stdout and the default walltime limits.
type Config struct {
	Backend Backend
	Runtime config.Runtime
	Out     io.Writer
	// Scope groups this process's raw walltime samples.
	Scope    string
	Walltime WalltimeConfig
}

// Engine measures benchmarks one at a time.
type Engine struct {
	backend  Backend
	rt       config.Runtime
	out      io.Writer
	scope    string
	walltime WalltimeConfig

	state       State
	current     string
	started     time.Time
	groups      []string
	benchmarked []string
	samples     []string
}

// New builds an engine and announces the integration to its backend. The
// engine owns the backend and releases it on Close.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		backend:  cfg.Backend,
		rt:       cfg.Runtime,
		out:      cfg.Out,
		scope:    cfg.Scope,
		walltime: cfg.Walltime.withDefaults(),
	}
	if e.backend == nil {
		e.backend = NoopBackend{}
	}
	if e.out == nil {
		e.out = os.Stdout
	}
	if e.scope == "" {
		e.scope = version.Name
	}
	if err := e.backend.SetIntegration(version.Name, version.Version); err != nil {
		return nil, fmt.Errorf("failed to register integration: %w", err)
	}
	return e, nil
}

// NewFromEnv configures an engine from the runner environment.
func NewFromEnv() (*Engine, error) {
	return New(Config{
		Backend: DetectBackend(),
		Runtime: config.RuntimeFromEnv(),
		Scope:   version.Name,
	})
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}

func (e *Engine) State() State            { return e.state }
func (e *Engine) Backend() Backend        { return e.backend }
func (e *Engine) Benchmarked() []string   { return e.benchmarked }
func (e *Engine) Groups() []string        { return e.groups }
func (e *Engine) RawSamples() []string    { return e.samples }
func (e *Engine) Runtime() config.Runtime { return e.rt }

// PushGroup nests the following benchmarks under name. Callers balance it
// with PopGroup.
func (e *Engine) PushGroup(name string) {
	e.groups = append(e.groups, name)
}

// PopGroup removes the innermost group.
func (e *Engine) PopGroup() (string, bool) {
	if len(e.groups) == 0 {
		return "", false
	}
	last := e.groups[len(e.groups)-1]
	e.groups = e.groups[:len(e.groups)-1]
	return last, true
}

// StartBenchmark records uri as the current benchmark and starts the backend.
// It resets the instrument so it must be called once per benchmark.
func (e *Engine) StartBenchmark(uri string) error {
	if e.state == Measuring || e.state == Reporting {
		return fmt.Errorf("%w: %s", ErrBenchmarkInProgress, e.current)
	}
	e.current = uri
	e.started = time.Now()
	if err := e.backend.StartBenchmark(); err != nil {
		e.state = Idle
		return fmt.Errorf("failed to start %s: %w", uri, err)
	}
	e.state = Measuring
	return nil
}

// EndBenchmark stops the backend and prints the status line.
func (e *Engine) EndBenchmark() error {
	if e.state != Measuring {
		return ErrNoBenchmark
	}
	e.state = Reporting
	defer func() { e.state = Idle }()

	elapsed := time.Since(e.started)
	if err := e.backend.StopBenchmark(); err != nil {
		return fmt.Errorf("failed to stop %s: %w", e.current, err)
	}
	if err := e.backend.SetExecutedBenchmark(os.Getpid(), e.current); err != nil {
		return fmt.Errorf("failed to record %s: %w", e.current, err)
	}
	e.benchmarked = append(e.benchmarked, e.current)

	fmt.Fprintln(e.out, e.statusLine(elapsed))
	return nil
}

// abort stops the running benchmark after a failed collection toggle so the
// backend and the engine are ready for the next one. err is returned wrapped.
func (e *Engine) abort(err error) error {
	if stopErr := e.backend.StopBenchmark(); stopErr != nil {
		telemetry.LogWarn("Failed to stop aborted benchmark", "uri", e.current, "error", stopErr)
	}
	e.state = Idle
	return fmt.Errorf("benchmark %s aborted: %w", e.current, err)
}

func (e *Engine) statusLine(elapsed time.Duration) string {
	var sb strings.Builder
	if e.backend.IsActive() {
		sb.WriteString("Measured: ")
	} else {
		sb.WriteString("Checked: ")
	}
	sb.WriteString(e.current)
	if len(e.groups) > 0 {
		fmt.Fprintf(&sb, " (group: %s)", strings.Join(e.groups, "/"))
	}
	if e.rt.ShowDetails && !e.backend.IsActive() {
		fmt.Fprintf(&sb, " (%s)", stats.FormatNs(float64(elapsed.Nanoseconds())))
	}
	return sb.String()
}

// roundPolicy returns the round cap and the time cap for the runner mode.
// Zero means unbounded.
func roundPolicy(runnerMode string) (int, time.Duration, error) {
	m, err := mode.Parse(runnerMode)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRunnerMode, runnerMode)
	}
	switch m {
	case mode.Simulation:
		return 0, SimulationRoundsTime, nil
	case mode.Memory:
		return 1, 0, nil
	}
	return 0, 0, fmt.Errorf("%w: %q has no round policy", ErrInvalidRunnerMode, runnerMode)
}

// RunRounds measures iteration in rounds. The backend is started once, then
// collection is resumed right before and paused right after every call.
func (e *Engine) RunRounds(uri string, iteration func()) (int, error) {
	maxRounds, maxDuration, err := roundPolicy(e.rt.RunnerMode)
	if err != nil {
		return 0, err
	}

	if err := e.StartBenchmark(uri); err != nil {
		return 0, err
	}
	if err := e.backend.ToggleCollect(); err != nil {
		return 0, e.abort(err)
	}

	start := time.Now()
	rounds := 0
	for {
		rounds++
		if err := e.backend.ToggleCollect(); err != nil {
			return rounds, e.abort(err)
		}
		iteration()
		if err := e.backend.ToggleCollect(); err != nil {
			return rounds, e.abort(err)
		}

		withinRounds := maxRounds == 0 || rounds < maxRounds
		withinDuration := maxDuration == 0 || time.Since(start) < maxDuration
		if !(withinRounds && withinDuration) {
			break
		}
	}

	return rounds, e.EndBenchmark()
}

func (e *Engine) warmup(body func()) {
	e.state = WarmingUp
	for i := 0; i < WarmupRuns; i++ {
		BlackBox(body)()
	}
	e.state = Idle
}

// Bench warms body up, then measures it according to the runner mode.
func (e *Engine) Bench(uri string, body func()) error {
	if isWalltime(e.rt.RunnerMode) {
		return e.benchWalltime(uri, func() { BlackBox(body)() })
	}
	if _, _, err := roundPolicy(e.rt.RunnerMode); err != nil {
		return err
	}
	e.warmup(body)
	_, err := e.RunRounds(uri, func() { BlackBox(body)() })
	return err
}

// BenchWithSetup runs setup before every execution of routine, outside of
// the measured section.
func BenchWithSetup[I, O any](e *Engine, uri string, setup func() I, routine func(I) O) error {
	if isWalltime(e.rt.RunnerMode) {
		return e.benchWalltimeWithSetup(uri, func() func() {
			input := setup()
			return func() { BlackBox(routine(BlackBox(input))) }
		})
	}
	maxRounds, maxDuration, err := roundPolicy(e.rt.RunnerMode)
	if err != nil {
		return err
	}

	e.state = WarmingUp
	for i := 0; i < WarmupRuns; i++ {
		BlackBox(routine(BlackBox(setup())))
	}
	e.state = Idle

	if err := e.StartBenchmark(uri); err != nil {
		return err
	}
	if err := e.backend.ToggleCollect(); err != nil {
		return e.abort(err)
	}
	start := time.Now()
	for rounds := 1; ; rounds++ {
		input := setup()
		if err := e.backend.ToggleCollect(); err != nil {
			return e.abort(err)
		}
		out := routine(BlackBox(input))
		if err := e.backend.ToggleCollect(); err != nil {
			return e.abort(err)
		}
		BlackBox(out)

		withinRounds := maxRounds == 0 || rounds < maxRounds
		withinDuration := maxDuration == 0 || time.Since(start) < maxDuration
		if !(withinRounds && withinDuration) {
			break
		}
	}
	return e.EndBenchmark()
}

func isWalltime(runnerMode string) bool {
	m, err := mode.Parse(runnerMode)
	return err == nil && m == mode.Walltime
}

// benchName is the last path segment of a benchmark URI.
func benchName(uri string) string {
	if i := strings.LastIndex(uri, "::"); i >= 0 {
		return uri[i+2:]
	}
	return filepath.Base(uri)
}
