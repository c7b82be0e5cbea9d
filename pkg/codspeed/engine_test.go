package codspeed

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"codspeed/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersIntegration(t *testing.T) {
	b := &recordingBackend{}
	e, err := New(Config{Backend: b})
	require.NoError(t, err)
	require.Len(t, b.calls, 1)
	assert.Contains(t, b.calls[0], "integration codspeed-go ")

	require.NoError(t, e.Close())
	assert.True(t, b.closed)
}

func TestNewDefaultsToNoopBackend(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, NoopBackend{}, e.Backend())
	assert.Equal(t, Idle, e.State())
}

func TestMemoryModeRunsOneRound(t *testing.T) {
	b := &recordingBackend{}
	e, out := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

	count := 0
	rounds, err := e.RunRounds("benches/a.go::a::f", func() { count++ })
	require.NoError(t, err)

	assert.Equal(t, 1, rounds)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"start", "toggle", "toggle", "toggle", "stop", "executed benches/a.go::a::f"}, b.calls)
	assert.Equal(t, "Checked: benches/a.go::a::f\n", out.String())
	assert.Equal(t, []string{"benches/a.go::a::f"}, e.Benchmarked())
	assert.Equal(t, Idle, e.State())
}

func TestSimulationRunsUntilTimeLimit(t *testing.T) {
	for _, runnerMode := range []string{"simulation", "instrumentation"} {
		t.Run(runnerMode, func(t *testing.T) {
			b := &recordingBackend{}
			e, _ := newTestEngine(t, config.Runtime{RunnerMode: runnerMode}, b)

			count := 0
			start := time.Now()
			rounds, err := e.RunRounds("f", func() {
				count++
				time.Sleep(10 * time.Millisecond)
			})
			require.NoError(t, err)

			assert.GreaterOrEqual(t, time.Since(start), SimulationRoundsTime)
			assert.Greater(t, rounds, 1)
			assert.Equal(t, rounds, count)
			assert.Equal(t, 2*rounds+1, b.toggles)
			assert.Equal(t, "start", b.calls[0])
		})
	}
}

func TestInvalidRunnerMode(t *testing.T) {
	for _, runnerMode := range []string{"", "bogus"} {
		t.Run(runnerMode, func(t *testing.T) {
			b := &recordingBackend{}
			e, _ := newTestEngine(t, config.Runtime{RunnerMode: runnerMode}, b)

			_, err := e.RunRounds("f", func() {})
			assert.ErrorIs(t, err, ErrInvalidRunnerMode)

			err = e.Bench("f", func() {})
			assert.ErrorIs(t, err, ErrInvalidRunnerMode)
			assert.Empty(t, b.calls)
		})
	}

	t.Run("walltime has no round policy", func(t *testing.T) {
		e, _ := newTestEngine(t, config.Runtime{RunnerMode: "walltime"}, &recordingBackend{})
		_, err := e.RunRounds("f", func() {})
		assert.ErrorIs(t, err, ErrInvalidRunnerMode)
	})
}

func TestBenchWarmsUpBeforeStart(t *testing.T) {
	b := &recordingBackend{}
	e, _ := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

	err := e.Bench("f", func() { b.calls = append(b.calls, "body") })
	require.NoError(t, err)

	assert.Equal(t, []string{
		"body", "body", "body", "body", "body",
		"start", "toggle",
		"toggle", "body", "toggle",
		"stop", "executed f",
	}, b.calls)
}

func TestBenchWithSetup(t *testing.T) {
	b := &recordingBackend{}
	e, _ := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

	setups, routines := 0, 0
	err := BenchWithSetup(e, "sum", func() []int {
		setups++
		return []int{1, 2, 3}
	}, func(in []int) int {
		routines++
		total := 0
		for _, v := range in {
			total += v
		}
		return total
	})
	require.NoError(t, err)

	assert.Equal(t, WarmupRuns+1, setups)
	assert.Equal(t, WarmupRuns+1, routines)
	assert.Equal(t, 3, b.toggles)
	assert.Equal(t, []string{"sum"}, e.Benchmarked())
}

func TestGroupStatusLine(t *testing.T) {
	b := &recordingBackend{}
	e, out := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

	e.PushGroup("g")
	require.NoError(t, e.Bench("f", func() {}))
	assert.Contains(t, out.String(), "Checked: f (group: g)")

	e.PushGroup("inner")
	out.Reset()
	require.NoError(t, e.Bench("h", func() {}))
	assert.Equal(t, "Checked: h (group: g/inner)\n", out.String())

	name, ok := e.PopGroup()
	assert.True(t, ok)
	assert.Equal(t, "inner", name)
	assert.Equal(t, []string{"g"}, e.Groups())

	e.PopGroup()
	_, ok = e.PopGroup()
	assert.False(t, ok)
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name    string
		active  bool
		details bool
		pattern string
	}{
		{"checked", false, false, `^Checked: f\n$`},
		{"measured", true, false, `^Measured: f\n$`},
		{"checked with elapsed", false, true, `^Checked: f \([0-9]+(\.[0-9]+)? (ns|us|ms|s)\)\n$`},
		{"measured hides elapsed", true, true, `^Measured: f\n$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBackend{active: tt.active}
			e, out := newTestEngine(t, config.Runtime{RunnerMode: "memory", ShowDetails: tt.details}, b)

			require.NoError(t, e.StartBenchmark("f"))
			require.NoError(t, e.EndBenchmark())
			assert.Regexp(t, tt.pattern, out.String())
		})
	}
}

func TestStartEndOrdering(t *testing.T) {
	e, _ := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, &recordingBackend{})

	assert.ErrorIs(t, e.EndBenchmark(), ErrNoBenchmark)

	require.NoError(t, e.StartBenchmark("f"))
	assert.Equal(t, Measuring, e.State())
	assert.ErrorIs(t, e.StartBenchmark("g"), ErrBenchmarkInProgress)
	require.NoError(t, e.EndBenchmark())
	assert.Equal(t, Idle, e.State())
}

func TestBackendErrorPropagates(t *testing.T) {
	b := &recordingBackend{startErr: &BackendError{Op: "start", Code: 3}}
	e, _ := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

	err := e.Bench("f", func() {})
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 3, be.Code)
	assert.Equal(t, Idle, e.State())
	assert.Empty(t, e.Benchmarked())
}

func TestToggleFailureStopsBenchmark(t *testing.T) {
	runners := map[string]func(e *Engine) error{
		"rounds": func(e *Engine) error {
			_, err := e.RunRounds("f", func() {})
			return err
		},
		"setup": func(e *Engine) error {
			return BenchWithSetup(e, "f", func() int { return 1 }, func(i int) int { return i })
		},
	}
	for name, runBench := range runners {
		for failAt := 1; failAt <= 3; failAt++ {
			t.Run(fmt.Sprintf("%s/toggle %d", name, failAt), func(t *testing.T) {
				b := &recordingBackend{failToggle: failAt}
				e, out := newTestEngine(t, config.Runtime{RunnerMode: "memory"}, b)

				err := runBench(e)
				require.ErrorIs(t, err, errToggle)
				assert.Equal(t, "stop", b.calls[len(b.calls)-1])
				assert.NotContains(t, b.calls, "executed f")
				assert.Equal(t, Idle, e.State())
				assert.Empty(t, e.Benchmarked())
				assert.Empty(t, out.String())

				b.failToggle = 0
				require.NoError(t, e.StartBenchmark("g"))
				require.NoError(t, e.EndBenchmark())
				assert.Equal(t, []string{"g"}, e.Benchmarked())
			})
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "warming-up", WarmingUp.String())
	assert.Equal(t, "measuring", Measuring.String())
	assert.Equal(t, "reporting", Reporting.String())
}

func TestBlackBox(t *testing.T) {
	assert.Equal(t, 42, BlackBox(42))
	assert.Equal(t, "x", BlackBox("x"))
}
