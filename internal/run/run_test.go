package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codspeed/internal/cargo"
	cserrors "codspeed/internal/errors"
	"codspeed/internal/metrics"
	"codspeed/internal/mode"
	"codspeed/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workspace struct {
	root   string
	meta   *cargo.Metadata
	log    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	for _, pkg := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, pkg), 0755))
	}
	return &workspace{
		root: root,
		log:  filepath.Join(root, "run.log"),
		meta: &cargo.Metadata{
			Packages: []cargo.Package{
				{ID: "a-id", Name: "a", ManifestPath: filepath.Join(root, "a", "Cargo.toml")},
				{ID: "b-id", Name: "b", ManifestPath: filepath.Join(root, "b", "Cargo.toml")},
			},
			WorkspaceMembers:        []string{"a-id", "b-id"},
			WorkspaceDefaultMembers: []string{"a-id", "b-id"},
			WorkspaceRoot:           root,
			TargetDirectory:         filepath.Join(root, "target"),
		},
	}
}

// logScript records its environment, working directory and arguments.
const logScript = `#!/bin/sh
echo "$(basename "$0")|$CODSPEED_CARGO_WORKSPACE_ROOT|$CODSPEED_RUNNER_MODE|$CODSPEED_SHOW_DETAILS|$(pwd -P)|$*" >> "$RUN_LOG"
echo "Checked: $(basename "$0")::first"
echo "Checked: $(basename "$0")::second"
`

func (w *workspace) addSuite(t *testing.T, m mode.MeasurementMode, pkg, name, script string) {
	t.Helper()
	dir := filepath.Join(w.meta.CodspeedDir(mode.ForMeasurement(m).Dir()), pkg)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0755))
}

func (w *workspace) runner() *Runner {
	r := New(w.meta)
	r.Stdout = &w.stdout
	r.Stderr = &w.stderr
	r.Environ = func() []string {
		return []string{"PATH=" + os.Getenv("PATH"), "RUN_LOG=" + w.log}
	}
	return r
}

func (w *workspace) logLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(w.log)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// counterValue sums every series of the named counter.
func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func resolved(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return p
}

func TestRunTwoSuites(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "bench_a", logScript)
	w.addSuite(t, mode.Simulation, "a", "bench_b", logScript)

	summary, err := w.runner().Run(context.Background(), Options{Mode: mode.Simulation})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Suites)
	assert.Nil(t, summary.Report)
	stderr := w.stderr.String()
	assert.Contains(t, stderr, "Collected 2 benchmark suite(s) to run")
	assert.Contains(t, stderr, "Running bench_a")
	assert.Contains(t, stderr, "Done running bench_b")
	assert.Contains(t, stderr, "Finished running 2 benchmark suite(s)")
	assert.Contains(t, w.stdout.String(), "Checked: bench_a::first")

	lines := w.logLines(t)
	require.Len(t, lines, 2)
	pkgDir := resolved(t, filepath.Join(w.root, "a"))
	assert.Equal(t, fmt.Sprintf("bench_a|%s|simulation||%s|", w.root, pkgDir), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "bench_b|"))
}

func TestRunDetailsCountsBenchmarks(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "bench_a", logScript)
	w.addSuite(t, mode.Simulation, "b", "bench_b", logScript)

	summary, err := w.runner().Run(context.Background(), Options{Mode: mode.Simulation, Details: true})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Suites)
	assert.Equal(t, 4, summary.Benchmarks)
	assert.Contains(t, w.stderr.String(), "Done running bench_a (2 benchmarks)")
	assert.Contains(t, w.stderr.String(), "Done running bench_b (2 benchmarks)")
	assert.Contains(t, w.stderr.String(), "Finished running 2 benchmark suite(s) (4 benchmarks total)")
	assert.Contains(t, w.stdout.String(), "Checked: bench_b::second")
	for _, line := range w.logLines(t) {
		assert.Contains(t, line, "|simulation|true|")
	}
}

func TestNameFilters(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "parse_json", logScript)
	w.addSuite(t, mode.Simulation, "a", "parse_toml", logScript)
	w.addSuite(t, mode.Simulation, "b", "render", logScript)

	tests := []struct {
		name    string
		filters []string
		want    []string
		missing []string
	}{
		{"no filter", nil, []string{"parse_json", "parse_toml", "render"}, nil},
		{"substring", []string{"parse"}, []string{"parse_json", "parse_toml"}, nil},
		{"several", []string{"json", "rend"}, []string{"parse_json", "render"}, nil},
		{"unmatched", []string{"json", "nope", "zzz"}, nil, []string{"nope", "zzz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suites, err := w.runner().Discover(Options{Mode: mode.Simulation, Names: tt.filters})
			if tt.missing != nil {
				var nf *cserrors.NameNotFoundError
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, tt.missing, nf.Names)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, s := range suites {
				got = append(got, s.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscoverBenchesAndPackages(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "bench_a", logScript)
	w.addSuite(t, mode.Simulation, "b", "bench_b", logScript)

	suites, err := w.runner().Discover(Options{Mode: mode.Simulation, Benches: []string{"bench_b"}})
	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Equal(t, "b", suites[0].Package.Name)

	suites, err = w.runner().Discover(Options{Mode: mode.Simulation, Filters: cargo.PackageFilters{Package: []string{"a"}}})
	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Equal(t, "bench_a", suites[0].Name)

	_, err = w.runner().Discover(Options{Mode: mode.Simulation, Filters: cargo.PackageFilters{Exclude: []string{"a"}}})
	var cfgErr *cserrors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = w.runner().Discover(Options{Mode: mode.Simulation, Benches: []string{"bench_a", "typo_bench", "bench_c"}})
	var nf *cserrors.NameNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, []string{"typo_bench", "bench_c"}, nf.Names)
}

func TestRunUnknownBenchFails(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "bench_a", logScript)

	summary, err := w.runner().Run(context.Background(), Options{Mode: mode.Simulation, Benches: []string{"typo_bench"}})
	assert.Nil(t, summary)
	assert.EqualError(t, err, "The following benchmarks to run were not found: typo_bench")
	assert.NotContains(t, w.stderr.String(), "Collected")
	assert.Empty(t, w.logLines(t))
}

func TestDiscoverNothingBuilt(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "bench_a", logScript)

	_, err := w.runner().Discover(Options{Mode: mode.Walltime})
	var de *cserrors.DiscoveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Error(), "cargo codspeed build -m walltime")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "a_fails", "#!/bin/sh\nexit 3\n")
	w.addSuite(t, mode.Simulation, "a", "b_never", logScript)

	m := metrics.NewMetrics()
	r := w.runner()
	r.Metrics = m
	_, err := r.Run(context.Background(), Options{Mode: mode.Simulation})

	var ee *cserrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "a_fails", ee.Bench)
	assert.Equal(t, 3, ee.ExitCode)
	assert.Equal(t, 3, cserrors.ExitCode(err))
	assert.Empty(t, w.logLines(t))
	assert.NotContains(t, w.stderr.String(), "Finished")
	assert.Equal(t, 1.0, counterValue(t, m, "codspeed_suites_run_total"))
}

func TestRunSignaledSuite(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Simulation, "a", "killed", "#!/bin/sh\nkill -9 $$\n")

	_, err := w.runner().Run(context.Background(), Options{Mode: mode.Simulation})

	var ee *cserrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 9, ee.Signal)
	assert.Equal(t, 137, cserrors.ExitCode(err))
}

// walltimeScript drops one raw sample the way pkg/codspeed does.
const walltimeScript = `#!/bin/sh
echo "$(basename "$0")|$*" >> "$RUN_LOG"
dir="$CODSPEED_CARGO_WORKSPACE_ROOT/target/codspeed/walltime/raw_results/sh"
mkdir -p "$dir"
name=$(basename "$0")
echo "{\"name\":\"$name\",\"uri\":\"benches/$name.go::$name\",\"iters_per_round\":[10,10],\"times_per_round_ns\":[1000,3000],\"max_time_ns\":null}" > "$dir/$name.json"
echo "Checked: benches/$name.go::$name"
`

func TestRunWalltimeWritesReport(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Walltime, "a", "wt_b", walltimeScript)
	w.addSuite(t, mode.Walltime, "b", "wt_a", walltimeScript)

	stale := filepath.Join(stats.RawResultsDir(w.root), "old", "stale.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("not json"), 0644))

	profile := filepath.Join(w.root, "profile")
	m := metrics.NewMetrics()
	r := w.runner()
	r.Metrics = m
	summary, err := r.Run(context.Background(), Options{Mode: mode.Walltime, ProfileFolder: profile})
	require.NoError(t, err)

	for _, line := range w.logLines(t) {
		assert.True(t, strings.HasSuffix(line, "|--bench"), line)
	}
	assert.NoFileExists(t, stale)

	require.NotNil(t, summary.Report)
	assert.Equal(t, filepath.Join(profile, "results", fmt.Sprintf("%d.json", os.Getpid())), summary.ReportPath)
	require.Len(t, summary.Report.Benchmarks, 2)
	assert.Equal(t, "wt_a", summary.Report.Benchmarks[0].Name)
	assert.Equal(t, 200.0, summary.Report.Benchmarks[0].Stats.MedianNs)

	loaded, err := stats.LoadReport(summary.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, "walltime", loaded.Instrument.Type)
	assert.Contains(t, w.stdout.String(), "BENCHMARK")
	assert.Equal(t, 2.0, counterValue(t, m, "codspeed_benchmarks_reported_total"))
}

func TestRunWalltimeWithoutSamples(t *testing.T) {
	w := newWorkspace(t)
	w.addSuite(t, mode.Walltime, "a", "silent", logScript)

	summary, err := w.runner().Run(context.Background(), Options{Mode: mode.Walltime})
	require.NoError(t, err)
	require.NotNil(t, summary.Report)
	assert.Empty(t, summary.Report.Benchmarks)
	assert.FileExists(t, summary.ReportPath)
	assert.Equal(t, stats.ProfileFolder(w.root, ""), filepath.Dir(filepath.Dir(summary.ReportPath)))
}

func TestStatusCounter(t *testing.T) {
	c := &statusCounter{}
	c.Write([]byte("Measured: a\nChe"))
	c.Write([]byte("cked: b\nnoise\nChecked: c"))
	assert.Equal(t, 2, c.count)
	c.flush()
	assert.Equal(t, 3, c.count)
}
