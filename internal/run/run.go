// Package run executes built benchmark suites one process at a time and
// collects walltime results once every suite has succeeded.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codspeed/internal/cargo"
	"codspeed/internal/config"
	cserrors "codspeed/internal/errors"
	"codspeed/internal/metrics"
	"codspeed/internal/mode"
	"codspeed/internal/stats"
	"codspeed/internal/telemetry"
	"codspeed/internal/ui"
	"codspeed/internal/utils"
	"codspeed/internal/version"
)

// Options mirrors the run command line.
type Options struct {
	Mode    mode.MeasurementMode
	Filters cargo.PackageFilters
	// Benches keeps only suites with these exact names.
	Benches []string
	// Names keeps suites whose name contains any of these substrings.
	Names []string
	// Details captures output to count the benchmarks of every suite.
	Details       bool
	ProfileFolder string
}

// Suite is one built benchmark executable.
type Suite struct {
	Name    string
	Package cargo.Package
	Path    string
}

// Summary describes a completed run.
type Summary struct {
	Suites     int
	Benchmarks int
	Report     *stats.Report
	ReportPath string
}

// Runner runs the suites staged by a build.
type Runner struct {
	Meta    *cargo.Metadata
	Stdout  io.Writer
	Stderr  io.Writer
	Metrics *metrics.Metrics
	Environ func() []string
}

// New returns a runner attached to the process standard streams.
func New(meta *cargo.Metadata) *Runner {
	return &Runner{
		Meta:    meta,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Environ: os.Environ,
	}
}

// Discover lists the suites built for opts.Mode, filtered by opts.
func (r *Runner) Discover(opts Options) ([]Suite, error) {
	if err := opts.Filters.Validate(); err != nil {
		return nil, err
	}
	packages, err := opts.Filters.Resolve(r.Meta)
	if err != nil {
		return nil, err
	}

	base := r.Meta.CodspeedDir(mode.ForMeasurement(opts.Mode).Dir())
	var found []Suite
	for _, pkg := range packages {
		files, err := utils.ListFiles(filepath.Join(base, pkg.Name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list benchmarks of %s: %w", pkg.Name, err)
		}
		for _, f := range files {
			found = append(found, Suite{Name: filepath.Base(f), Package: pkg, Path: f})
		}
	}
	if len(found) == 0 {
		return nil, &cserrors.DiscoveryError{
			Message: fmt.Sprintf("No benchmarks found. Run `cargo codspeed build -m %s` first.", opts.Mode),
		}
	}

	found, err = filterBenches(found, opts.Benches)
	if err != nil {
		return nil, err
	}
	return filterNames(found, opts.Names)
}

// filterBenches keeps suites named exactly after one of benches. Every name
// must match a suite.
func filterBenches(suites []Suite, benches []string) ([]Suite, error) {
	if len(benches) == 0 {
		return suites, nil
	}
	wanted := make(map[string]bool, len(benches))
	for _, b := range benches {
		wanted[b] = true
	}
	seen := make(map[string]bool, len(benches))
	var out []Suite
	for _, s := range suites {
		if wanted[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}

	var missing []string
	for _, b := range benches {
		if !seen[b] {
			missing = append(missing, b)
			seen[b] = true
		}
	}
	if len(missing) > 0 {
		return nil, &cserrors.NameNotFoundError{Names: missing}
	}
	return out, nil
}

// filterNames keeps suites matching at least one substring. Every substring
// must match something.
func filterNames(suites []Suite, names []string) ([]Suite, error) {
	if len(names) == 0 {
		return suites, nil
	}

	var missing []string
	for _, n := range names {
		matched := false
		for _, s := range suites {
			if strings.Contains(s.Name, n) {
				matched = true
				break
			}
		}
		if !matched {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &cserrors.NameNotFoundError{Names: missing}
	}

	var out []Suite
	for _, s := range suites {
		for _, n := range names {
			if strings.Contains(s.Name, n) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

// Run executes every selected suite sequentially. The first failing suite
// aborts the run.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	suites, err := r.Discover(opts)
	if err != nil {
		return nil, err
	}

	walltime := opts.Mode == mode.Walltime
	if walltime {
		if err := stats.ClearRawResults(r.Meta.WorkspaceRoot); err != nil {
			return nil, err
		}
	}

	ui.Statusf(r.Stderr, "Collected", "%d benchmark suite(s) to run", len(suites))

	summary := &Summary{}
	for _, s := range suites {
		ui.Status(r.Stderr, "Running", s.Name)
		start := time.Now()
		n, err := r.runSuite(ctx, s, opts)
		r.Metrics.ObserveSuite(opts.Mode.String(), time.Since(start), err)
		if err != nil {
			return nil, err
		}
		summary.Suites++
		summary.Benchmarks += n
		if opts.Details {
			ui.Statusf(r.Stderr, "Done", "running %s (%d benchmarks)", s.Name, n)
		} else {
			ui.Statusf(r.Stderr, "Done", "running %s", s.Name)
		}
	}

	finished := fmt.Sprintf("running %d benchmark suite(s)", summary.Suites)
	if opts.Details {
		finished += fmt.Sprintf(" (%d benchmarks total)", summary.Benchmarks)
	}
	ui.Status(r.Stderr, "Finished", finished)

	if walltime {
		if err := r.report(opts, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// runSuite spawns one benchmark and returns how many benchmarks it reported
// when details are on.
func (r *Runner) runSuite(ctx context.Context, s Suite, opts Options) (int, error) {
	var args []string
	if opts.Mode == mode.Walltime {
		args = append(args, "--bench")
	}
	cmd := exec.CommandContext(ctx, s.Path, args...)
	cmd.Dir = s.Package.Root()
	cmd.Env = append(r.Environ(),
		config.EnvWorkspaceRoot+"="+r.Meta.WorkspaceRoot,
		config.EnvRunnerMode+"="+opts.Mode.String(),
	)
	if opts.Details {
		cmd.Env = append(cmd.Env, config.EnvShowDetails+"="+strconv.FormatBool(true))
	}
	cmd.Stderr = r.Stderr

	counter := &statusCounter{}
	if opts.Details {
		cmd.Stdout = io.MultiWriter(r.Stdout, counter)
	} else {
		cmd.Stdout = r.Stdout
	}

	telemetry.LogDebug("Running benchmark", "name", s.Name, "path", s.Path, "dir", cmd.Dir)
	err := cmd.Run()
	counter.flush()
	if err != nil {
		return 0, executionError(s.Name, err)
	}
	return counter.count, nil
}

func executionError(name string, err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &cserrors.ExecutionError{Bench: name, ExitCode: 1, Err: err}
	}
	if sig, ok := signalOf(exitErr); ok {
		return &cserrors.ExecutionError{Bench: name, ExitCode: 128 + sig, Signal: sig}
	}
	code := exitErr.ExitCode()
	if code <= 0 {
		code = 1
	}
	return &cserrors.ExecutionError{Bench: name, ExitCode: code}
}

// report aggregates the raw walltime samples into the final results file.
func (r *Runner) report(opts Options, summary *Summary) error {
	benches, err := stats.Aggregate(stats.RawResultsDir(r.Meta.WorkspaceRoot))
	if err != nil {
		return err
	}
	report := stats.NewReport(version.Name, version.Version, benches)

	path, err := report.Write(stats.ProfileFolder(r.Meta.WorkspaceRoot, opts.ProfileFolder))
	if err != nil {
		return err
	}
	r.Metrics.ObserveReport(len(report.Benchmarks), report.InvalidCount())

	if len(benches) > 0 {
		if err := stats.WriteSummary(r.Stdout, benches); err != nil {
			return err
		}
	}
	ui.Statusf(r.Stderr, "Wrote", "%d walltime result(s) to %s", len(benches), path)

	summary.Report = report
	summary.ReportPath = path
	return nil
}
