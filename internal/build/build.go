// Package build compiles benchmark targets once per build mode and stages
// the resulting executables under <target>/codspeed/<mode>/<package>/.
package build

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
	cserrors "codspeed/internal/errors"
	"codspeed/internal/metrics"
	"codspeed/internal/mode"
	"codspeed/internal/telemetry"
	"codspeed/internal/ui"
	"codspeed/internal/utils"
)

// Options mirrors the build command line.
type Options struct {
	Modes   []mode.MeasurementMode
	Filters cargo.PackageFilters
	// Benches restricts the build to these bench targets. Empty means --benches.
	Benches           []string
	Features          []string
	AllFeatures       bool
	NoDefaultFeatures bool
	Locked            bool
	Offline           bool
	Frozen            bool
	Jobs              int
	Profile           string
	Quiet             bool
	// CIPresent selects the default mode when Modes is empty.
	CIPresent bool
}

// BuiltBenchmark is one bench executable produced by cargo.
type BuiltBenchmark struct {
	Package    string
	Target     string
	Executable string
}

// ArtifactSet is what one build mode staged on disk.
type ArtifactSet struct {
	Mode       mode.MeasurementMode
	Build      mode.BuildMode
	Dir        string
	Benchmarks []BuiltBenchmark
}

// Orchestrator runs cargo builds for a workspace.
type Orchestrator struct {
	Meta    *cargo.Metadata
	Stdout  io.Writer
	Stderr  io.Writer
	Metrics *metrics.Metrics

	// LookupEnv reads the caller environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	manifests *cargo.ManifestCache
}

// New returns an orchestrator writing diagnostics to stdout and status to stderr.
func New(meta *cargo.Metadata) *Orchestrator {
	return &Orchestrator{
		Meta:      meta,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		LookupEnv: os.LookupEnv,
		manifests: cargo.NewManifestCache(),
	}
}

// Build compiles every distinct build variant needed by opts.Modes, one after
// the other. It stops at the first failing mode.
func (o *Orchestrator) Build(ctx context.Context, opts Options) ([]ArtifactSet, error) {
	if err := opts.Filters.Validate(); err != nil {
		return nil, err
	}
	packages, err := opts.Filters.Resolve(o.Meta)
	if err != nil {
		return nil, err
	}

	requested := opts.Modes
	if len(requested) == 0 {
		requested = []mode.MeasurementMode{mode.Default(opts.CIPresent)}
	}
	label := "Measurement mode"
	if len(requested) > 1 {
		label += "s"
	}
	ui.Prefixed(o.Stderr, label+": "+mode.Join(requested))

	modes := mode.UniqueBuildModes(requested, opts.CIPresent)

	var sets []ArtifactSet
	for _, m := range modes {
		set, err := o.buildMode(ctx, m, packages, opts)
		if err != nil {
			return sets, err
		}
		sets = append(sets, *set)
	}
	return sets, nil
}

func (o *Orchestrator) buildMode(ctx context.Context, m mode.MeasurementMode, packages []cargo.Package, opts Options) (*ArtifactSet, error) {
	bm := mode.ForMeasurement(m)
	start := time.Now()

	args, env := o.command(bm, opts)
	telemetry.LogDebug("Running cargo build", "mode", m.String(), "args", strings.Join(args, " "))

	cmd := cargo.Command(ctx, args...)
	if len(env) > 0 {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, env...)
	}
	cmd.Stderr = o.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to capture cargo output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start cargo build: %w", err)
	}

	selected := make(map[string]cargo.Package, len(packages))
	for _, p := range packages {
		selected[p.ID] = p
	}

	var built []BuiltBenchmark
	var mismatched []cserrors.BenchTarget
	seen := make(map[cserrors.BenchTarget]bool)

	parseErr := cargo.ParseMessages(stdout, func(msg cargo.Message) error {
		switch msg.Reason {
		case cargo.ReasonText:
			fmt.Fprintln(o.Stdout, msg.Text)
		case cargo.ReasonCompilerMessage:
			if msg.Message != nil {
				fmt.Fprint(o.Stdout, msg.Message.Rendered)
			}
		case cargo.ReasonCompilerArtifact:
			if !msg.Target.IsBench() || msg.Executable == nil {
				return nil
			}
			pkg, ok := selected[msg.PackageID]
			if !ok {
				return nil
			}
			key := cserrors.BenchTarget{Target: msg.Target.Name, Package: pkg.Name}
			if seen[key] {
				return nil
			}
			seen[key] = true

			enabled, err := o.manifests.HarnessEnabled(pkg.ManifestPath, msg.Target.Name)
			if err != nil {
				return err
			}
			if enabled {
				mismatched = append(mismatched, key)
				return nil
			}
			built = append(built, BuiltBenchmark{
				Package:    pkg.Name,
				Target:     msg.Target.Name,
				Executable: *msg.Executable,
			})
		}
		return nil
	})
	if parseErr != nil {
		// Drain so cargo is not blocked on a full pipe before we reap it.
		io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	if parseErr != nil {
		return nil, parseErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code <= 0 {
				code = 1
			}
			return nil, &cserrors.BuildError{ExitCode: code}
		}
		return nil, fmt.Errorf("cargo build failed: %w", waitErr)
	}

	if len(mismatched) > 0 {
		return nil, &cserrors.HarnessMismatchError{Targets: mismatched}
	}
	if len(built) == 0 {
		return nil, &cserrors.DiscoveryError{Message: "No benchmark target found. Please add a benchmark target to your Cargo.toml"}
	}

	set := &ArtifactSet{
		Mode:       m,
		Build:      bm,
		Dir:        o.Meta.CodspeedDir(bm.Dir()),
		Benchmarks: built,
	}
	if err := o.stage(set); err != nil {
		return nil, err
	}

	ui.Statusf(o.Stderr, "Finished", "built %d benchmark suite(s)", len(built))
	o.Metrics.ObserveBuild(bm.Dir(), time.Since(start), len(built))
	return set, nil
}

// stage clears each package directory once, then copies the executables in
// under their target names.
func (o *Orchestrator) stage(set *ArtifactSet) error {
	cleared := make(map[string]bool)
	for _, b := range set.Benchmarks {
		dir := filepath.Join(set.Dir, b.Package)
		if !cleared[dir] {
			if err := utils.ClearDir(dir); err != nil {
				return fmt.Errorf("failed to prepare %s: %w", dir, err)
			}
			cleared[dir] = true
		}

		ui.Statusf(o.Stderr, "Built", "benchmark `%s` in package `%s`", b.Target, b.Package)
		if err := utils.CopyFile(b.Executable, filepath.Join(dir, b.Target)); err != nil {
			return fmt.Errorf("failed to copy benchmark `%s`: %w", b.Target, err)
		}
	}
	return nil
}

// command assembles the cargo arguments and extra environment for bm.
func (o *Orchestrator) command(bm mode.BuildMode, opts Options) ([]string, []string) {
	args := []string{"build"}
	if len(opts.Benches) == 0 {
		args = append(args, "--benches")
	} else {
		for _, b := range opts.Benches {
			args = append(args, "--bench", b)
		}
	}

	profile := opts.Profile
	if profile == "" {
		profile = "bench"
	}
	args = append(args, "--profile", profile)

	if len(opts.Features) > 0 {
		args = append(args, "--features", strings.Join(opts.Features, ","))
	}
	if opts.AllFeatures {
		args = append(args, "--all-features")
	}
	if opts.NoDefaultFeatures {
		args = append(args, "--no-default-features")
	}
	if opts.Locked {
		args = append(args, "--locked")
	}
	if opts.Offline {
		args = append(args, "--offline")
	}
	if opts.Frozen {
		args = append(args, "--frozen")
	}
	if opts.Jobs > 0 {
		args = append(args, "--jobs="+strconv.Itoa(opts.Jobs))
	}

	args = append(args, opts.Filters.Args()...)
	args = append(args, "--message-format", "json")
	if opts.Quiet {
		args = append(args, "--quiet")
	}

	flags := RustFlags(bm)
	// A set RUSTFLAGS, even an empty one, overrides config rustflags.
	if existing, ok := o.LookupEnv("RUSTFLAGS"); ok {
		value := strings.Join(flags, " ")
		if existing != "" {
			value = existing + " " + value
		}
		return args, []string{"RUSTFLAGS=" + value}
	}

	quoted := make([]string, len(flags))
	for i, f := range flags {
		quoted[i] = strconv.Quote(f)
	}
	args = append(args, "--config", "target.'cfg(all())'.rustflags=["+strings.Join(quoted, ",")+"]")
	return args, nil
}

// RustFlags returns the compiler flags for a build variant.
func RustFlags(bm mode.BuildMode) []string {
	flags := []string{"-Cdebuginfo=2", "-Cstrip=none"}
	if bm == mode.Analysis {
		flags = append(flags, "--cfg=codspeed")
	}
	return flags
}
