package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError is reported before any work begins.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// BuildError carries the compiler's own exit status.
type BuildError struct {
	ExitCode int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed with exit code %d", e.ExitCode)
}

// BenchTarget identifies a benchmark target inside a package.
type BenchTarget struct {
	Target  string
	Package string
}

// HarnessMismatchError lists every target still using the default harness.
type HarnessMismatchError struct {
	Targets []BenchTarget
}

func (e *HarnessMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("CodSpeed will not work with the following benchmark targets:\n")
	for _, t := range e.Targets {
		fmt.Fprintf(&b, "  - `%s` in package `%s`\n", t.Target, t.Package)
	}
	b.WriteString("\nCodSpeed requires benchmark targets to disable the default test harness because benchmark frameworks handle harnessing themselves.\n\n")
	b.WriteString("Either disable the default harness by adding `harness = false` to the corresponding `[[bench]]` section in the Cargo.toml, ")
	b.WriteString("or specify which targets to build by using `cargo codspeed build -p package_name --bench first_target --bench second_target`.\n\n")
	b.WriteString("See `cargo codspeed build --help` for more information.")
	return b.String()
}

// DiscoveryError means nothing was found to build or run.
type DiscoveryError struct {
	Message string
}

func (e *DiscoveryError) Error() string {
	return e.Message
}

// NameNotFoundError lists every name filter that matched nothing.
type NameNotFoundError struct {
	Names []string
}

func (e *NameNotFoundError) Error() string {
	return "The following benchmarks to run were not found: " + strings.Join(e.Names, ", ")
}

// ExecutionError is a failed benchmark process. Signal is zero unless the
// process was killed by one, in which case ExitCode is 128+Signal.
type ExecutionError struct {
	Bench    string
	ExitCode int
	Signal   int
	Err      error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Signal != 0:
		return fmt.Sprintf("benchmark `%s` was terminated by signal %d", e.Bench, e.Signal)
	case e.Err != nil:
		return fmt.Sprintf("failed to execute benchmark `%s`: %v", e.Bench, e.Err)
	default:
		return fmt.Sprintf("failed to execute the benchmark process `%s`, exit code: %d", e.Bench, e.ExitCode)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AggregationError is an unreadable or malformed partial result file.
type AggregationError struct {
	Path string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("failed to aggregate walltime result %s: %v", e.Path, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the status the process should exit with.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var buildErr *BuildError
	if errors.As(err, &buildErr) && buildErr.ExitCode != 0 {
		return buildErr.ExitCode
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) && execErr.ExitCode != 0 {
		return execErr.ExitCode
	}

	return 1
}
