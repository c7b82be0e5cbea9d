package codspeed

import (
	"fmt"
	"io"
	"os"

	"codspeed/internal/telemetry"
	"codspeed/internal/ui"
	"codspeed/internal/version"
)

// Benchmark is one registered benchmark function.
type Benchmark func(e *Engine) error

const noticeText = "codspeed is enabled, but no performance measurement will be made since it's running in an unknown environment."

// Run executes benches on e in order and stops at the first failure.
func Run(e *Engine, stderr io.Writer, benches ...Benchmark) error {
	fmt.Fprintf(stderr, "Harness: %s v%s\n", version.Name, version.Version)
	if !e.backend.IsActive() {
		ui.Notice(stderr, noticeText)
	}
	for _, bench := range benches {
		if err := bench(e); err != nil {
			return err
		}
	}
	return nil
}

// Main is the entry point of a benchmark program. It exits non-zero when the
// engine cannot start or a benchmark fails.
func Main(benches ...Benchmark) {
	e, err := NewFromEnv()
	if err != nil {
		telemetry.LogError("Failed to start the measurement engine", err)
		os.Exit(1)
	}
	err = Run(e, os.Stderr, benches...)
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		ui.Error(os.Stderr, err.Error())
		os.Exit(1)
	}
}
