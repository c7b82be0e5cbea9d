//go:build unix

package run

import (
	"os/exec"
	"syscall"

	"codspeed/internal/telemetry"

	"golang.org/x/sys/unix"
)

// signalOf returns the signal that killed the process, if any.
func signalOf(exitErr *exec.ExitError) (int, bool) {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	sig := ws.Signal()
	telemetry.LogDebug("Benchmark terminated by signal", "signal", unix.SignalName(sig))
	return int(sig), true
}
