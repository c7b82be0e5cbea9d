//go:build !unix

package run

import "os/exec"

func signalOf(*exec.ExitError) (int, bool) { return 0, false }
