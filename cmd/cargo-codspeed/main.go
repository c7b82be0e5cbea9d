package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	// Recover from any panics in the application
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Application Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	Execute()
}

// normalizeArgs drops the subcommand name cargo passes when invoked as
// `cargo codspeed ...`.
func normalizeArgs(args []string) []string {
	if len(args) > 0 && args[0] == "codspeed" {
		return args[1:]
	}
	return args
}
