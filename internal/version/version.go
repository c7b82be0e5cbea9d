// Package version holds the identity reported by the CLI and the harness.
package version

const (
	Name    = "codspeed-go"
	Version = "0.1.0"
)
