package mode

import (
	"fmt"
	"strings"
)

// MeasurementMode selects how benchmarks are measured.
type MeasurementMode int

const (
	Simulation MeasurementMode = iota
	Walltime
	Memory
)

var measurementNames = map[MeasurementMode]string{
	Simulation: "simulation",
	Walltime:   "walltime",
	Memory:     "memory",
}

func (m MeasurementMode) String() string {
	if name, ok := measurementNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MeasurementMode(%d)", int(m))
}

// Parse converts a user supplied mode name. "instrumentation" is accepted as
// an alias of "simulation".
func Parse(s string) (MeasurementMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulation", "instrumentation":
		return Simulation, nil
	case "walltime":
		return Walltime, nil
	case "memory":
		return Memory, nil
	}
	return 0, fmt.Errorf("invalid measurement mode %q (expected one of: simulation, instrumentation, walltime, memory)", s)
}

// ParseList parses repeated and comma separated mode values, keeping order.
func ParseList(values []string) ([]MeasurementMode, error) {
	var modes []MeasurementMode
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			m, err := Parse(part)
			if err != nil {
				return nil, err
			}
			modes = append(modes, m)
		}
	}
	return modes, nil
}

// Default is Simulation under a CI runner, Walltime everywhere else.
func Default(ciPresent bool) MeasurementMode {
	if ciPresent {
		return Simulation
	}
	return Walltime
}

// BuildMode is the compiler build variant a measurement mode needs.
type BuildMode int

const (
	Analysis BuildMode = iota
	WalltimeBuild
)

// ForMeasurement maps a measurement mode to its build variant.
func ForMeasurement(m MeasurementMode) BuildMode {
	if m == Walltime {
		return WalltimeBuild
	}
	return Analysis
}

// Dir is the directory segment used under <target>/codspeed/.
func (b BuildMode) Dir() string {
	if b == WalltimeBuild {
		return "walltime"
	}
	return "analysis"
}

func (b BuildMode) String() string { return b.Dir() }

// UniqueBuildModes returns the distinct build variants of modes in first-seen
// order, together with the first measurement mode that requested each one.
// An empty list falls back to the default mode.
func UniqueBuildModes(modes []MeasurementMode, ciPresent bool) []MeasurementMode {
	if len(modes) == 0 {
		return []MeasurementMode{Default(ciPresent)}
	}
	seen := make(map[BuildMode]bool)
	var out []MeasurementMode
	for _, m := range modes {
		b := ForMeasurement(m)
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, m)
	}
	return out
}

// Join renders modes as "a, b".
func Join(modes []MeasurementMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}
