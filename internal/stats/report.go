package stats

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	cserrors "codspeed/internal/errors"
	"codspeed/internal/telemetry"
)

// BenchmarkConfig echoes the sampling limits the benchmark ran with.
type BenchmarkConfig struct {
	WarmupTimeNs   *float64 `json:"warmup_time_ns"`
	MinRoundTimeNs *float64 `json:"min_round_time_ns"`
	MaxTimeNs      *float64 `json:"max_time_ns"`
	MaxRounds      *uint64  `json:"max_rounds"`
}

// Benchmark is one entry of a walltime Report.
type Benchmark struct {
	Name   string          `json:"name"`
	URI    string          `json:"uri"`
	Config BenchmarkConfig `json:"config"`
	Stats  BenchmarkStats  `json:"stats"`

	perIter []float64
}

// NewBenchmark computes the statistics of a raw sample.
func NewBenchmark(s RawWalltimeSample) (Benchmark, error) {
	st, err := Compute(s)
	if err != nil {
		return Benchmark{}, err
	}
	perIter, err := perIterationTimes(s)
	if err != nil {
		return Benchmark{}, err
	}
	b := Benchmark{
		Name:  s.Name,
		URI:   s.URI,
		Stats: st,
		Config: BenchmarkConfig{
			WarmupTimeNs:   nsPtr(s.WarmupTimeNs),
			MinRoundTimeNs: nsPtr(s.MinRoundTimeNs),
			MaxTimeNs:      nsPtr(s.MaxTimeNs),
			MaxRounds:      s.MaxRounds,
		},
		perIter: perIter,
	}
	return b, nil
}

func nsPtr(v *uint64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// IsInvalid reports a minimum time indistinguishable from zero, which usually
// means the body was optimized away.
func (b Benchmark) IsInvalid() bool {
	return b.Stats.MinNs < epsilon
}

// machine epsilon for float64
var epsilon = math.Nextafter(1, 2) - 1

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
}

type Instrument struct {
	Type string `json:"type"`
}

// Report is the merged walltime result of one run.
type Report struct {
	Creator    Creator     `json:"creator"`
	Instrument Instrument  `json:"instrument"`
	Benchmarks []Benchmark `json:"benchmarks"`
}

// NewReport wraps benchmarks in a walltime report created by this process.
func NewReport(name, version string, benchmarks []Benchmark) *Report {
	if benchmarks == nil {
		benchmarks = []Benchmark{}
	}
	return &Report{
		Creator:    Creator{Name: name, Version: version, Pid: os.Getpid()},
		Instrument: Instrument{Type: "walltime"},
		Benchmarks: benchmarks,
	}
}

// Aggregate reads every *.json raw sample below root and returns the computed
// benchmarks sorted by URI then name, so the result does not depend on the
// order files were written or walked. A missing root yields no benchmarks.
func Aggregate(root string) ([]Benchmark, error) {
	var benchmarks []Benchmark

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return &cserrors.AggregationError{Path: path, Err: err}
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return &cserrors.AggregationError{Path: path, Err: err}
		}
		var sample RawWalltimeSample
		if err := json.Unmarshal(data, &sample); err != nil {
			return &cserrors.AggregationError{Path: path, Err: err}
		}
		b, err := NewBenchmark(sample)
		if err != nil {
			return &cserrors.AggregationError{Path: path, Err: err}
		}
		benchmarks = append(benchmarks, b)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(benchmarks, func(i, j int) bool {
		if benchmarks[i].URI != benchmarks[j].URI {
			return benchmarks[i].URI < benchmarks[j].URI
		}
		return benchmarks[i].Name < benchmarks[j].Name
	})

	if len(benchmarks) == 0 {
		telemetry.LogWarn("No walltime benchmarks found", "dir", root)
	}
	for _, b := range benchmarks {
		if b.IsInvalid() {
			telemetry.LogWarn("Benchmark has a null minimum time and was possibly optimized away", "name", b.Name, "uri", b.URI)
		}
	}
	return benchmarks, nil
}

// InvalidCount counts the benchmarks flagged by IsInvalid.
func (r *Report) InvalidCount() int {
	n := 0
	for _, b := range r.Benchmarks {
		if b.IsInvalid() {
			n++
		}
	}
	return n
}

// ProfileFolder is override when set, else <workspace>/target/codspeed/profiles.
func ProfileFolder(workspaceRoot, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(workspaceRoot, "target", "codspeed", "profiles")
}

// Write stores the report as <profileFolder>/results/<pid>.json.
func (r *Report) Write(profileFolder string) (string, error) {
	dir := filepath.Join(profileFolder, "results")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, strconv.Itoa(r.Creator.Pid)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}

// LoadReport reads a report previously written by Write.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", path, err)
	}
	return &r, nil
}
