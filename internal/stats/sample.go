package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// RawWalltimeSample is the per-process dump of one walltime benchmark.
type RawWalltimeSample struct {
	Name            string   `json:"name"`
	URI             string   `json:"uri"`
	ItersPerRound   []uint64 `json:"iters_per_round"`
	TimesPerRoundNs []uint64 `json:"times_per_round_ns"`
	MaxTimeNs       *uint64  `json:"max_time_ns"`

	// Sampling limits echoed into the report. Older writers omit them.
	WarmupTimeNs   *uint64 `json:"warmup_time_ns,omitempty"`
	MinRoundTimeNs *uint64 `json:"min_round_time_ns,omitempty"`
	MaxRounds      *uint64 `json:"max_rounds,omitempty"`
}

// RawResultsDir is where benchmark processes drop their raw samples.
func RawResultsDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, "target", "codspeed", "walltime", "raw_results")
}

// WriteRawSample stores s under <raw_results>/<scope>/<uuid>.json and returns
// the file path. File names never collide so concurrent writers need no lock.
func WriteRawSample(workspaceRoot, scope string, s RawWalltimeSample) (string, error) {
	dir := filepath.Join(RawResultsDir(workspaceRoot), scope)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create raw results directory %s: %w", dir, err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal raw sample for %s: %w", s.URI, err)
	}

	path := filepath.Join(dir, uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write raw sample %s: %w", path, err)
	}
	return path, nil
}

// ClearRawResults empties the raw results directory, creating it if needed.
func ClearRawResults(workspaceRoot string) error {
	dir := RawResultsDir(workspaceRoot)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear raw results directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create raw results directory: %w", err)
	}
	return nil
}
