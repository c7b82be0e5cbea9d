package codspeed

import (
	"fmt"
	"time"

	"codspeed/internal/stats"
)

const maxCalibrationIters = 1 << 24

// WalltimeConfig bounds walltime sampling.
type WalltimeConfig struct {
	// MinRoundTime is the shortest acceptable round; iterations per round
	// are doubled until a round lasts at least this long.
	MinRoundTime time.Duration
	MaxTime      time.Duration
	MaxRounds    int
}

// DefaultWalltimeConfig is used for zero fields of WalltimeConfig.
var DefaultWalltimeConfig = WalltimeConfig{
	MinRoundTime: time.Millisecond,
	MaxTime:      3 * time.Second,
	MaxRounds:    100,
}

func (c WalltimeConfig) withDefaults() WalltimeConfig {
	if c.MinRoundTime <= 0 {
		c.MinRoundTime = DefaultWalltimeConfig.MinRoundTime
	}
	if c.MaxTime <= 0 {
		c.MaxTime = DefaultWalltimeConfig.MaxTime
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultWalltimeConfig.MaxRounds
	}
	return c
}

// calibrate returns how many iterations fill a round of at least minRound.
func calibrate(body func(), minRound time.Duration) uint64 {
	iters := uint64(1)
	for iters < maxCalibrationIters {
		start := time.Now()
		for i := uint64(0); i < iters; i++ {
			body()
		}
		if time.Since(start) >= minRound {
			break
		}
		iters *= 2
	}
	return iters
}

func (e *Engine) benchWalltime(uri string, body func()) error {
	e.state = WarmingUp
	warmupStart := time.Now()
	for i := 0; i < WarmupRuns; i++ {
		body()
	}
	iters := calibrate(body, e.walltime.MinRoundTime)
	warmup := time.Since(warmupStart)
	e.state = Idle

	return e.sampleWalltime(uri, warmup, func() (uint64, uint64) {
		start := time.Now()
		for i := uint64(0); i < iters; i++ {
			body()
		}
		return iters, uint64(time.Since(start))
	})
}

// benchWalltimeWithSetup times one execution per round. prepare runs the
// setup and returns the routine to time.
func (e *Engine) benchWalltimeWithSetup(uri string, prepare func() func()) error {
	e.state = WarmingUp
	warmupStart := time.Now()
	for i := 0; i < WarmupRuns; i++ {
		prepare()()
	}
	warmup := time.Since(warmupStart)
	e.state = Idle

	return e.sampleWalltime(uri, warmup, func() (uint64, uint64) {
		run := prepare()
		start := time.Now()
		run()
		return 1, uint64(time.Since(start))
	})
}

func (e *Engine) sampleWalltime(uri string, warmup time.Duration, round func() (iters, ns uint64)) error {
	if err := e.StartBenchmark(uri); err != nil {
		return err
	}

	warmupTime := uint64(warmup)
	minRoundTime := uint64(e.walltime.MinRoundTime)
	maxTime := uint64(e.walltime.MaxTime)
	maxRounds := uint64(e.walltime.MaxRounds)
	sample := stats.RawWalltimeSample{
		Name:           benchName(uri),
		URI:            uri,
		MaxTimeNs:      &maxTime,
		WarmupTimeNs:   &warmupTime,
		MinRoundTimeNs: &minRoundTime,
		MaxRounds:      &maxRounds,
	}
	start := time.Now()
	for {
		iters, ns := round()
		sample.ItersPerRound = append(sample.ItersPerRound, iters)
		sample.TimesPerRoundNs = append(sample.TimesPerRoundNs, ns)
		if len(sample.TimesPerRoundNs) >= e.walltime.MaxRounds || time.Since(start) >= e.walltime.MaxTime {
			break
		}
	}

	if err := e.EndBenchmark(); err != nil {
		return err
	}
	return e.saveSample(sample)
}

// saveSample hands the raw rounds to the runner. Outside the runner the
// sample is dropped.
func (e *Engine) saveSample(sample stats.RawWalltimeSample) error {
	if !e.rt.CIPresent {
		return nil
	}
	if e.rt.WorkspaceRoot == "" {
		return fmt.Errorf("cannot save walltime results of %s: workspace root is not set", sample.URI)
	}
	path, err := stats.WriteRawSample(e.rt.WorkspaceRoot, e.scope, sample)
	if err != nil {
		return err
	}
	e.samples = append(e.samples, path)
	return nil
}
