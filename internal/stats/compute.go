package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	iqrOutlierFactor   = 1.5
	stdevOutlierFactor = 3.0
)

// BenchmarkStats summarises one benchmark's per-iteration round times.
type BenchmarkStats struct {
	MinNs    float64 `json:"min_ns"`
	MaxNs    float64 `json:"max_ns"`
	MeanNs   float64 `json:"mean_ns"`
	StdevNs  float64 `json:"stdev_ns"`
	Q1Ns     float64 `json:"q1_ns"`
	MedianNs float64 `json:"median_ns"`
	Q3Ns     float64 `json:"q3_ns"`

	Rounds             uint64  `json:"rounds"`
	TotalTime          float64 `json:"total_time"`
	IQROutlierRounds   uint64  `json:"iqr_outlier_rounds"`
	StdevOutlierRounds uint64  `json:"stdev_outlier_rounds"`
	IterPerRound       uint64  `json:"iter_per_round"`
	// WarmupIters is always 0: warmup is not detected.
	WarmupIters uint64 `json:"warmup_iters"`
}

var (
	ErrEmptySample        = errors.New("sample has no rounds")
	ErrMismatchedRounds   = errors.New("iters_per_round and times_per_round_ns differ in length")
	ErrZeroIterationRound = errors.New("sample contains a round with zero iterations")
)

// Compute derives BenchmarkStats from a raw sample.
//
// The iterations-per-round figure is the unweighted mean of the round sizes,
// which is only exact when every round ran the same number of iterations.
func Compute(s RawWalltimeSample) (BenchmarkStats, error) {
	if len(s.TimesPerRoundNs) == 0 {
		return BenchmarkStats{}, ErrEmptySample
	}
	if len(s.ItersPerRound) != len(s.TimesPerRoundNs) {
		return BenchmarkStats{}, fmt.Errorf("%w: %d vs %d", ErrMismatchedRounds, len(s.ItersPerRound), len(s.TimesPerRoundNs))
	}

	perIter, err := perIterationTimes(s)
	if err != nil {
		return BenchmarkStats{}, err
	}
	var totalNs float64
	var totalIters uint64
	for i, t := range s.TimesPerRoundNs {
		totalNs += float64(t)
		totalIters += s.ItersPerRound[i]
	}

	sorted := slices.Clone(perIter)
	slices.Sort(sorted)

	mean := Mean(perIter)
	stdev := StdDev(perIter)
	q1 := quantileSorted(sorted, 0.25)
	median := quantileSorted(sorted, 0.5)
	q3 := quantileSorted(sorted, 0.75)

	iqr := q3 - q1
	var iqrOutliers, stdevOutliers uint64
	for _, v := range perIter {
		if v < q1-iqrOutlierFactor*iqr || v > q3+iqrOutlierFactor*iqr {
			iqrOutliers++
		}
		if v < mean-stdevOutlierFactor*stdev || v > mean+stdevOutlierFactor*stdev {
			stdevOutliers++
		}
	}

	return BenchmarkStats{
		MinNs:              sorted[0],
		MaxNs:              sorted[len(sorted)-1],
		MeanNs:             mean,
		StdevNs:            stdev,
		Q1Ns:               q1,
		MedianNs:           median,
		Q3Ns:               q3,
		Rounds:             uint64(len(perIter)),
		TotalTime:          totalNs / 1e9,
		IQROutlierRounds:   iqrOutliers,
		StdevOutlierRounds: stdevOutliers,
		IterPerRound:       totalIters / uint64(len(perIter)),
		WarmupIters:        0,
	}, nil
}

func perIterationTimes(s RawWalltimeSample) ([]float64, error) {
	perIter := make([]float64, len(s.TimesPerRoundNs))
	for i, t := range s.TimesPerRoundNs {
		iters := s.ItersPerRound[i]
		if iters == 0 {
			return nil, ErrZeroIterationRound
		}
		perIter[i] = float64(t) / float64(iters)
	}
	return perIter, nil
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation. It is 0 with fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// Quantile returns the tau-quantile of values using the median-unbiased
// (R-8) interpolation rule. values need not be sorted.
func Quantile(values []float64, tau float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return quantileSorted(sorted, tau)
}

func quantileSorted(sorted []float64, tau float64) float64 {
	n := float64(len(sorted))
	if tau <= 0 {
		return sorted[0]
	}
	if tau >= 1 {
		return sorted[len(sorted)-1]
	}

	h := (n+1.0/3.0)*tau + 1.0/3.0
	hf := math.Floor(h)
	switch {
	case hf <= 0:
		return sorted[0]
	case hf >= n:
		return sorted[len(sorted)-1]
	}

	lo := sorted[int(hf)-1]
	hi := sorted[int(hf)]
	return lo + (h-hf)*(hi-lo)
}
