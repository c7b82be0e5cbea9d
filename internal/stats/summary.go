package stats

import (
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"

	"golang.org/x/perf/benchmath"
)

// Interval is a median with a distribution-free confidence interval.
type Interval struct {
	Center     float64
	Lo         float64
	Hi         float64
	Confidence float64
	Warnings   []error
}

// MedianInterval summarises the per-iteration times of b. It returns false
// for benchmarks loaded from disk, which no longer carry their raw rounds.
func (b Benchmark) MedianInterval(confidence float64) (Interval, bool) {
	if len(b.perIter) == 0 {
		return Interval{}, false
	}
	sample := benchmath.NewSample(slices.Clone(b.perIter), &benchmath.DefaultThresholds)
	sum := benchmath.AssumeNothing.Summary(sample, confidence)
	return Interval{
		Center:     sum.Center,
		Lo:         sum.Lo,
		Hi:         sum.Hi,
		Confidence: sum.Confidence,
		Warnings:   sum.Warnings,
	}, true
}

// FormatNs renders a nanosecond duration with a readable unit.
func FormatNs(ns float64) string {
	switch {
	case math.IsInf(ns, 0) || math.IsNaN(ns):
		return "?"
	case ns >= 1e9:
		return fmt.Sprintf("%.2f s", ns/1e9)
	case ns >= 1e6:
		return fmt.Sprintf("%.2f ms", ns/1e6)
	case ns >= 1e3:
		return fmt.Sprintf("%.2f us", ns/1e3)
	default:
		return fmt.Sprintf("%.2f ns", ns)
	}
}

// WriteSummary prints one row per benchmark: median, 95% interval, spread
// and round count.
func WriteSummary(out io.Writer, benchmarks []Benchmark) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BENCHMARK\tMEDIAN\t95% CI\tSTDEV\tROUNDS\tOUTLIERS")
	for _, b := range benchmarks {
		ci := "-"
		if iv, ok := b.MedianInterval(0.95); ok && !math.IsInf(iv.Lo, 0) && !math.IsInf(iv.Hi, 0) {
			ci = fmt.Sprintf("[%s, %s]", FormatNs(iv.Lo), FormatNs(iv.Hi))
		}
		name := b.Name
		if b.IsInvalid() {
			name += " (invalid)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			name,
			FormatNs(b.Stats.MedianNs),
			ci,
			FormatNs(b.Stats.StdevNs),
			b.Stats.Rounds,
			b.Stats.IQROutlierRounds,
		)
	}
	return w.Flush()
}
