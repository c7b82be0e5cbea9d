// Package benchmark compares walltime reports of two runs.
package benchmark

import (
	"fmt"
	"io"
	"text/tabwriter"

	"codspeed/internal/stats"
)

// Comparison is the change of one benchmark between two reports.
type Comparison struct {
	URI  string
	Name string
	// MedianDiff is the percentage change of the median time.
	MedianDiff float64
	// MeanDiff is the percentage change of the mean time.
	MeanDiff float64
	Prev     stats.BenchmarkStats
	Curr     stats.BenchmarkStats
}

// Compare matches benchmarks present in both reports by URI, in the order of
// curr.
func Compare(prev, curr *stats.Report) []Comparison {
	prevMap := make(map[string]stats.Benchmark, len(prev.Benchmarks))
	for _, b := range prev.Benchmarks {
		prevMap[b.URI] = b
	}

	var comparisons []Comparison
	for _, c := range curr.Benchmarks {
		p, ok := prevMap[c.URI]
		if !ok {
			continue
		}
		comparisons = append(comparisons, Comparison{
			URI:        c.URI,
			Name:       c.Name,
			MedianDiff: percentChange(p.Stats.MedianNs, c.Stats.MedianNs),
			MeanDiff:   percentChange(p.Stats.MeanNs, c.Stats.MeanNs),
			Prev:       p.Stats,
			Curr:       c.Stats,
		})
	}
	return comparisons
}

func percentChange(prev, curr float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}

// Regressions returns the comparisons whose median slowed down by more than
// threshold percent.
func Regressions(comparisons []Comparison, threshold float64) []Comparison {
	var out []Comparison
	for _, c := range comparisons {
		if c.MedianDiff > threshold {
			out = append(out, c)
		}
	}
	return out
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: %+.2f%% median", c.Name, c.MedianDiff)
}

// WriteTable prints one row per comparison.
func WriteTable(w io.Writer, comparisons []Comparison) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tBASE\tHEAD\tCHANGE")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%+.2f%%\n",
			c.Name, stats.FormatNs(c.Prev.MedianNs), stats.FormatNs(c.Curr.MedianNs), c.MedianDiff)
	}
	return tw.Flush()
}
