package benchmark

import (
	"bytes"
	"testing"

	"codspeed/internal/stats"

	"github.com/stretchr/testify/assert"
)

func bench(uri string, median, mean float64) stats.Benchmark {
	return stats.Benchmark{
		Name:  uri,
		URI:   uri,
		Stats: stats.BenchmarkStats{MedianNs: median, MeanNs: mean},
	}
}

func TestCompare(t *testing.T) {
	prev := stats.NewReport("codspeed-go", "0.1.0", []stats.Benchmark{
		bench("b1", 100, 100),
		bench("b2", 200, 200),
	})
	curr := stats.NewReport("codspeed-go", "0.1.0", []stats.Benchmark{
		bench("b1", 110, 80),
		bench("b3", 300, 300),
	})

	comps := Compare(prev, curr)

	assert.Len(t, comps, 1)
	c := comps[0]
	assert.Equal(t, "b1", c.URI)
	assert.InDelta(t, 10.0, c.MedianDiff, 0.01)
	assert.InDelta(t, -20.0, c.MeanDiff, 0.01)
	assert.Equal(t, "b1: +10.00% median", c.String())
}

func TestCompareZeroBaseline(t *testing.T) {
	prev := stats.NewReport("codspeed-go", "0.1.0", []stats.Benchmark{bench("b", 0, 0)})
	curr := stats.NewReport("codspeed-go", "0.1.0", []stats.Benchmark{bench("b", 10, 10)})

	comps := Compare(prev, curr)
	assert.Len(t, comps, 1)
	assert.Equal(t, 0.0, comps[0].MedianDiff)
}

func TestRegressions(t *testing.T) {
	comps := []Comparison{
		{Name: "faster", MedianDiff: -30},
		{Name: "noise", MedianDiff: 4},
		{Name: "slower", MedianDiff: 25},
	}

	got := Regressions(comps, 10)
	assert.Len(t, got, 1)
	assert.Equal(t, "slower", got[0].Name)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []Comparison{{
		Name:       "fib",
		MedianDiff: 50,
		Prev:       stats.BenchmarkStats{MedianNs: 100},
		Curr:       stats.BenchmarkStats{MedianNs: 150},
	}})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "BENCHMARK")
	assert.Contains(t, buf.String(), "+50.00%")
}
