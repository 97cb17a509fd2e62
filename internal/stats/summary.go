// Package stats computes order statistics over interval sample series.
package stats

import (
	"math"
	"sort"
)

// MinSamples is the smallest bandwidth series that produces a result. Shorter
// series are noise and are dropped without error.
const MinSamples = 5

// Summary holds the statistics of one metric series.
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	P10    float64
	P25    float64
	P75    float64
	P90    float64
	StdDev float64
	Count  int
}

// Summarize computes the summary of values. invertTail takes percentile ranks
// from the opposite tail, which is the favorable one for jitter and loss:
// their P10 is the value below which 90% of samples fall. values is not
// modified. An empty series yields a zero Summary.
func Summarize(values []float64, invertTail bool) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Summary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean(sorted),
		Median: median(sorted),
		P10:    Percentile(sorted, 10, invertTail),
		P25:    Percentile(sorted, 25, invertTail),
		P75:    Percentile(sorted, 75, invertTail),
		P90:    Percentile(sorted, 90, invertTail),
		StdDev: stdDev(sorted),
		Count:  len(sorted),
	}
}

// Percentile returns the nearest-rank pct percentile (0..100) of sorted.
func Percentile(sorted []float64, pct float64, invertTail bool) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if invertTail {
		pct = 100 - pct
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*pct/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
