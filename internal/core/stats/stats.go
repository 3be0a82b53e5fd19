// Package stats summarizes batch results.
package stats

import (
	"sort"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/session"
)

// DefaultBins is the histogram bin count used when none is given.
const DefaultBins = 30

// Summary describes one numeric series.
type Summary struct {
	Count int
	Mean  float64
	// Median is the upper middle element for even-length series.
	Median int64
	Min    int64
	Max    int64
}

// Summarize computes count, mean, median, min and max. An empty series
// yields the zero Summary.
func Summarize(values []int64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, v := range sorted {
		sum += float64(v)
	}
	return Summary{
		Count:  len(sorted),
		Mean:   sum / float64(len(sorted)),
		Median: sorted[len(sorted)/2],
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes Upper.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram splits values into equal-width bins over [min, max]. A series
// with a single distinct value produces one bin.
func Histogram(values []int64, bins int) []Bin {
	if len(values) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return []Bin{{Lower: float64(lo), Upper: float64(hi), Count: len(values)}}
	}

	width := float64(hi-lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = float64(lo) + float64(i)*width
		out[i].Upper = float64(lo) + float64(i+1)*width
	}
	out[bins-1].Upper = float64(hi)

	for _, v := range values {
		i := int(float64(v-lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// BatchReport aggregates the sessions of one batch.
type BatchReport struct {
	Sessions    int
	MajorTotal  int
	MinorTotal  int
	InvestedYen Summary
	FinalCoins  Summary
	DiffCoins   Summary
	ProfitYen   Summary
}

// Report summarizes the sessions present in result.
func Report(result batch.Result) BatchReport {
	return ReportSessions(result.Sessions)
}

// ReportSessions summarizes an arbitrary slice of session results.
func ReportSessions(sessions []session.Result) BatchReport {
	n := len(sessions)
	invested := make([]int64, 0, n)
	final := make([]int64, 0, n)
	diff := make([]int64, 0, n)
	profit := make([]int64, 0, n)

	report := BatchReport{Sessions: n}
	for _, s := range sessions {
		report.MajorTotal += s.MajorCount
		report.MinorTotal += s.MinorCount
		invested = append(invested, s.InvestedYen)
		final = append(final, s.FinalCoins)
		diff = append(diff, s.DiffCoins)
		profit = append(profit, s.ProfitYen)
	}
	report.InvestedYen = Summarize(invested)
	report.FinalCoins = Summarize(final)
	report.DiffCoins = Summarize(diff)
	report.ProfitYen = Summarize(profit)
	return report
}
