package chart

import (
	"math"
	"sort"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// Defaults used when a payload carries no precomputed peaks and dips.
const (
	DefaultExtremaColumn  = UnitColumn
	DefaultPeakPercentile = 99.0
	DefaultDipPercentile  = 1.0
)

// DetectExtrema marks the points of column whose value is strictly above the
// peakPct percentile (peaks) or strictly below the dipPct percentile (dips).
// Percentiles are in [0, 100]. Points lacking the column are ignored; a
// dataset without the column yields no markers.
func DetectExtrema(points []Point, column string, peakPct, dipPct float64) Extrema {
	var vals []float64
	for _, p := range points {
		if v, ok := p.Value(column); ok && !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Extrema{}
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	peakAt := percentile(sorted, peakPct)
	dipAt := percentile(sorted, dipPct)

	var ex Extrema
	for _, p := range points {
		v, ok := p.Value(column)
		if !ok || math.IsNaN(v) {
			continue
		}
		date := p.Date
		if d, ok := timeutil.ParseDay(p.Date); ok {
			date = d.String()
		}
		switch {
		case v > peakAt:
			ex.Peaks = append(ex.Peaks, Extremum{Date: date, Value: v})
		case v < dipAt:
			ex.Dips = append(ex.Dips, Extremum{Date: date, Value: v})
		}
	}
	return ex
}

// percentile interpolates linearly between the closest ranks of sorted at
// rank (n-1)*pct/100, so the 1st percentile of 52 values lies strictly above
// the minimum.
func percentile(sorted []float64, pct float64) float64 {
	h := float64(len(sorted)-1) * clampPct(pct) / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func clampPct(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
