package chart

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

func TestDetectExtrema(t *testing.T) {
	var points []Point
	for i := 0; i < 198; i++ {
		d := timeutil.NewDay(2023, 1, 1+i)
		points = append(points, pt(d.String(), UnitColumn, float64(10+i%5)))
	}
	points = append(points,
		pt("2023-07-20T00:00:00", UnitColumn, 500.0),
		pt("2023-07-21", UnitColumn, -50.0),
		pt("2023-07-22"),
	)

	ex := DetectExtrema(points, DefaultExtremaColumn, DefaultPeakPercentile, DefaultDipPercentile)
	require.Len(t, ex.Peaks, 1, fmt.Sprintf("peaks: %v", ex.Peaks))
	require.Len(t, ex.Dips, 1, fmt.Sprintf("dips: %v", ex.Dips))
	assert.Equal(t, Extremum{Date: "2023-07-20", Value: 500}, ex.Peaks[0])
	assert.Equal(t, Extremum{Date: "2023-07-21", Value: -50}, ex.Dips[0])
}

func TestDetectExtremaMissingColumn(t *testing.T) {
	ex := DetectExtrema([]Point{pt("2024-01-01", "A", 1.0)}, UnitColumn, 99, 1)
	assert.True(t, ex.Empty())
}

func TestDetectExtremaFlatSeries(t *testing.T) {
	var points []Point
	for i := 1; i <= 10; i++ {
		points = append(points, pt(timeutil.NewDay(2024, 1, i).String(), "A", 7.0))
	}
	assert.True(t, DetectExtrema(points, "A", 99, 1).Empty(), "strict comparison never marks a flat series")
}

func TestDetectExtremaOneYearOfWeeks(t *testing.T) {
	var points []Point
	for i := 0; i < 52; i++ {
		points = append(points, pt(timeutil.NewDay(2024, 1, 1+7*i).String(), UnitColumn, float64(100+i)))
	}

	ex := DetectExtrema(points, DefaultExtremaColumn, DefaultPeakPercentile, DefaultDipPercentile)
	require.Len(t, ex.Peaks, 1)
	require.Len(t, ex.Dips, 1)
	assert.Equal(t, 151.0, ex.Peaks[0].Value)
	assert.Equal(t, 100.0, ex.Dips[0].Value)
	assert.Equal(t, "2024-01-01", ex.Dips[0].Date)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 10, 12, 50}
	assert.InDelta(t, 38.6, percentile(sorted, 90), 1e-9)
	assert.InDelta(t, 9.1, percentile(sorted, 30), 1e-9)
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 50.0, percentile(sorted, 100))
	assert.Equal(t, 7.0, percentile([]float64{7}, 1))
}
