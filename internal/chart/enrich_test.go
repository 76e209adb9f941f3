package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich(t *testing.T) {
	points := []Point{
		pt("2024-01-01", "year_flag", 1.0, "O_UNIT", 1.0),
		pt("2024-01-08", "year_flag", 1.0, "O_UNIT", 50.0),
		pt("2024-01-15", "year_flag", 2.0, "O_UNIT", 10.0),
		pt("2024-01-22", "year_flag", 2.0, "O_UNIT", 12.0),
	}
	opts := EnrichOptions{
		ExtremaColumn:  UnitColumn,
		PeakPercentile: 90,
		DipPercentile:  30,
		PeriodFlags:    []PeriodFlag{{Flag: 1, Label: "PY"}, {Flag: 2, Label: "LY"}},
	}
	p := Payload{ChartData: Dataset{Columns: []string{"date", "year_flag", "O_UNIT"}, Points: points}}

	got := Enrich(p, opts)
	require.Len(t, got.Anomalies.Peaks, 1)
	assert.Equal(t, "2024-01-08", got.Anomalies.Peaks[0].Date)
	require.Len(t, got.Anomalies.Dips, 1)
	assert.Equal(t, "2024-01-01", got.Anomalies.Dips[0].Date)

	require.Len(t, got.ChartData.Periods, 2)
	assert.Equal(t, "PY", got.ChartData.Periods[0].Label)
	assert.Equal(t, map[string]float64{"O_UNIT": 51}, got.ChartData.Periods[0].Values, "meta columns are not totalled")
}

func TestEnrichKeepsPrecomputed(t *testing.T) {
	pre := Extrema{Peaks: []Extremum{{Date: "2024-01-01", Value: 1}}}
	periods := []PeriodAggregate{{Label: "Given"}}
	p := Payload{
		ChartData: Dataset{Columns: []string{"O_UNIT"}, Points: []Point{pt("2024-01-01", "O_UNIT", 1.0)}, Periods: periods},
		Anomalies: pre,
	}
	got := Enrich(p, EnrichOptions{ExtremaColumn: UnitColumn, PeriodFlags: []PeriodFlag{{Flag: 1, Label: "X"}}})
	assert.Equal(t, pre, got.Anomalies)
	assert.Equal(t, periods, got.ChartData.Periods)

	none := Enrich(Payload{}, EnrichOptions{})
	assert.True(t, none.Anomalies.Empty())
	assert.Empty(t, none.ChartData.Periods)
}
