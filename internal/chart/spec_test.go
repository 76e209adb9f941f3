package chart

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDataset() Dataset {
	return Dataset{
		Columns: scenarioColumns,
		Points: []Point{
			pt("2024-01-15", "M_SP_AB_SPEND", 120.0),
			pt("2024-01-01", "M_SP_AB_SPEND", 100.0, "M_SP_AB_CLK", 10.0),
			pt("2024-01-08", "M_SP_AB_SPEND", 500.0, "M_SP_AB_CLK", 12.0),
		},
	}
}

func TestComposeAlignsOverlaysWithLines(t *testing.T) {
	ds := scenarioDataset()
	choice := SelectSeries(ds.Columns, "M_SP_AB", nil)
	sel := Selection{
		Columns:        choice.Columns,
		TacticFilter:   "M_SP_AB",
		SeverityFilter: AllFilter,
		ChartType:      ChartDualAxis,
		ShowAnomalies:  true,
	}
	anomalies := []Anomaly{{Date: "2024-01-08", TacticPrefix: "M_SP_AB", Reason: "High Spend spike", Severity: "High"}}
	extrema := Extrema{Peaks: []Extremum{{Date: "2024-01-08", Value: 500}}}

	spec := Compose(ds, anomalies, extrema, sel, PlaybackState{}, ComposeOptions{})

	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15"}, spec.Labels)
	var labels []string
	for _, s := range spec.Series {
		labels = append(labels, s.Label)
		assert.Len(t, s.Points, len(spec.Labels), "series %s", s.Label)
	}
	assert.Equal(t, []string{"M_SP_AB_SPEND", "M_SP_AB_CLK", PeaksLabel, "High Spend spike"}, labels)
	assert.Equal(t, []string{"M_SP_AB_SPEND", "M_SP_AB_CLK", "High Spend spike"}, spec.LegendEntries())

	primary, ok := spec.AxisByID(AxisPrimary)
	require.True(t, ok)
	assert.False(t, primary.Visible)
}

func TestComposeSeverityFilterLeavesLinesAlone(t *testing.T) {
	// Scenario D
	ds := scenarioDataset()
	anomalies := []Anomaly{
		{Date: "2024-01-08", TacticPrefix: "M_SP_AB", Reason: "High Spend spike", Severity: "High"},
		{Date: "2024-01-01", TacticPrefix: "OTHER", Reason: "Spike", Severity: "Critical"},
	}
	sel := Selection{
		Columns:        []string{"M_SP_AB_SPEND", "M_SP_AB_CLK"},
		TacticFilter:   "M_SP_AB",
		SeverityFilter: AllFilter,
		ChartType:      ChartDualAxis,
		ShowAnomalies:  true,
	}
	unfiltered := Compose(ds, anomalies, Extrema{}, sel, PlaybackState{}, ComposeOptions{})

	sel.SeverityFilter = "Critical"
	filtered := Compose(ds, anomalies, Extrema{}, sel, PlaybackState{}, ComposeOptions{})

	require.Len(t, filtered.Series, 2)
	for _, s := range filtered.Series {
		assert.Equal(t, SeriesLine, s.Kind)
	}
	if diff := cmp.Diff(unfiltered.Series[:2], filtered.Series); diff != "" {
		t.Errorf("line series changed under severity filter (-unfiltered +filtered):\n%s", diff)
	}
	assert.Len(t, unfiltered.Series, 3)
}

func TestComposePlaybackTruncatesEverySeries(t *testing.T) {
	ds := scenarioDataset()
	sel := Selection{
		Columns:        []string{"M_SP_AB_SPEND"},
		TacticFilter:   "M_SP_AB",
		SeverityFilter: AllFilter,
		ChartType:      ChartLine,
		ShowAnomalies:  true,
	}
	anomalies := []Anomaly{{Date: "2024-01-08", TacticPrefix: "M_SP_AB", Reason: "X"}}

	spec := Compose(ds, anomalies, Extrema{}, sel, PlaybackState{Index: 2, Playing: true}, ComposeOptions{})
	assert.Equal(t, []string{"2024-01-01", "2024-01-08"}, spec.Labels)
	require.Len(t, spec.Series, 2)
	for _, s := range spec.Series {
		assert.Len(t, s.Points, 2)
	}

	spec = Compose(ds, anomalies, Extrema{}, sel, PlaybackState{Index: 1}, ComposeOptions{})
	assert.Len(t, spec.Series, 1, "overlay without a visible match is dropped")
}

func TestComposeEmptySelection(t *testing.T) {
	spec := Compose(scenarioDataset(), nil, Extrema{Peaks: []Extremum{{Date: "2024-01-08", Value: 1}}},
		Selection{ChartType: ChartDualAxis, ShowAnomalies: true}, PlaybackState{}, ComposeOptions{})
	assert.Empty(t, spec.Series)
	assert.Len(t, spec.Labels, 3)
}

func TestComposeCustomColors(t *testing.T) {
	ds := scenarioDataset()
	sel := Selection{Columns: []string{"M_SP_AB_SPEND"}, TacticFilter: "M_SP_AB", ChartType: ChartLine, ShowAnomalies: true}
	anomalies := []Anomaly{{Date: "2024-01-08", TacticPrefix: "M_SP_AB", Reason: "X"}}

	spec := Compose(ds, anomalies, Extrema{}, sel, PlaybackState{}, ComposeOptions{
		Palette:      []string{"#000000"},
		ReasonColors: map[string]string{"X": "#123456"},
	})
	require.Len(t, spec.Series, 2)
	assert.Equal(t, "#000000", spec.Series[0].Color)
	assert.Equal(t, "#123456", spec.Series[1].Color)
}

func TestComposeNullCellIsAGap(t *testing.T) {
	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(`{
  "columns": ["date", "M_SP_AB_SPEND"],
  "time_series": [
    {"date": "2024-01-01", "M_SP_AB_SPEND": 100},
    {"date": "2024-01-08", "M_SP_AB_SPEND": null},
    {"date": "2024-01-15", "M_SP_AB_SPEND": 0}
  ]
}`), &ds))
	sel := DefaultSelection()
	sel.Columns = []string{"M_SP_AB_SPEND"}

	spec := Compose(ds, nil, Extrema{}, sel, PlaybackState{}, ComposeOptions{})

	require.Len(t, spec.Series, 1)
	pts := spec.Series[0].Points
	require.Len(t, pts, 3)
	require.NotNil(t, pts[0])
	assert.Nil(t, pts[1], "null cell must stay a gap")
	require.NotNil(t, pts[2])
	assert.Equal(t, 0.0, *pts[2])
}

func TestSpecOverlayCounts(t *testing.T) {
	ds := scenarioDataset()
	sel := Selection{
		Columns:        []string{"M_SP_AB_SPEND", "M_SP_AB_CLK"},
		TacticFilter:   "M_SP_AB",
		SeverityFilter: AllFilter,
		ChartType:      ChartDualAxis,
		ShowAnomalies:  true,
	}
	anomalies := []Anomaly{{Date: "2024-01-08", TacticPrefix: "M_SP_AB", Reason: "High Spend spike", Severity: "High"}}
	extrema := Extrema{
		Peaks: []Extremum{{Date: "2024-01-08", Value: 500}},
		Dips:  []Extremum{{Date: "2024-01-01", Value: 100}},
	}

	extremaN, anomalyN := Compose(ds, anomalies, extrema, sel, PlaybackState{}, ComposeOptions{}).OverlayCounts()
	assert.Equal(t, 2, extremaN)
	assert.Equal(t, 1, anomalyN)

	sel.ShowAnomalies = false
	extremaN, anomalyN = Compose(ds, anomalies, extrema, sel, PlaybackState{}, ComposeOptions{}).OverlayCounts()
	assert.Equal(t, 2, extremaN, "peaks and dips ignore the anomaly toggle")
	assert.Zero(t, anomalyN)
}
