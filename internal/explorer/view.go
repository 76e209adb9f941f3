// Package explorer holds the per-view state of the stack explorer: the user's
// selection and playback position for one dataset. Every change re-runs the
// pure chart functions; nothing derived is stored.
package explorer

import (
	"fmt"
	"sync"
	"time"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/playback"
	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// Input is the data a view explores.
type Input struct {
	DatasetID string
	Dataset   chart.Dataset
	Anomalies []chart.Anomaly
	Extrema   chart.Extrema
}

// Options tune a view. Zero values use the package defaults.
type Options struct {
	Clock            timeutil.Clock
	PlaybackInterval time.Duration
	Compose          chart.ComposeOptions
	OnPlayback       func(chart.PlaybackState)
}

// Snapshot is the externally visible state of a view.
type Snapshot struct {
	ID         string              `json:"id"`
	DatasetID  string              `json:"dataset_id,omitempty"`
	Selection  chart.Selection     `json:"selection"`
	Playback   chart.PlaybackState `json:"playback"`
	Length     int                 `json:"length"`
	Columns    []string            `json:"columns"`
	Tactics    []string            `json:"tactics"`
	Severities []string            `json:"severities"`
}

// View owns the selection and playback state for one dataset.
type View struct {
	id   string
	opts chart.ComposeOptions
	ctl  *playback.Controller

	// resync orders playback length updates; it is taken before mu.
	resync sync.Mutex

	mu  sync.Mutex
	in  Input
	sel chart.Selection
}

// NewView creates a view and applies the default column selection.
func NewView(id string, in Input, opts Options) *View {
	var popts []playback.Option
	if opts.Clock != nil {
		popts = append(popts, playback.WithClock(opts.Clock))
	}
	if opts.PlaybackInterval > 0 {
		popts = append(popts, playback.WithInterval(opts.PlaybackInterval))
	}
	if opts.OnPlayback != nil {
		popts = append(popts, playback.WithOnChange(opts.OnPlayback))
	}

	v := &View{
		id:   id,
		opts: opts.Compose,
		in:   in,
		sel:  chart.DefaultSelection(),
	}
	v.mu.Lock()
	n := v.reselectLocked()
	v.mu.Unlock()
	v.ctl = playback.New(n, popts...)
	return v
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// reselectLocked replaces the selected columns with the selector's choice
// and returns the new playback length.
func (v *View) reselectLocked() int {
	choice := chart.SelectSeries(v.in.Dataset.Columns, v.sel.TacticFilter, v.in.Anomalies)
	v.sel.Columns = choice.Columns
	if choice.SetsChartType {
		v.sel.ChartType = choice.ChartType
	}
	return v.lengthLocked()
}

func (v *View) lengthLocked() int {
	return chart.VisibleLength(v.in.Dataset.Points, v.sel.DateRange)
}

// SetInput replaces the dataset and anomalies and re-runs the selector.
func (v *View) SetInput(in Input) {
	v.resync.Lock()
	defer v.resync.Unlock()
	v.mu.Lock()
	v.in = in
	n := v.reselectLocked()
	v.mu.Unlock()
	v.ctl.SetLength(n)
}

// SetTacticFilter changes the tactic filter and re-runs the selector.
func (v *View) SetTacticFilter(filter string) {
	if filter == "" {
		filter = chart.AllFilter
	}
	v.resync.Lock()
	defer v.resync.Unlock()
	v.mu.Lock()
	v.sel.TacticFilter = filter
	n := v.reselectLocked()
	v.mu.Unlock()
	v.ctl.SetLength(n)
}

// SetSeverityFilter changes the severity filter. The column selection is kept.
func (v *View) SetSeverityFilter(filter string) {
	if filter == "" {
		filter = chart.AllFilter
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.SeverityFilter = filter
}

// SetChartType changes how the selection is drawn.
func (v *View) SetChartType(t chart.ChartType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown chart type %q", t)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.ChartType = t
	return nil
}

// SetDateRange changes the visible date window and resyncs playback.
func (v *View) SetDateRange(r chart.DateRange) {
	v.resync.Lock()
	defer v.resync.Unlock()
	v.mu.Lock()
	v.sel.DateRange = r
	n := v.lengthLocked()
	v.mu.Unlock()
	v.ctl.SetLength(n)
}

// SetColumns replaces the selected columns. Unknown, metadata and duplicate
// columns are dropped.
func (v *View) SetColumns(cols []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.Columns = v.knownColumnsLocked(cols)
}

// ToggleColumn adds the column to the selection or removes it.
func (v *View) ToggleColumn(col string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, c := range v.sel.Columns {
		if c == col {
			v.sel.Columns = append(append([]string(nil), v.sel.Columns[:i]...), v.sel.Columns[i+1:]...)
			return
		}
	}
	v.sel.Columns = v.knownColumnsLocked(append(append([]string(nil), v.sel.Columns...), col))
}

func (v *View) knownColumnsLocked(cols []string) []string {
	known := make(map[string]bool)
	for _, c := range chart.MetricColumns(v.in.Dataset.Columns) {
		known[c] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if known[c] {
			out = append(out, c)
			known[c] = false
		}
	}
	return out
}

// SetShowAnomalies toggles the anomaly overlays. Peaks and dips stay.
func (v *View) SetShowAnomalies(show bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.ShowAnomalies = show
}

// Play starts playback.
func (v *View) Play() { v.ctl.Play() }

// Pause stops playback at the current index.
func (v *View) Pause() { v.ctl.Pause() }

// Scrub jumps to index and stops playback.
func (v *View) Scrub(index int) { v.ctl.Scrub(index) }

// Selection returns a copy of the current selection.
func (v *View) Selection() chart.Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copySelection(v.sel)
}

// Chart composes the chart for the current selection and playback position.
func (v *View) Chart() chart.Spec {
	v.mu.Lock()
	in := v.in
	sel := copySelection(v.sel)
	v.mu.Unlock()

	start := time.Now()
	spec := chart.Compose(in.Dataset, in.Anomalies, in.Extrema, sel, v.ctl.State(), v.opts)
	recordSpec(spec, time.Since(start))
	return spec
}

// Periods returns the period table for the selected columns.
func (v *View) Periods() []chart.PeriodRow {
	v.mu.Lock()
	defer v.mu.Unlock()
	return chart.PeriodTable(v.in.Dataset, v.sel.Columns)
}

// Snapshot returns the view's current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	snap := Snapshot{
		ID:         v.id,
		DatasetID:  v.in.DatasetID,
		Selection:  copySelection(v.sel),
		Columns:    chart.MetricColumns(v.in.Dataset.Columns),
		Tactics:    chart.AvailableTactics(v.in.Dataset.Columns),
		Severities: chart.AvailableSeverities(v.in.Anomalies),
	}
	v.mu.Unlock()
	snap.Playback = v.ctl.State()
	snap.Length = v.ctl.Length()
	return snap
}

// DatasetID returns the id of the dataset the view explores.
func (v *View) DatasetID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.in.DatasetID
}

// Close cancels any pending playback timer.
func (v *View) Close() {
	v.ctl.Close()
}

func copySelection(s chart.Selection) chart.Selection {
	s.Columns = append([]string(nil), s.Columns...)
	return s
}

func recordSpec(spec chart.Spec, d time.Duration) {
	extrema, anomalies := spec.OverlayCounts()
	monitoring.RecordChartBuild(string(spec.ChartType), d, extrema, anomalies)
}
