package chart

// Spec is a render-ready chart: category labels, series aligned to them and
// the axes the series refer to.
type Spec struct {
	ChartType ChartType `json:"chart_type"`
	Labels    []string  `json:"labels"`
	Series    []Series  `json:"series"`
	Axes      []Axis    `json:"axes"`
}

// ComposeOptions tunes colors. Zero values fall back to the defaults.
type ComposeOptions struct {
	Palette      []string
	ReasonColors map[string]string
}

// Compose runs the pipeline once and builds the line series and overlays from
// the same visible points, so every series lines up with Labels.
func Compose(ds Dataset, anomalies []Anomaly, extrema Extrema, sel Selection, pb PlaybackState, opts ComposeOptions) Spec {
	points := ApplyPipeline(ds.Points, sel.DateRange, pb)
	lines, axes := BuildSeries(points, sel, opts.Palette)
	overlays := BuildOverlays(OverlayInput{
		Points:       points,
		Columns:      ds.Columns,
		Selection:    sel,
		Anomalies:    anomalies,
		Extrema:      extrema,
		ReasonColors: opts.ReasonColors,
	})

	series := make([]Series, 0, len(lines)+len(overlays))
	series = append(series, lines...)
	if len(lines) > 0 {
		series = append(series, overlays...)
	}

	ct := sel.ChartType
	if !ct.Valid() {
		ct = ChartLine
	}
	return Spec{
		ChartType: ct,
		Labels:    Labels(points),
		Series:    series,
		Axes:      axes,
	}
}

// LegendEntries returns the labels of series shown in the legend.
func (s Spec) LegendEntries() []string {
	var out []string
	for _, ser := range s.Series {
		if !ser.ExcludeFromLegend {
			out = append(out, ser.Label)
		}
	}
	return out
}

// AxisByID returns the axis with the given id.
func (s Spec) AxisByID(id string) (Axis, bool) {
	for _, a := range s.Axes {
		if a.ID == id {
			return a, true
		}
	}
	return Axis{}, false
}

// OverlayCounts returns how many peak or dip series and how many anomaly
// series the chart draws over its lines.
func (s Spec) OverlayCounts() (extrema, anomalies int) {
	for _, ser := range s.Series {
		switch {
		case ser.Kind != SeriesScatter || ser.X != nil:
		case ser.Label == PeaksLabel || ser.Label == DipsLabel:
			extrema++
		default:
			anomalies++
		}
	}
	return extrema, anomalies
}
