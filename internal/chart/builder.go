package chart

import (
	"fmt"
)

// SeriesKind is the drawing style of a series.
type SeriesKind string

const (
	SeriesLine    SeriesKind = "line"
	SeriesScatter SeriesKind = "scatter"
)

// Axis ids used by Series.Axis.
const (
	AxisX       = "x"
	AxisY       = "y"
	AxisPrimary = "primary"
	AxisSpend   = "spend"
	AxisVolume  = "volume"
)

// Axis titles of the dual-axis layout.
const (
	TitleUnits       = "Units"
	TitleSpends      = "Spends"
	TitleImpressions = "Impressions"
)

// DefaultPalette is the ordered line palette, cycled by selection position.
var DefaultPalette = []string{
	"#2563EB",
	"rgb(20, 184, 166)",
	"rgb(245, 158, 11)",
	"rgb(239, 68, 68)",
	"rgb(34, 197, 94)",
	"rgb(168, 85, 247)",
	"rgb(236, 72, 153)",
	"rgb(14, 165, 233)",
}

// Series is one drawable series. Points is aligned with the chart labels and
// holds nil wherever there is nothing to draw. X is only set for XY scatter
// charts.
type Series struct {
	ID                 string     `json:"id"`
	Label              string     `json:"label"`
	Kind               SeriesKind `json:"kind"`
	Axis               string     `json:"axis"`
	Color              string     `json:"color"`
	Points             []*float64 `json:"points"`
	X                  []*float64 `json:"x,omitempty"`
	ExcludeFromLegend  bool       `json:"exclude_from_legend,omitempty"`
	ExcludeFromTooltip bool       `json:"exclude_from_tooltip,omitempty"`
	Symbol             string     `json:"symbol,omitempty"`
	SymbolRotate       int        `json:"symbol_rotate,omitempty"`
	Notes              []string   `json:"notes,omitempty"`
}

// NonNull returns the number of drawable points.
func (s Series) NonNull() int {
	n := 0
	for _, p := range s.Points {
		if p != nil {
			n++
		}
	}
	return n
}

// Axis describes one chart axis.
type Axis struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position string `json:"position"`
	Category bool   `json:"category,omitempty"`
	Visible  bool   `json:"visible"`
}

// BuildSeries turns the selected columns into line series, or a single XY
// scatter series when the chart type is scatter and exactly two columns are
// selected. Missing values stay nil. An empty selection or empty points
// produce no series.
func BuildSeries(points []Point, sel Selection, palette []string) ([]Series, []Axis) {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if len(sel.Columns) == 0 || len(points) == 0 {
		return []Series{}, axesFor(sel)
	}

	if isXYScatter(sel) {
		xCol, yCol := sel.Columns[0], sel.Columns[1]
		s := Series{
			ID:     xCol + ":" + yCol,
			Label:  fmt.Sprintf("%s vs %s", yCol, xCol),
			Kind:   SeriesScatter,
			Axis:   AxisY,
			Color:  palette[0],
			X:      columnValues(points, xCol),
			Points: columnValues(points, yCol),
		}
		return []Series{s}, axesFor(sel)
	}

	dual := sel.ChartType == ChartDualAxis
	out := make([]Series, 0, len(sel.Columns))
	for i, col := range sel.Columns {
		axis := AxisY
		if dual {
			axis = dualAxisFor(ClassifyColumn(col))
		}
		out = append(out, Series{
			ID:     col,
			Label:  col,
			Kind:   SeriesLine,
			Axis:   axis,
			Color:  palette[i%len(palette)],
			Points: columnValues(points, col),
		})
	}
	return out, axesFor(sel)
}

func isXYScatter(sel Selection) bool {
	return sel.ChartType == ChartScatter && len(sel.Columns) == 2
}

func columnValues(points []Point, col string) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = p.valuePtr(col)
	}
	return out
}

func dualAxisFor(k Kind) string {
	switch k {
	case KindSpend:
		return AxisSpend
	case KindVolume:
		return AxisVolume
	default:
		return AxisPrimary
	}
}

// axesFor lays out the axes for a selection. In dual-axis mode the primary
// (units) axis sits on the left when any unit or unclassified column is
// selected; otherwise impressions take the left side and the primary axis is
// hidden. The impressions axis is only shown next to units when no spend
// column competes for the right side.
func axesFor(sel Selection) []Axis {
	if isXYScatter(sel) {
		return []Axis{
			{ID: AxisX, Title: sel.Columns[0], Position: "bottom", Visible: true},
			{ID: AxisY, Title: sel.Columns[1], Position: "left", Visible: true},
		}
	}
	category := Axis{ID: AxisX, Position: "bottom", Category: true, Visible: true}
	if sel.ChartType != ChartDualAxis {
		return []Axis{category, {ID: AxisY, Position: "left", Visible: true}}
	}

	var hasPrimary, hasSpend, hasVolume bool
	for _, c := range sel.Columns {
		switch ClassifyColumn(c) {
		case KindSpend:
			hasSpend = true
		case KindVolume:
			hasVolume = true
		default:
			hasPrimary = true
		}
	}
	if hasPrimary {
		return []Axis{
			category,
			{ID: AxisPrimary, Title: TitleUnits, Position: "left", Visible: true},
			{ID: AxisSpend, Title: TitleSpends, Position: "right", Visible: hasSpend},
			{ID: AxisVolume, Title: TitleImpressions, Position: "right", Visible: hasVolume && !hasSpend},
		}
	}
	return []Axis{
		category,
		{ID: AxisPrimary, Title: TitleUnits, Position: "left", Visible: false},
		{ID: AxisSpend, Title: TitleSpends, Position: "right", Visible: hasSpend},
		{ID: AxisVolume, Title: TitleImpressions, Position: "left", Visible: hasVolume},
	}
}
