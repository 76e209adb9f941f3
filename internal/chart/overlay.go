package chart

import (
	"strings"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// Labels and colors of the extrema overlays.
const (
	PeaksLabel = "Peaks"
	DipsLabel  = "Dips"

	peaksColor   = "#10b981"
	dipsColor    = "#ef4444"
	DefaultColor = "#ef4444"
)

// DefaultReasonColors maps known anomaly reasons to overlay colors. Reasons
// not listed use DefaultColor.
var DefaultReasonColors = map[string]string{
	"Spend spike only":                      "#ef4444",
	"Impression spike only":                 "#f97316",
	"High Spend spike":                      "#dc2626",
	"High Impression spike":                 "#f59e0b",
	"No Spend with added value Impressions": "#6366f1",
	"High Spend, Low IMP":                   "#9333ea",
	"High IMP, Low Spend":                   "#06b6d4",
	"Spike in Spend & IMP":                  "#10b981",
	"Drop in IMP & Spend":                   "#ef4444",
	OtherReason:                             "#94a3b8",
}

// OverlayInput carries everything the overlay engine reads. Points must be the
// same post-pipeline slice the line series were built from.
type OverlayInput struct {
	Points       []Point
	Columns      []string
	Selection    Selection
	Anomalies    []Anomaly
	Extrema      Extrema
	ReasonColors map[string]string
}

// BuildOverlays returns the scatter overlays for a chart: Peaks and Dips
// first, then one series per anomaly reason for the active tactic, or one
// series per selected column when no tactic is active. Overlays are not
// drawn on XY scatter charts.
func BuildOverlays(in OverlayInput) []Series {
	out := []Series{}
	if isXYScatter(in.Selection) || len(in.Points) == 0 {
		return out
	}
	days := pointDays(in.Points)
	out = append(out, extremaOverlays(in, days)...)

	if !in.Selection.ShowAnomalies || len(in.Anomalies) == 0 {
		return out
	}
	if prefix := ActiveTacticPrefix(in.Selection.TacticFilter, in.Anomalies); prefix != "" {
		return append(out, reasonOverlays(in, days, prefix)...)
	}
	return append(out, columnOverlays(in, days)...)
}

// ActiveTacticPrefix is the tactic whose anomalies are grouped by reason: the
// filter with its metric suffix removed, or the first anomaly's tactic when
// the filter is AllFilter.
func ActiveTacticPrefix(tacticFilter string, anomalies []Anomaly) string {
	if tacticFilter != "" && tacticFilter != AllFilter {
		return StripMetricSuffix(tacticFilter)
	}
	if len(anomalies) > 0 {
		return anomalies[0].TacticPrefix
	}
	return ""
}

// Reasons returns the distinct reasons, in first-appearance order, of the
// anomalies for prefix that pass the severity filter.
func Reasons(anomalies []Anomaly, prefix, severityFilter string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range anomalies {
		if a.TacticPrefix != prefix || !severityMatches(a, severityFilter) {
			continue
		}
		r := a.reasonOrDefault()
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PlotColumn picks the column anomaly markers for prefix are drawn on:
// impressions, then clicks, then spend, preferring a displayed column over
// one that merely exists in the dataset.
func PlotColumn(prefix string, displayed, columns []string) (string, bool) {
	var candidates []string
	for _, f := range []SuffixFamily{ImpFamily, ClickFamily, SpendFamily} {
		if c, ok := ResolveFamily(prefix, columns, f); ok {
			candidates = append(candidates, c)
		}
	}
	for _, c := range candidates {
		if containsString(displayed, c) {
			return c, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}

func severityMatches(a Anomaly, filter string) bool {
	if filter == "" || filter == AllFilter {
		return true
	}
	return strings.EqualFold(a.severityOrDefault(), strings.TrimSpace(filter))
}

func pointDays(points []Point) []timeutil.Day {
	out := make([]timeutil.Day, len(points))
	for i, p := range points {
		if d, ok := timeutil.ParseDay(p.Date); ok {
			out[i] = d
		}
	}
	return out
}

// sameDay reports whether raw parses to the non-zero day d.
func sameDay(d timeutil.Day, raw string) bool {
	if d.IsZero() {
		return false
	}
	o, ok := timeutil.ParseDay(raw)
	return ok && o == d
}

func overlayAxis(sel Selection, column string) string {
	if sel.ChartType != ChartDualAxis {
		return AxisY
	}
	return dualAxisFor(ClassifyColumn(column))
}

// extremaAxis pins peaks and dips to the units axis, or to the volume axis
// when the dual-axis layout hides the units axis.
func extremaAxis(sel Selection) string {
	if sel.ChartType != ChartDualAxis {
		return AxisY
	}
	for _, c := range sel.Columns {
		if dualAxisFor(ClassifyColumn(c)) == AxisPrimary {
			return AxisPrimary
		}
	}
	return AxisVolume
}

func extremaOverlays(in OverlayInput, days []timeutil.Day) []Series {
	axis := extremaAxis(in.Selection)
	var out []Series
	build := func(label, color string, rotate int, marks []Extremum) {
		if len(marks) == 0 {
			return
		}
		pts := make([]*float64, len(days))
		hit := false
		for i, d := range days {
			for _, m := range marks {
				if sameDay(d, m.Date) {
					v := m.Value
					pts[i] = &v
					hit = true
					break
				}
			}
		}
		if !hit {
			return
		}
		out = append(out, Series{
			ID:                 strings.ToLower(label),
			Label:              label,
			Kind:               SeriesScatter,
			Axis:               axis,
			Color:              color,
			Points:             pts,
			ExcludeFromLegend:  true,
			ExcludeFromTooltip: true,
			Symbol:             "triangle",
			SymbolRotate:       rotate,
		})
	}
	build(PeaksLabel, peaksColor, 0, in.Extrema.Peaks)
	build(DipsLabel, dipsColor, 180, in.Extrema.Dips)
	return out
}

func reasonOverlays(in OverlayInput, days []timeutil.Day, prefix string) []Series {
	reasons := Reasons(in.Anomalies, prefix, in.Selection.SeverityFilter)
	if len(reasons) == 0 {
		return nil
	}
	plotCol, ok := PlotColumn(prefix, in.Selection.Columns, in.Columns)
	if !ok {
		return nil
	}
	colors := in.ReasonColors
	if colors == nil {
		colors = DefaultReasonColors
	}

	var out []Series
	for _, reason := range reasons {
		pts := make([]*float64, len(in.Points))
		notes := make([]string, len(in.Points))
		for i, p := range in.Points {
			a, ok := firstAnomaly(in.Anomalies, days[i], func(a Anomaly) bool {
				return a.TacticPrefix == prefix &&
					a.reasonOrDefault() == reason &&
					severityMatches(a, in.Selection.SeverityFilter)
			})
			if !ok {
				continue
			}
			pts[i] = p.valuePtr(plotCol)
			notes[i] = anomalyNote(a)
		}
		s := Series{
			ID:     "anomaly:" + reason,
			Label:  reason,
			Kind:   SeriesScatter,
			Axis:   overlayAxis(in.Selection, plotCol),
			Color:  reasonColor(colors, reason),
			Points: pts,
			Notes:  notes,
		}
		if s.NonNull() > 0 {
			out = append(out, s)
		}
	}
	return out
}

// columnOverlays marks anomalies on each selected column, using the column
// name without its metric suffix as the tactic. Unit and sale columns carry
// no tactic and are skipped; a concrete tactic filter only keeps its own
// columns.
func columnOverlays(in OverlayInput, days []timeutil.Day) []Series {
	filter := in.Selection.TacticFilter
	var out []Series
	for _, col := range in.Selection.Columns {
		if ClassifyColumn(col) == KindUnit {
			continue
		}
		prefix := StripMetricSuffix(col)
		if filter != "" && filter != AllFilter && StripMetricSuffix(filter) != prefix {
			continue
		}
		pts := make([]*float64, len(in.Points))
		notes := make([]string, len(in.Points))
		for i, p := range in.Points {
			a, ok := firstAnomaly(in.Anomalies, days[i], func(a Anomaly) bool {
				return a.TacticPrefix == prefix && severityMatches(a, in.Selection.SeverityFilter)
			})
			if !ok {
				continue
			}
			pts[i] = p.valuePtr(col)
			notes[i] = anomalyNote(a)
		}
		s := Series{
			ID:     "anomaly:" + col,
			Label:  col + " Anomalies",
			Kind:   SeriesScatter,
			Axis:   overlayAxis(in.Selection, col),
			Color:  DefaultColor,
			Points: pts,
			Notes:  notes,
		}
		if s.NonNull() > 0 {
			out = append(out, s)
		}
	}
	return out
}

// firstAnomaly returns the first anomaly on day d accepted by match.
func firstAnomaly(anomalies []Anomaly, d timeutil.Day, match func(Anomaly) bool) (Anomaly, bool) {
	for _, a := range anomalies {
		if sameDay(d, a.Date) && match(a) {
			return a, true
		}
	}
	return Anomaly{}, false
}

func reasonColor(colors map[string]string, reason string) string {
	if c, ok := colors[reason]; ok && c != "" {
		return c
	}
	return DefaultColor
}

func anomalyNote(a Anomaly) string {
	var b strings.Builder
	b.WriteString("Severity: ")
	b.WriteString(a.severityOrDefault())
	if a.BrandsList != "" {
		b.WriteString(" | Top Brands: ")
		b.WriteString(a.BrandsList)
		if a.Contribution != "" {
			b.WriteString(" (")
			b.WriteString(a.Contribution)
			b.WriteString(")")
		}
	}
	return b.String()
}
