package chart

import (
	"sort"
	"strings"
)

// ChartType selects how the selected columns are drawn.
type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartDualAxis ChartType = "dualAxis"
	ChartScatter  ChartType = "scatter"
)

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartLine, ChartDualAxis, ChartScatter:
		return true
	}
	return false
}

// DateRange is an inclusive calendar-day window. Empty bounds are open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Selection is the user-owned state that drives chart construction.
type Selection struct {
	Columns        []string  `json:"columns"`
	TacticFilter   string    `json:"tactic_filter"`
	SeverityFilter string    `json:"severity_filter"`
	ChartType      ChartType `json:"chart_type"`
	DateRange      DateRange `json:"date_range"`
	ShowAnomalies  bool      `json:"show_anomalies"`
}

// DefaultSelection returns an unfiltered selection with anomalies shown.
func DefaultSelection() Selection {
	return Selection{
		TacticFilter:   AllFilter,
		SeverityFilter: AllFilter,
		ChartType:      ChartLine,
		ShowAnomalies:  true,
	}
}

// SeriesChoice is the outcome of SelectSeries. ChartType is only meaningful
// when SetsChartType is true.
type SeriesChoice struct {
	Columns       []string
	ChartType     ChartType
	SetsChartType bool
}

// SelectSeries picks the default selected columns for a dataset.
//
// A concrete tactic filter pairs the tactic's spend column with its
// impression (or click) column. With no filter, the first anomaly's tactic is
// used the same way. When neither yields a column, a heuristic picks up to two
// columns preferring unit/sale, then spend, then volume, and also decides the
// chart type. The result replaces any previous selection.
func SelectSeries(columns []string, tacticFilter string, anomalies []Anomaly) SeriesChoice {
	if tacticFilter != "" && tacticFilter != AllFilter {
		if cols := tacticColumns(StripMetricSuffix(tacticFilter), columns); len(cols) > 0 {
			return SeriesChoice{Columns: cols}
		}
		var exact []string
		for _, c := range columns {
			if c == tacticFilter {
				exact = append(exact, c)
			}
		}
		if len(exact) > 0 {
			return SeriesChoice{Columns: exact}
		}
	} else if len(anomalies) > 0 && anomalies[0].TacticPrefix != "" {
		if cols := tacticColumns(anomalies[0].TacticPrefix, columns); len(cols) > 0 {
			return SeriesChoice{Columns: cols}
		}
	}
	return defaultChoice(columns)
}

// tacticColumns resolves the spend and volume columns of a tactic prefix.
// Volume prefers impressions over clicks.
func tacticColumns(prefix string, columns []string) []string {
	var out []string
	if spend, ok := ResolveFamily(prefix, columns, SpendFamily); ok {
		out = append(out, spend)
	}
	if vol, ok := ResolveFamily(prefix, columns, ImpFamily); ok {
		out = append(out, vol)
	} else if vol, ok := ResolveFamily(prefix, columns, ClickFamily); ok {
		out = append(out, vol)
	}
	return out
}

func defaultChoice(columns []string) SeriesChoice {
	safe := MetricColumns(columns)
	var chosen []string

	if c, ok := firstOfKind(safe, KindUnit); ok {
		chosen = append(chosen, c)
	}
	if c, ok := firstOfKind(safe, KindSpend); ok {
		chosen = append(chosen, c)
	}
	if len(chosen) < 2 {
		if c, ok := firstOfKind(safe, KindVolume); ok {
			chosen = append(chosen, c)
		}
	}
	for _, c := range safe {
		if len(chosen) >= 2 {
			break
		}
		if !containsString(chosen, c) {
			chosen = append(chosen, c)
		}
	}

	var hasUnit, hasCompanion bool
	for _, c := range chosen {
		switch ClassifyColumn(c) {
		case KindUnit:
			hasUnit = true
		case KindSpend, KindVolume:
			hasCompanion = true
		}
	}
	ct := ChartDualAxis
	if hasUnit && !hasCompanion {
		ct = ChartLine
	}
	return SeriesChoice{Columns: chosen, ChartType: ct, SetsChartType: true}
}

func firstOfKind(columns []string, k Kind) (string, bool) {
	for _, c := range columns {
		if ClassifyColumn(c) == k {
			return c, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// AvailableTactics lists the tactic prefixes that have a spend column, in
// column order and without duplicates.
func AvailableTactics(columns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range MetricColumns(columns) {
		f, ok := familyOf(c)
		if !ok || f.Canonical != SpendFamily.Canonical {
			continue
		}
		p := StripMetricSuffix(c)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

var severityRank = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

// AvailableSeverities lists AllFilter followed by the distinct severity bands
// present in anomalies, ordered Critical, High, Medium, Low and then any
// other band alphabetically.
func AvailableSeverities(anomalies []Anomaly) []string {
	seen := make(map[string]string)
	for _, a := range anomalies {
		s := a.severityOrDefault()
		key := strings.ToLower(s)
		if _, ok := seen[key]; !ok {
			seen[key] = s
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := severityRank[keys[i]]
		rj, jok := severityRank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	out := []string{AllFilter}
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}
