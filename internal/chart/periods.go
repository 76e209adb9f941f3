package chart

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

// DefaultPeriodWeeks is shown for periods that carry no week count.
const DefaultPeriodWeeks = 52

// ColumnTotal is one cell of the period table.
type ColumnTotal struct {
	Column string  `json:"column"`
	Total  float64 `json:"total"`
}

// PeriodRow is one row of the period table.
type PeriodRow struct {
	Label  string        `json:"label"`
	Weeks  float64       `json:"weeks"`
	Totals []ColumnTotal `json:"totals"`
}

// PeriodTable lays out the dataset's period aggregates for columns, keeping
// period order. Missing week counts display as DefaultPeriodWeeks and missing
// totals as 0.
func PeriodTable(ds Dataset, columns []string) []PeriodRow {
	out := make([]PeriodRow, 0, len(ds.Periods))
	for _, p := range ds.Periods {
		row := PeriodRow{Label: p.Label, Weeks: DefaultPeriodWeeks}
		if p.Weeks != nil {
			row.Weeks = *p.Weeks
		}
		row.Totals = make([]ColumnTotal, len(columns))
		for i, c := range columns {
			row.Totals[i] = ColumnTotal{Column: c, Total: p.Values[c]}
		}
		out = append(out, row)
	}
	return out
}

// PeriodFlag names the period whose rows carry Flag in the flag column.
type PeriodFlag struct {
	Flag  float64 `json:"flag" yaml:"flag"`
	Label string  `json:"label" yaml:"label"`
}

// AggregatePeriods computes per-period totals from a year_flag style column.
// Weeks is the span between the first and last day of the period in weeks,
// rounded to one decimal. Rows without a parseable date still count towards
// the totals but not the span.
func AggregatePeriods(points []Point, columns []string, flagColumn string, flags []PeriodFlag) []PeriodAggregate {
	if flagColumn == "" {
		flagColumn = YearFlagColumn
	}
	out := make([]PeriodAggregate, 0, len(flags))
	for _, f := range flags {
		var rows []Point
		for _, p := range points {
			if v, ok := p.Value(flagColumn); ok && v == f.Flag {
				rows = append(rows, p)
			}
		}

		weeks := periodWeeks(rows)
		agg := PeriodAggregate{Label: f.Label, Weeks: &weeks, Values: make(map[string]float64, len(columns))}
		for _, c := range columns {
			vals := make([]float64, 0, len(rows))
			for _, p := range rows {
				if v, ok := p.Value(c); ok && !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			agg.Values[c] = floats.Sum(vals)
		}
		out = append(out, agg)
	}
	return out
}

func periodWeeks(rows []Point) float64 {
	var first, last timeutil.Day
	for _, p := range rows {
		d, ok := timeutil.ParseDay(p.Date)
		if !ok {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	if first.IsZero() {
		return 0
	}
	w := float64(first.DaysUntil(last)) / 7
	if w <= 0 {
		return 0
	}
	return math.Round(w*10) / 10
}
