// Package chart turns a tabular marketing time series and its anomaly records
// into render-ready chart specifications.
//
// Everything in this package is a pure function of its inputs. Callers own
// the selection and playback state and re-run Compose whenever an input
// changes; nothing here is cached or mutated in place.
package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AllFilter is the sentinel value for "no tactic/severity filter".
const AllFilter = "All"

// OtherReason is the reason assigned to anomalies that arrive without one.
const OtherReason = "Other"

// Column names that carry row metadata rather than metrics.
const (
	DateColumn     = "date"
	IndexColumn    = "INDEX"
	YearFlagColumn = "year_flag"
)

// Point is one row of the time series. A column missing from Values is
// distinct from a column holding 0.
type Point struct {
	Date   string
	Values map[string]float64
}

// Value returns the column value and whether the row carries it.
func (p Point) Value(column string) (float64, bool) {
	v, ok := p.Values[column]
	return v, ok
}

// valuePtr returns a pointer to a copy of the column value, or nil.
func (p Point) valuePtr(column string) *float64 {
	v, ok := p.Values[column]
	if !ok {
		return nil
	}
	return &v
}

// MarshalJSON writes the flat upstream shape {"date": ..., "<col>": ...}.
func (p Point) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Values)+1)
	for k, v := range p.Values {
		m[k] = v
	}
	m[DateColumn] = p.Date
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat upstream shape. Null and non-numeric cells are
// treated as missing.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	p.Values = make(map[string]float64, len(raw))
	p.Date = ""
	for k, v := range raw {
		if k == DateColumn {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				p.Date = s
			}
			continue
		}
		if isNull(v) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			p.Values[k] = f
		}
	}
	return nil
}

// isNull reports whether a raw cell is JSON null, which decodes into a
// float64 without error.
func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// PeriodAggregate holds precomputed per-column totals for a named period.
type PeriodAggregate struct {
	Label  string
	Weeks  *float64
	Values map[string]float64
}

// Dataset is a time series with its column list and optional period totals.
type Dataset struct {
	Columns []string          `json:"columns"`
	Points  []Point           `json:"time_series"`
	Periods []PeriodAggregate `json:"-"`
}

type datasetJSON struct {
	Columns []string        `json:"columns"`
	Points  []Point         `json:"time_series"`
	Periods json.RawMessage `json:"period_agg,omitempty"`
}

// UnmarshalJSON accepts the upstream {"columns", "time_series", "period_agg"}
// shape. The key order of period_agg is preserved.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw datasetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	d.Columns = raw.Columns
	d.Points = raw.Points
	d.Periods = nil
	if len(raw.Periods) == 0 || bytes.Equal(bytes.TrimSpace(raw.Periods), []byte("null")) {
		return nil
	}
	periods, err := decodePeriods(raw.Periods)
	if err != nil {
		return err
	}
	d.Periods = periods
	return nil
}

// MarshalJSON writes the upstream shape, emitting period_agg in order.
func (d Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"columns":`)
	cols, err := json.Marshal(nonNilStrings(d.Columns))
	if err != nil {
		return nil, err
	}
	buf.Write(cols)
	buf.WriteString(`,"time_series":`)
	points := d.Points
	if points == nil {
		points = []Point{}
	}
	pts, err := json.Marshal(points)
	if err != nil {
		return nil, err
	}
	buf.Write(pts)
	if len(d.Periods) > 0 {
		buf.WriteString(`,"period_agg":{`)
		for i, p := range d.Periods {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(p.Label)
			if err != nil {
				return nil, err
			}
			m := make(map[string]interface{}, len(p.Values)+1)
			for k, v := range p.Values {
				m[k] = v
			}
			if p.Weeks != nil {
				m[weeksKey] = *p.Weeks
			}
			val, err := json.Marshal(m)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

const weeksKey = "Weeks"

func decodePeriods(data []byte) ([]PeriodAggregate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode period_agg: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode period_agg: expected object")
	}

	var out []PeriodAggregate
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode period_agg: %w", err)
		}
		label, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode period_agg: expected label")
		}
		var cells map[string]json.RawMessage
		if err := dec.Decode(&cells); err != nil {
			return nil, fmt.Errorf("decode period %q: %w", label, err)
		}
		agg := PeriodAggregate{Label: label, Values: make(map[string]float64, len(cells))}
		for k, v := range cells {
			if isNull(v) {
				continue
			}
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				continue
			}
			if k == weeksKey {
				w := f
				agg.Weeks = &w
				continue
			}
			agg.Values[k] = f
		}
		out = append(out, agg)
	}
	return out, nil
}

// Anomaly is one flagged (date, tactic) observation from the analytics service.
type Anomaly struct {
	Date         string `json:"date"`
	TacticPrefix string `json:"tactic_prefix"`
	Reason       string `json:"reason"`
	Severity     string `json:"severity"`
	BrandsList   string `json:"brands_list,omitempty"`
	Contribution string `json:"contribution,omitempty"`
}

type anomalyJSON struct {
	AnomalyDate      *string     `json:"Anomaly Date"`
	AnomalyDateUnder *string     `json:"Anomaly_Date"`
	Date             *string     `json:"date"`
	TacticPrefix     *string     `json:"Tactic_Prefix"`
	TacticPrefixLow  *string     `json:"tactic_prefix"`
	Reason           *string     `json:"Reason"`
	ReasonLow        *string     `json:"reason"`
	SeverityBand     *string     `json:"Severity_Band"`
	Severity         *string     `json:"Severity"`
	SeverityLow      *string     `json:"severity"`
	BrandsList       *string     `json:"Brands_list"`
	BrandsListLow    *string     `json:"brands_list"`
	Contribution     interface{} `json:"Contribution"`
	ContributionLow  interface{} `json:"contribution"`
}

// UnmarshalJSON accepts both the analytics service field names
// ("Anomaly Date"/"Anomaly_Date", "Tactic_Prefix", "Reason",
// "Severity_Band"/"Severity") and this package's own snake_case names.
func (a *Anomaly) UnmarshalJSON(data []byte) error {
	var raw anomalyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode anomaly: %w", err)
	}
	*a = Anomaly{
		Date:         firstString(raw.AnomalyDate, raw.AnomalyDateUnder, raw.Date),
		TacticPrefix: firstString(raw.TacticPrefix, raw.TacticPrefixLow),
		Reason:       firstString(raw.Reason, raw.ReasonLow),
		Severity:     strings.TrimSpace(firstString(raw.SeverityBand, raw.Severity, raw.SeverityLow)),
		BrandsList:   firstString(raw.BrandsList, raw.BrandsListLow),
		Contribution: stringify(raw.Contribution, raw.ContributionLow),
	}
	if a.Reason == "" {
		a.Reason = OtherReason
	}
	return nil
}

// severityOrDefault returns the severity band, treating blanks as Low.
func (a Anomaly) severityOrDefault() string {
	if s := strings.TrimSpace(a.Severity); s != "" {
		return s
	}
	return "Low"
}

// reasonOrDefault returns the reason, treating blanks as OtherReason.
func (a Anomaly) reasonOrDefault() string {
	if a.Reason == "" {
		return OtherReason
	}
	return a.Reason
}

// Extremum is a precomputed local maximum or minimum keyed only by date.
type Extremum struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Extrema groups the peak and dip markers for a dataset.
type Extrema struct {
	Peaks []Extremum `json:"peaks"`
	Dips  []Extremum `json:"dips"`
}

// Empty reports whether there are no markers at all.
func (e Extrema) Empty() bool {
	return len(e.Peaks) == 0 && len(e.Dips) == 0
}

// Payload is one analytics export: the chart data, the anomaly table and the
// peak/dip markers. The field names follow the export format, where the
// markers travel under "anomalies".
type Payload struct {
	ChartData      Dataset   `json:"chart_data"`
	AnomaliesTable []Anomaly `json:"anomalies_table"`
	Anomalies      Extrema   `json:"anomalies"`
}

func firstString(vals ...*string) string {
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func stringify(vals ...interface{}) string {
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			if x != "" {
				return x
			}
		case float64:
			return fmt.Sprintf("%g", x)
		default:
			return fmt.Sprint(x)
		}
	}
	return ""
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
