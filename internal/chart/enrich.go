package chart

// EnrichOptions controls which derived data Enrich may add to a payload.
type EnrichOptions struct {
	ExtremaColumn  string
	PeakPercentile float64
	DipPercentile  float64
	FlagColumn     string
	PeriodFlags    []PeriodFlag
}

// Enrich fills in peaks and dips when the payload carries none, and period
// totals when it carries none and period flags are configured. Precomputed
// data is never replaced.
func Enrich(p Payload, o EnrichOptions) Payload {
	if p.Anomalies.Empty() && o.ExtremaColumn != "" {
		p.Anomalies = DetectExtrema(p.ChartData.Points, o.ExtremaColumn, o.PeakPercentile, o.DipPercentile)
	}
	if len(p.ChartData.Periods) == 0 && len(o.PeriodFlags) > 0 {
		p.ChartData.Periods = AggregatePeriods(p.ChartData.Points, MetricColumns(p.ChartData.Columns), o.FlagColumn, o.PeriodFlags)
	}
	return p
}
