// Package render draws composed chart specs: interactive ECharts pages via
// go-echarts and static PNG images via gonum/plot.
package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
)

// DefaultAssetsHost serves the echarts javascript bundle.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// missing is how echarts marks a gap in a series.
const missing = "-"

// PageOptions describes the HTML page around the chart.
type PageOptions struct {
	PageTitle  string
	Title      string
	Subtitle   string
	AssetsHost string
	Width      string
	Height     string
}

func (po PageOptions) withDefaults() PageOptions {
	if po.PageTitle == "" {
		po.PageTitle = "Stack Explorer"
	}
	if po.AssetsHost == "" {
		po.AssetsHost = DefaultAssetsHost
	}
	if po.Width == "" {
		po.Width = "100%"
	}
	if po.Height == "" {
		po.Height = "560px"
	}
	return po
}

// Renderer is satisfied by every go-echarts chart.
type Renderer interface {
	Render(w io.Writer) error
	JSON() map[string]interface{}
	Validate()
}

// ECharts builds the go-echarts chart for spec.
func ECharts(spec chart.Spec, po PageOptions) Renderer {
	po = po.withDefaults()
	if isXYScatter(spec) {
		return xyScatter(spec, po)
	}
	return categoryChart(spec, po)
}

// EChartsHTML writes a standalone HTML page for spec.
func EChartsHTML(w io.Writer, spec chart.Spec, po PageOptions) error {
	var buf bytes.Buffer
	if err := ECharts(spec, po).Render(&buf); err != nil {
		return fmt.Errorf("render echarts: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// EChartsOptions returns the echarts option object for spec, ready to be
// passed to echarts.setOption by a client.
func EChartsOptions(spec chart.Spec) map[string]interface{} {
	c := ECharts(spec, PageOptions{})
	c.Validate()
	return c.JSON()
}

func isXYScatter(spec chart.Spec) bool {
	return len(spec.Series) == 1 && spec.Series[0].X != nil
}

func globalOpts(spec chart.Spec, po PageOptions) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{PageTitle: po.PageTitle, Width: po.Width, Height: po.Height, AssetsHost: po.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: po.Title, Subtitle: po.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Data: spec.LegendEntries()}),
	}
}

// yAxes maps every non-x axis of spec to its echarts y-axis index.
func yAxes(spec chart.Spec) ([]opts.YAxis, map[string]int) {
	var list []opts.YAxis
	index := make(map[string]int)
	for _, a := range spec.Axes {
		if a.ID == chart.AxisX {
			continue
		}
		index[a.ID] = len(list)
		list = append(list, opts.YAxis{
			Name:     a.Title,
			Type:     "value",
			Position: a.Position,
			Show:     opts.Bool(a.Visible),
		})
	}
	if len(list) == 0 {
		list = append(list, opts.YAxis{Type: "value"})
	}
	return list, index
}

func categoryChart(spec chart.Spec, po PageOptions) *charts.Line {
	line := charts.NewLine()
	y, yIndex := yAxes(spec)

	gopts := globalOpts(spec, po)
	gopts = append(gopts,
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(y[0]),
	)
	line.SetGlobalOptions(gopts...)
	if len(y) > 1 {
		line.ExtendYAxis(y[1:]...)
	}
	line.SetXAxis(spec.Labels)

	overlay := charts.NewScatter()
	overlay.SetXAxis(spec.Labels)
	for _, s := range spec.Series {
		switch s.Kind {
		case chart.SeriesScatter:
			overlay.AddSeries(s.Label, scatterData(s), scatterOpts(s, yIndex[s.Axis])...)
		default:
			line.AddSeries(s.Label, lineData(s),
				charts.WithLineChartOpts(opts.LineChart{
					YAxisIndex:   yIndex[s.Axis],
					ShowSymbol:   opts.Bool(false),
					ConnectNulls: opts.Bool(false),
				}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color, Width: 2}),
			)
		}
	}
	line.Overlap(overlay)
	return line
}

func scatterOpts(s chart.Series, yIndex int) []charts.SeriesOpts {
	symbol := s.Symbol
	if symbol == "" {
		symbol = "circle"
	}
	out := []charts.SeriesOpts{
		charts.WithScatterChartOpts(opts.ScatterChart{YAxisIndex: yIndex, Symbol: symbol, SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
	}
	if s.ExcludeFromTooltip {
		out = append(out, charts.WithSeriesTooltipOpts(opts.SeriesTooltip{
			Formatter: opts.FuncOpts("function () { return ''; }"),
		}))
	} else if len(s.Notes) > 0 {
		out = append(out, charts.WithSeriesTooltipOpts(opts.SeriesTooltip{
			Formatter: opts.FuncOpts("function (p) { return p.seriesName + '<br/>' + p.name; }"),
		}))
	}
	return out
}

func lineData(s chart.Series) []opts.LineData {
	out := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		if p == nil {
			out[i] = opts.LineData{Value: missing}
			continue
		}
		out[i] = opts.LineData{Value: *p}
	}
	return out
}

func scatterData(s chart.Series) []opts.ScatterData {
	out := make([]opts.ScatterData, len(s.Points))
	for i, p := range s.Points {
		d := opts.ScatterData{Value: missing, SymbolRotate: s.SymbolRotate}
		if p != nil {
			d.Value = *p
		}
		if i < len(s.Notes) {
			d.Name = s.Notes[i]
		}
		out[i] = d
	}
	return out
}

func xyScatter(spec chart.Spec, po PageOptions) *charts.Scatter {
	s := spec.Series[0]
	xTitle, yTitle := "", ""
	if a, ok := spec.AxisByID(chart.AxisX); ok {
		xTitle = a.Title
	}
	if a, ok := spec.AxisByID(chart.AxisY); ok {
		yTitle = a.Title
	}

	sc := charts.NewScatter()
	gopts := globalOpts(spec, po)
	gopts = append(gopts,
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xTitle, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yTitle, NameLocation: "middle", NameGap: 40}),
	)
	sc.SetGlobalOptions(gopts...)

	data := make([]opts.ScatterData, 0, len(s.Points))
	for i, y := range s.Points {
		if y == nil || i >= len(s.X) || s.X[i] == nil {
			continue
		}
		pt := opts.ScatterData{Value: []interface{}{*s.X[i], *y}}
		if i < len(spec.Labels) {
			pt.Name = spec.Labels[i]
		}
		data = append(data, pt)
	}
	sc.AddSeries(s.Label, data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
	)
	return sc
}
