package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/units"
)

// ErrEmptyChart is returned when a spec has nothing to draw.
var ErrEmptyChart = errors.New("chart has no drawable points")

// ImageOptions sizes the static export.
type ImageOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	// MaxXTicks caps the number of date labels on the x axis.
	MaxXTicks int
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.Width <= 0 {
		o.Width = 14 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 6 * vg.Inch
	}
	if o.MaxXTicks <= 0 {
		o.MaxXTicks = 12
	}
	return o
}

// PNG draws spec as a PNG image. Category charts get one panel per y axis in
// use, stacked and aligned on the shared date axis; XY scatter charts are a
// single panel.
func PNG(w io.Writer, spec chart.Spec, o ImageOptions) error {
	o = o.withDefaults()

	var plots []*plot.Plot
	var err error
	if isXYScatter(spec) {
		var p *plot.Plot
		p, err = xyPlot(spec, o)
		plots = []*plot.Plot{p}
	} else {
		plots, err = panelPlots(spec, o)
	}
	if err != nil {
		return err
	}

	img := vgimg.New(o.Width, o.Height)
	dc := draw.New(img)
	grid := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{Rows: len(plots), Cols: 1, PadY: vg.Millimeter * 4, PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2}
	canvases := plot.Align(grid, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// panelPlots groups the spec's series by y axis, keeping axis order.
func panelPlots(spec chart.Spec, o ImageOptions) ([]*plot.Plot, error) {
	var plots []*plot.Plot
	drawn := 0
	for _, a := range spec.Axes {
		if a.ID == chart.AxisX {
			continue
		}
		var members []chart.Series
		for _, s := range spec.Series {
			if s.Axis == a.ID && s.NonNull() > 0 {
				members = append(members, s)
			}
		}
		if len(members) == 0 {
			continue
		}

		p := plot.New()
		if len(plots) == 0 {
			p.Title.Text = o.Title
		}
		p.Y.Label.Text = a.Title
		p.Y.Tick.Marker = valueTicks{}
		p.X.Tick.Marker = dateTicks(spec.Labels, o.MaxXTicks)
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		for _, s := range members {
			if err := addSeries(p, s); err != nil {
				return nil, err
			}
			drawn++
		}
		plots = append(plots, p)
	}
	if drawn == 0 {
		return nil, ErrEmptyChart
	}
	return plots, nil
}

func addSeries(p *plot.Plot, s chart.Series) error {
	c := parseColor(s.Color)
	if s.Kind == chart.SeriesScatter {
		pts := make(plotter.XYs, 0, s.NonNull())
		for i, v := range s.Points {
			if v != nil {
				pts = append(pts, plotter.XY{X: float64(i), Y: *v})
			}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", s.Label, err)
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: c, Radius: vg.Points(4), Shape: glyphFor(s)}
		p.Add(sc)
		if !s.ExcludeFromLegend {
			p.Legend.Add(s.Label, sc)
		}
		return nil
	}

	// Gaps split a line into separate segments.
	first := true
	for _, seg := range segments(s.Points) {
		ln, err := plotter.NewLine(seg)
		if err != nil {
			return fmt.Errorf("series %s: %w", s.Label, err)
		}
		ln.Color = c
		ln.Width = vg.Points(1.5)
		p.Add(ln)
		if first && !s.ExcludeFromLegend {
			p.Legend.Add(s.Label, ln)
		}
		first = false
	}
	return nil
}

// segments splits points into runs of consecutive non-nil values.
func segments(points []*float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, v := range points {
		if v == nil {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(i), Y: *v})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func xyPlot(spec chart.Spec, o ImageOptions) (*plot.Plot, error) {
	s := spec.Series[0]
	pts := make(plotter.XYs, 0, len(s.Points))
	for i, y := range s.Points {
		if y == nil || i >= len(s.X) || s.X[i] == nil {
			continue
		}
		pts = append(pts, plotter.XY{X: *s.X[i], Y: *y})
	}
	if len(pts) == 0 {
		return nil, ErrEmptyChart
	}

	p := plot.New()
	p.Title.Text = o.Title
	if a, ok := spec.AxisByID(chart.AxisX); ok {
		p.X.Label.Text = a.Title
	}
	if a, ok := spec.AxisByID(chart.AxisY); ok {
		p.Y.Label.Text = a.Title
	}
	p.X.Tick.Marker = valueTicks{}
	p.Y.Tick.Marker = valueTicks{}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", s.Label, err)
	}
	sc.GlyphStyle = draw.GlyphStyle{Color: parseColor(s.Color), Radius: vg.Points(3), Shape: draw.CircleGlyph{}}
	p.Add(sc)
	return p, nil
}

// valueTicks labels major ticks with en-US grouped numbers.
type valueTicks struct{}

func (valueTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if !ticks[i].IsMinor() {
			ticks[i].Label = units.FormatValue(ticks[i].Value)
		}
	}
	return ticks
}

// dateTicks labels at most maxTicks evenly spaced category indexes.
func dateTicks(labels []string, maxTicks int) plot.Ticker {
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if len(labels) == 0 {
			return nil
		}
		step := (len(labels) + maxTicks - 1) / maxTicks
		if step < 1 {
			step = 1
		}
		var ticks []plot.Tick
		for i := 0; i < len(labels); i += step {
			ticks = append(ticks, plot.Tick{Value: float64(i), Label: labels[i]})
		}
		return ticks
	})
}

func glyphFor(s chart.Series) draw.GlyphDrawer {
	switch {
	case s.Symbol == "triangle" && s.SymbolRotate == 180:
		return invertedTriangle{}
	case s.Symbol == "triangle":
		return draw.PyramidGlyph{}
	default:
		return draw.CircleGlyph{}
	}
}

// invertedTriangle is a filled triangle pointing down.
type invertedTriangle struct{}

func (invertedTriangle) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	r := sty.Radius
	c.FillPolygon(sty.Color, []vg.Point{
		{X: pt.X, Y: pt.Y - r},
		{X: pt.X - r, Y: pt.Y + r*0.6},
		{X: pt.X + r, Y: pt.Y + r*0.6},
	})
}

// parseColor reads #rgb, #rrggbb and rgb()/rgba() colors. Anything else is
// drawn black.
func parseColor(s string) color.Color {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.Black
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.Black
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	case strings.HasPrefix(s, "rgb"):
		open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
		if open < 0 || end < open {
			return color.Black
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) < 3 {
			return color.Black
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || n < 0 || n > 255 {
				return color.Black
			}
			rgb[i] = uint8(n)
		}
		return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
	}
	return color.Black
}
