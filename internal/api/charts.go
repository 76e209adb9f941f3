package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/explorer"
	"github.com/mmm-workbench/stackexplorer/internal/httputil"
	"github.com/mmm-workbench/stackexplorer/internal/render"
	"github.com/mmm-workbench/stackexplorer/internal/security"
	"github.com/mmm-workbench/stackexplorer/internal/units"
)

// Bounds for the ?w= and ?h= PNG size parameters, in inches.
const (
	minImageInches = 2
	maxImageInches = 40
)

func (s *Server) chartJSON(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, v.Chart())
}

func (s *Server) chartECharts(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, render.EChartsOptions(v.Chart()))
}

func (s *Server) chartHTML(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		title = v.Selection().TacticFilter
	}

	var buf bytes.Buffer
	err := render.EChartsHTML(&buf, v.Chart(), render.PageOptions{
		Title:      title,
		AssetsHost: s.cfg.EChartsAssetsHost,
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	attachment(w, r, v, ".html")
	w.Write(buf.Bytes())
}

func (s *Server) chartPNG(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	opts := render.ImageOptions{Title: r.URL.Query().Get("title")}
	var err error
	if opts.Width, err = inchesParam(r, "w"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if opts.Height, err = inchesParam(r, "h"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	err = render.PNG(&buf, v.Chart(), opts)
	if errors.Is(err, render.ErrEmptyChart) {
		httputil.UnprocessableEntity(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	attachment(w, r, v, ".png")
	w.Write(buf.Bytes())
}

// attachment marks the response as a file download when ?download is set.
func attachment(w http.ResponseWriter, r *http.Request, v *explorer.View, ext string) {
	if r.URL.Query().Get("download") == "" {
		return
	}
	name := security.SanitizeFilename(v.DatasetID() + "_" + v.Selection().TacticFilter)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+ext))
}

// inchesParam reads an optional size in inches. Zero means the default.
func inchesParam(r *http.Request, name string) (vg.Length, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < minImageInches || f > maxImageInches {
		return 0, errors.New("'" + name + "' must be a number of inches between 2 and 40")
	}
	return vg.Length(f) * vg.Inch, nil
}

type periodCell struct {
	Column    string  `json:"column"`
	Total     float64 `json:"total"`
	Formatted string  `json:"formatted"`
}

type periodRowResponse struct {
	Label  string       `json:"label"`
	Weeks  float64      `json:"weeks"`
	Totals []periodCell `json:"totals"`
}

func (s *Server) periods(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	scale := r.URL.Query().Get("scale")
	if scale == "" {
		scale = units.Raw
	}
	if !units.IsValid(scale) {
		httputil.BadRequest(w, "invalid 'scale'. Must be one of: "+units.GetValidScalesString())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"scale":   scale,
		"periods": scalePeriods(v.Periods(), scale),
	})
}

func scalePeriods(rows []chart.PeriodRow, scale string) []periodRowResponse {
	out := make([]periodRowResponse, len(rows))
	for i, row := range rows {
		resp := periodRowResponse{Label: row.Label, Weeks: row.Weeks, Totals: make([]periodCell, len(row.Totals))}
		for j, t := range row.Totals {
			v := units.ConvertValue(t.Total, scale)
			resp.Totals[j] = periodCell{Column: t.Column, Total: v, Formatted: units.FormatTotal(v)}
		}
		out[i] = resp
	}
	return out
}
