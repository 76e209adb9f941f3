package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/explorer"
	"github.com/mmm-workbench/stackexplorer/internal/httputil"
)

type createViewRequest struct {
	DatasetID string `json:"dataset_id" validate:"required"`
}

// patchViewRequest changes a view's selection. Absent fields are left alone.
// The tactic filter is applied first since it replaces the column selection.
type patchViewRequest struct {
	TacticFilter   *string          `json:"tactic_filter,omitempty" validate:"omitempty,max=100"`
	SeverityFilter *string          `json:"severity_filter,omitempty" validate:"omitempty,max=100"`
	ChartType      *string          `json:"chart_type,omitempty" validate:"omitempty,oneof=line dualAxis scatter"`
	DateRange      *chart.DateRange `json:"date_range,omitempty"`
	Columns        []string         `json:"columns,omitempty" validate:"omitempty,dive,required"`
	ToggleColumn   *string          `json:"toggle_column,omitempty" validate:"omitempty,min=1"`
	ShowAnomalies  *bool            `json:"show_anomalies,omitempty"`
}

type scrubRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*explorer.View, bool) {
	v, err := s.views.Get(chi.URLParam(r, "viewID"))
	if errors.Is(err, explorer.ErrViewNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return v, true
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.views.List())
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, err)
		return
	}
	p, ok := s.loadPayload(w, r, req.DatasetID)
	if !ok {
		return
	}
	v := s.views.Create(explorer.Input{
		DatasetID: req.DatasetID,
		Dataset:   p.ChartData,
		Anomalies: p.AnomaliesTable,
		Extrema:   p.Anomalies,
	})
	httputil.WriteJSON(w, http.StatusCreated, v.Snapshot())
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, v.Snapshot())
}

func (s *Server) patchView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var req patchViewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, err)
		return
	}

	if req.TacticFilter != nil {
		v.SetTacticFilter(*req.TacticFilter)
	}
	if req.SeverityFilter != nil {
		v.SetSeverityFilter(*req.SeverityFilter)
	}
	if req.ChartType != nil {
		if err := v.SetChartType(chart.ChartType(*req.ChartType)); err != nil {
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
	}
	if req.DateRange != nil {
		v.SetDateRange(*req.DateRange)
	}
	if req.Columns != nil {
		v.SetColumns(req.Columns)
	}
	if req.ToggleColumn != nil {
		v.ToggleColumn(*req.ToggleColumn)
	}
	if req.ShowAnomalies != nil {
		v.SetShowAnomalies(*req.ShowAnomalies)
	}
	httputil.WriteJSONOK(w, v.Snapshot())
}

func (s *Server) deleteView(w http.ResponseWriter, r *http.Request) {
	err := s.views.Remove(chi.URLParam(r, "viewID"))
	if errors.Is(err, explorer.ErrViewNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) playView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	v.Play()
	httputil.WriteJSONOK(w, v.Snapshot())
}

func (s *Server) pauseView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	v.Pause()
	httputil.WriteJSONOK(w, v.Snapshot())
}

func (s *Server) scrubView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var req scrubRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDecodeError(w, err)
		return
	}
	v.Scrub(*req.Index)
	httputil.WriteJSONOK(w, v.Snapshot())
}
