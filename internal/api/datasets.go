package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/httputil"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
)

type importRequest struct {
	Name    string        `json:"name" validate:"required,max=200"`
	Payload chart.Payload `json:"payload"`
}

type importResponse struct {
	DatasetID string `json:"dataset_id"`
	Rows      int    `json:"rows"`
	Anomalies int    `json:"anomalies"`
	Peaks     int    `json:"peaks"`
	Dips      int    `json:"dips"`
	Periods   int    `json:"periods"`
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListDatasets(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, list)
}

func (s *Server) importDataset(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		monitoring.RecordImport(err)
		httputil.WriteDecodeError(w, err)
		return
	}

	p := chart.Enrich(req.Payload, s.cfg.EnrichOptions())
	id, err := s.db.SaveDataset(r.Context(), req.Name, p)
	monitoring.RecordImport(err)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	s.log.Info().Str("dataset_id", id).Str("name", req.Name).Int("rows", len(p.ChartData.Points)).Msg("dataset imported")

	httputil.WriteJSON(w, http.StatusCreated, importResponse{
		DatasetID: id,
		Rows:      len(p.ChartData.Points),
		Anomalies: len(p.AnomaliesTable),
		Peaks:     len(p.Anomalies.Peaks),
		Dips:      len(p.Anomalies.Dips),
		Periods:   len(p.ChartData.Periods),
	})
}

// loadPayload writes the error response itself and reports whether the
// payload was found.
func (s *Server) loadPayload(w http.ResponseWriter, r *http.Request, id string) (chart.Payload, bool) {
	p, err := s.db.LoadPayload(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return p, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return p, false
	}
	return p, true
}

func (s *Server) getDataset(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPayload(w, r, chi.URLParam(r, "datasetID"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, p)
}

func (s *Server) deleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	err := s.db.DeleteDataset(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if n := s.views.RemoveDataset(id); n > 0 {
		s.log.Info().Str("dataset_id", id).Int("views", n).Msg("closed views of deleted dataset")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTactics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPayload(w, r, chi.URLParam(r, "datasetID"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, map[string][]string{
		"tactics": append([]string{chart.AllFilter}, chart.AvailableTactics(p.ChartData.Columns)...),
	})
}

func (s *Server) listSeverities(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPayload(w, r, chi.URLParam(r, "datasetID"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, map[string][]string{
		"severities": chart.AvailableSeverities(p.AnomaliesTable),
	})
}
