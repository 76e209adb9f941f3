// Package api serves datasets, explorer views and rendered charts over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mmm-workbench/stackexplorer/internal/config"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/explorer"
	"github.com/mmm-workbench/stackexplorer/internal/httputil"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
	"github.com/mmm-workbench/stackexplorer/internal/version"
)

type Server struct {
	db    *db.DB
	views *explorer.Registry
	cfg   *config.ExplorerConfig
	log   zerolog.Logger
}

// NewServer returns a server over database and views. A nil cfg uses the
// defaults.
func NewServer(database *db.DB, views *explorer.Registry, cfg *config.ExplorerConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultExplorerConfig()
	}
	return &Server{
		db:    database,
		views: views,
		cfg:   cfg,
		log:   monitoring.Component("api"),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, status and duration, and counts the
// request against its route pattern.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		monitoring.RecordHTTPRequest(route, lrw.statusCode)

		l := monitoring.Logger()
		ev := l.Info()
		switch {
		case lrw.statusCode >= 500:
			ev = l.Error()
		case lrw.statusCode >= 400:
			ev = l.Warn()
		}
		ev.Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("route", route).
			Int("status", lrw.statusCode).
			Float64("ms", float64(time.Since(start).Nanoseconds())/1e6).
			Msg("http request")
	})
}

// Handler returns the full router: the JSON API under /api, metrics and the
// database debug pages.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	if s.db != nil {
		admin := http.NewServeMux()
		if err := s.db.AttachAdminRoutes(admin); err != nil {
			s.log.Error().Err(err).Msg("admin routes unavailable")
		} else {
			r.Handle("/debug/*", admin)
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}

		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.listDatasets)
			r.Post("/", s.importDataset)
			r.Route("/{datasetID}", func(r chi.Router) {
				r.Get("/", s.getDataset)
				r.Delete("/", s.deleteDataset)
				r.Get("/tactics", s.listTactics)
				r.Get("/severities", s.listSeverities)
			})
		})

		r.Route("/views", func(r chi.Router) {
			r.Get("/", s.listViews)
			r.Post("/", s.createView)
			r.Route("/{viewID}", func(r chi.Router) {
				r.Get("/", s.getView)
				r.Patch("/", s.patchView)
				r.Delete("/", s.deleteView)
				r.Post("/play", s.playView)
				r.Post("/pause", s.pauseView)
				r.Post("/scrub", s.scrubView)
				r.Get("/chart", s.chartJSON)
				r.Get("/chart/echarts", s.chartECharts)
				r.Get("/chart.html", s.chartHTML)
				r.Get("/chart.png", s.chartPNG)
				r.Get("/periods", s.periods)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.MethodNotAllowed(w)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"git_sha": version.GitSHA,
		"views":   s.views.Len(),
	})
}
