package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChartBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackx_chart_builds_total",
			Help: "Chart specs composed, by chart type",
		},
		[]string{"chart_type"},
	)

	ChartBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stackx_chart_build_duration_seconds",
			Help:    "Time spent composing a chart spec",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"chart_type"},
	)

	OverlaySeries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackx_overlay_series_total",
			Help: "Overlay series emitted, by overlay kind (extrema, anomaly)",
		},
		[]string{"kind"},
	)

	PlaybackTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stackx_playback_ticks_total",
			Help: "Playback timer ticks applied",
		},
	)

	ActiveViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stackx_active_views",
			Help: "Explorer views currently open",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackx_http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		},
		[]string{"route", "status"},
	)

	DatasetImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackx_dataset_imports_total",
			Help: "Dataset imports, by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordChartBuild records one composed chart.
func RecordChartBuild(chartType string, d time.Duration, extrema, anomalies int) {
	ChartBuilds.WithLabelValues(chartType).Inc()
	ChartBuildDuration.WithLabelValues(chartType).Observe(d.Seconds())
	if extrema > 0 {
		OverlaySeries.WithLabelValues("extrema").Add(float64(extrema))
	}
	if anomalies > 0 {
		OverlaySeries.WithLabelValues("anomaly").Add(float64(anomalies))
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordImport records a dataset import outcome.
func RecordImport(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DatasetImports.WithLabelValues(outcome).Inc()
}
