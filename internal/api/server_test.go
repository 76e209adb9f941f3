package api

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/config"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/explorer"
	"github.com/mmm-workbench/stackexplorer/internal/testutil"
	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

var importBody = testutil.ImportBody("tv export")

type testEnv struct {
	srv   *httptest.Server
	clock *timeutil.MockClock
	views *explorer.Registry
}

func newTestEnv(t *testing.T, mutate func(*config.ExplorerConfig)) *testEnv {
	t.Helper()
	database, err := db.NewDB(cloneAPITestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultExplorerConfig()
	cfg.PeriodFlags = []chart.PeriodFlag{{Flag: 1, Label: "PY"}, {Flag: 2, Label: "LY"}}
	if mutate != nil {
		mutate(cfg)
	}

	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	views := explorer.NewRegistry(explorer.Options{Clock: clock, PlaybackInterval: cfg.GetPlaybackInterval(), Compose: cfg.ComposeOptions()})
	t.Cleanup(views.Close)

	srv := httptest.NewServer(NewServer(database, views, cfg).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, clock: clock, views: views}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (e *testEnv) importDataset(t *testing.T) string {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/datasets", importBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out importResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.DatasetID
}

func (e *testEnv) createView(t *testing.T, datasetID string) explorer.Snapshot {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/views", `{"dataset_id":"`+datasetID+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var snap explorer.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap
}

func TestImportEnrichesAndLists(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, raw := env.do(t, http.MethodPost, "/api/datasets", importBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var out importResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 3, out.Rows)
	assert.Equal(t, 1, out.Anomalies)
	assert.Equal(t, 2, out.Periods, "periods derived from year_flag")
	assert.Equal(t, 1, out.Peaks, "extrema derived from O_UNIT")

	resp, raw = env.do(t, http.MethodGet, "/api/datasets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []db.DatasetSummary
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "tv export", list[0].Name)

	resp, raw = env.do(t, http.MethodGet, "/api/datasets/"+out.DatasetID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p chart.Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Len(t, p.ChartData.Points, 3)
	assert.Equal(t, "2024-01-15", p.ChartData.Points[0].Date, "stored order is kept")
	require.Len(t, p.ChartData.Periods, 2)
	assert.Equal(t, "PY", p.ChartData.Periods[0].Label)
}

func TestImportValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, raw := env.do(t, http.MethodPost, "/api/datasets", `{"payload":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(raw), "name is required")

	resp, _ = env.do(t, http.MethodPost, "/api/datasets", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTacticsAndSeverities(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.importDataset(t)

	_, raw := env.do(t, http.MethodGet, "/api/datasets/"+id+"/tactics", "")
	assert.JSONEq(t, `{"tactics":["All","TV"]}`, string(raw))

	_, raw = env.do(t, http.MethodGet, "/api/datasets/"+id+"/severities", "")
	assert.JSONEq(t, `{"severities":["All","High"]}`, string(raw))

	resp, _ := env.do(t, http.MethodGet, "/api/datasets/nope/tactics", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.importDataset(t)

	snap := env.createView(t, id)
	assert.Equal(t, id, snap.DatasetID)
	assert.Equal(t, []string{"TV_SPEND", "TV_IMP"}, snap.Selection.Columns, "first anomaly's tactic drives the default")
	assert.Equal(t, 3, snap.Length)

	resp, raw := env.do(t, http.MethodPatch, "/api/views/"+snap.ID,
		`{"chart_type":"dualAxis","date_range":{"start":"2024-01-05"},"show_anomalies":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var patched explorer.Snapshot
	require.NoError(t, json.Unmarshal(raw, &patched))
	assert.Equal(t, chart.ChartDualAxis, patched.Selection.ChartType)
	assert.False(t, patched.Selection.ShowAnomalies)
	assert.Equal(t, 2, patched.Length, "date range shortens playback")

	resp, _ = env.do(t, http.MethodPatch, "/api/views/"+snap.ID, `{"chart_type":"pie"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, raw = env.do(t, http.MethodPost, "/api/views/"+snap.ID+"/scrub", `{"index":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &patched))
	assert.Equal(t, chart.PlaybackState{Index: 1}, patched.Playback)

	resp, _ = env.do(t, http.MethodPost, "/api/views/"+snap.ID+"/scrub", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, raw = env.do(t, http.MethodPost, "/api/views/"+snap.ID+"/play", "")
	require.NoError(t, json.Unmarshal(raw, &patched))
	assert.True(t, patched.Playback.Playing)

	_, raw = env.do(t, http.MethodPost, "/api/views/"+snap.ID+"/pause", "")
	require.NoError(t, json.Unmarshal(raw, &patched))
	assert.False(t, patched.Playback.Playing)

	_, raw = env.do(t, http.MethodGet, "/api/views", "")
	var list []explorer.Snapshot
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)

	resp, _ = env.do(t, http.MethodDelete, "/api/views/"+snap.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/views/"+snap.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateViewUnknownDataset(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/views", `{"dataset_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/views", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDeleteDatasetClosesViews(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.importDataset(t)
	env.createView(t, id)
	require.Equal(t, 1, env.views.Len())

	resp, _ := env.do(t, http.MethodDelete, "/api/datasets/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, env.views.Len())

	resp, _ = env.do(t, http.MethodDelete, "/api/datasets/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChartEndpoints(t *testing.T) {
	env := newTestEnv(t, func(c *config.ExplorerConfig) { c.EChartsAssetsHost = "/static/" })
	snap := env.createView(t, env.importDataset(t))
	base := "/api/views/" + snap.ID

	resp, raw := env.do(t, http.MethodGet, base+"/chart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var spec chart.Spec
	require.NoError(t, json.Unmarshal(raw, &spec))
	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15"}, spec.Labels)
	require.NotEmpty(t, spec.Series)
	assert.Equal(t, "TV_SPEND", spec.Series[0].Label)

	resp, raw = env.do(t, http.MethodGet, base+"/chart/echarts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &opts))
	assert.Contains(t, opts, "series")

	resp, raw = env.do(t, http.MethodGet, base+"/chart.html?title=TV", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, string(raw), "/static/echarts.min.js")
	assert.Empty(t, resp.Header.Get("Content-Disposition"))

	resp, _ = env.do(t, http.MethodGet, base+"/chart.html?download=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="`+snap.DatasetID+`_All.html"`, resp.Header.Get("Content-Disposition"))

	resp, raw = env.do(t, http.MethodGet, base+"/chart.png?w=6&h=4", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 576, img.Bounds().Dx())

	resp, _ = env.do(t, http.MethodGet, base+"/chart.png?w=1000", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPeriodsScale(t *testing.T) {
	env := newTestEnv(t, nil)
	snap := env.createView(t, env.importDataset(t))

	resp, raw := env.do(t, http.MethodGet, "/api/views/"+snap.ID+"/periods?scale=thousands", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var out struct {
		Scale   string              `json:"scale"`
		Periods []periodRowResponse `json:"periods"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "thousands", out.Scale)
	require.Len(t, out.Periods, 2)
	py := out.Periods[0]
	assert.Equal(t, "PY", py.Label)
	assert.Equal(t, 1.0, py.Weeks)
	require.Len(t, py.Totals, 2)
	assert.Equal(t, "TV_SPEND", py.Totals[0].Column)
	assert.InDelta(t, 2.6, py.Totals[0].Total, 1e-9)
	assert.Equal(t, "2.6", py.Totals[0].Formatted)

	resp, _ = env.do(t, http.MethodGet, "/api/views/"+snap.ID+"/periods?scale=furlongs", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthMetricsAndDebug(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, raw := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"status":"ok"`)

	env.do(t, http.MethodGet, "/api/datasets", "")
	resp, raw = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `stackx_http_requests_total{route="/api/datasets`)

	resp, _ = env.do(t, http.MethodGet, "/debug/backup", "")
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), "no route")
}

func TestCORSAndRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.ExplorerConfig) {
		c.CORSOrigins = []string{"https://workbench.example"}
		c.RateLimit = 2
	})

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/datasets", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://workbench.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://workbench.example", resp.Header.Get("Access-Control-Allow-Origin"))

	var last int
	for i := 0; i < 3; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/datasets", "")
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
