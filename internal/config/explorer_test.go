package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 300*time.Millisecond, cfg.GetPlaybackInterval())
	assert.Equal(t, chart.DefaultPalette, cfg.GetPalette())
	assert.Equal(t, chart.DefaultReasonColors, cfg.GetReasonColors())
	assert.Equal(t, chart.UnitColumn, cfg.GetExtremaColumn())
	assert.Equal(t, 99.0, cfg.GetPeakPercentile())
	assert.Equal(t, 1.0, cfg.GetDipPercentile())
	assert.Empty(t, cfg.PeriodFlags)
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, "year_flag", cfg.GetPeriodFlagColumn())
	assert.Equal(t, []chart.PeriodFlag{
		{Flag: 0, Label: "Other"},
		{Flag: 1, Label: "PY"},
		{Flag: 2, Label: "LY"},
	}, cfg.PeriodFlags)
	assert.Len(t, cfg.GetPalette(), 8)
	assert.Equal(t, "#94a3b8", cfg.GetReasonColors()["Other"])
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "explorer.yaml", `
listen: ":9999"
playback_interval: 1s
palette: ["#000000", "#ffffff"]
peak_percentile: 95
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, time.Second, cfg.GetPlaybackInterval())
	assert.Equal(t, []string{"#000000", "#ffffff"}, cfg.GetPalette())
	assert.Equal(t, 95.0, cfg.GetPeakPercentile())
	assert.Equal(t, ":9090", cfg.GRPCListen, "unset keys keep their defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "explorer.yaml", "listen: \":9999\"\n")
	t.Setenv("STACKX_LISTEN", ":7000")
	t.Setenv("STACKX_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STACKX_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"extension", "explorer.json", `{}`},
		{"interval", "a.yaml", "playback_interval: soon\n"},
		{"negative interval", "a.yaml", "playback_interval: -1s\n"},
		{"peak range", "a.yaml", "peak_percentile: 120\n"},
		{"dip above peak", "a.yaml", "peak_percentile: 50\ndip_percentile: 60\n"},
		{"palette", "a.yaml", "palette: [blue]\n"},
		{"reason color", "a.yaml", "reason_colors:\n  Spike: nope\n"},
		{"rate limit", "a.yaml", "rate_limit: -5\n"},
		{"log format", "a.yaml", "log_format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGettersFallBack(t *testing.T) {
	cfg := &ExplorerConfig{PlaybackInterval: "garbage"}
	assert.Equal(t, 300*time.Millisecond, cfg.GetPlaybackInterval())
	assert.Equal(t, chart.DefaultPalette, cfg.GetPalette())
	assert.Equal(t, chart.YearFlagColumn, cfg.GetPeriodFlagColumn())

	opts := cfg.ComposeOptions()
	assert.Equal(t, chart.DefaultPalette, opts.Palette)
	assert.Equal(t, chart.DefaultReasonColors, opts.ReasonColors)
}

func TestIsColor(t *testing.T) {
	for _, c := range []string{"#fff", "#2563EB", "rgb(20, 184, 166)", "rgba(0,0,0,0.5)"} {
		assert.True(t, isColor(c), c)
	}
	for _, c := range []string{"", "blue", "#12345", "#gggggg", "rgb(1,2,3"} {
		assert.False(t, isColor(c), c)
	}
}
