package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
)

// DefaultConfigPath is the path to the canonical explorer defaults file.
const DefaultConfigPath = "config/explorer.defaults.yaml"

// EnvPrefix prefixes every environment override, e.g. STACKX_LISTEN.
const EnvPrefix = "STACKX_"

// ExplorerConfig holds the service settings. Zero values fall back to the
// defaults returned by the Get* methods, so partial files are safe.
type ExplorerConfig struct {
	Listen     string `koanf:"listen"`
	GRPCListen string `koanf:"grpc_listen"`
	DBPath     string `koanf:"db_path"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// PlaybackInterval is a duration string like "300ms".
	PlaybackInterval string `koanf:"playback_interval"`

	Palette      []string          `koanf:"palette"`
	ReasonColors map[string]string `koanf:"reason_colors"`

	ExtremaColumn  string  `koanf:"extrema_column"`
	PeakPercentile float64 `koanf:"peak_percentile"`
	DipPercentile  float64 `koanf:"dip_percentile"`

	PeriodFlagColumn string             `koanf:"period_flag_column"`
	PeriodFlags      []chart.PeriodFlag `koanf:"period_flags"`

	EChartsAssetsHost string   `koanf:"echarts_assets_host"`
	CORSOrigins       []string `koanf:"cors_origins"`
	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// DefaultExplorerConfig returns the built-in defaults.
func DefaultExplorerConfig() *ExplorerConfig {
	return &ExplorerConfig{
		Listen:            ":8080",
		GRPCListen:        ":9090",
		DBPath:            "stackexplorer.db",
		LogLevel:          "info",
		LogFormat:         "json",
		PlaybackInterval:  "300ms",
		Palette:           append([]string(nil), chart.DefaultPalette...),
		ReasonColors:      copyColors(chart.DefaultReasonColors),
		ExtremaColumn:     chart.DefaultExtremaColumn,
		PeakPercentile:    chart.DefaultPeakPercentile,
		DipPercentile:     chart.DefaultDipPercentile,
		PeriodFlagColumn:  chart.YearFlagColumn,
		EChartsAssetsHost: "https://go-echarts.github.io/go-echarts-assets/assets/",
		CORSOrigins:       []string{"*"},
		RateLimit:         600,
	}
}

// sliceKeys are split on commas when they arrive as environment strings.
var sliceKeys = []string{"palette", "cors_origins"}

// Load layers the defaults, the YAML file at path (skipped when empty) and
// STACKX_ environment variables, then validates the result.
func Load(path string) (*ExplorerConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultExplorerConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		cleanPath := filepath.Clean(path)
		if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
			return nil, fmt.Errorf("config file must have .yaml extension, got %q", ext)
		}
		fileInfo, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		const maxFileSize = 1 * 1024 * 1024 // 1MB
		if fileInfo.Size() > maxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
		}
		if err := k.Load(file.Provider(cleanPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", cleanPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitSliceKeys(k); err != nil {
		return nil, err
	}

	cfg := &ExplorerConfig{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *ExplorerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// envKey maps STACKX_PEAK_PERCENTILE to peak_percentile.
func envKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *ExplorerConfig) Validate() error {
	if c.PlaybackInterval != "" {
		d, err := time.ParseDuration(c.PlaybackInterval)
		if err != nil {
			return fmt.Errorf("invalid playback_interval '%s': %w", c.PlaybackInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("playback_interval must be positive, got %s", c.PlaybackInterval)
		}
	}
	if c.PeakPercentile < 0 || c.PeakPercentile > 100 {
		return fmt.Errorf("peak_percentile must be between 0 and 100, got %g", c.PeakPercentile)
	}
	if c.DipPercentile < 0 || c.DipPercentile > 100 {
		return fmt.Errorf("dip_percentile must be between 0 and 100, got %g", c.DipPercentile)
	}
	if c.PeakPercentile != 0 && c.DipPercentile != 0 && c.DipPercentile >= c.PeakPercentile {
		return fmt.Errorf("dip_percentile (%g) must be below peak_percentile (%g)", c.DipPercentile, c.PeakPercentile)
	}
	for _, col := range c.Palette {
		if !isColor(col) {
			return fmt.Errorf("palette entry %q is not a CSS color", col)
		}
	}
	for reason, col := range c.ReasonColors {
		if !isColor(col) {
			return fmt.Errorf("reason_colors[%s] %q is not a CSS color", reason, col)
		}
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %d", c.RateLimit)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// isColor accepts #rgb, #rrggbb and rgb()/rgba() CSS colors.
func isColor(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		return strings.HasSuffix(s, ")")
	}
	if len(s) != 4 && len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func copyColors(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetPlaybackInterval parses and returns the PlaybackInterval.
func (c *ExplorerConfig) GetPlaybackInterval() time.Duration {
	if c.PlaybackInterval == "" {
		return 300 * time.Millisecond // default
	}
	d, err := time.ParseDuration(c.PlaybackInterval)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond // default on parse error
	}
	return d
}

// GetPalette returns the series palette or the default.
func (c *ExplorerConfig) GetPalette() []string {
	if len(c.Palette) == 0 {
		return chart.DefaultPalette
	}
	return c.Palette
}

// GetReasonColors returns the anomaly reason colors or the defaults.
func (c *ExplorerConfig) GetReasonColors() map[string]string {
	if len(c.ReasonColors) == 0 {
		return chart.DefaultReasonColors
	}
	return c.ReasonColors
}

// GetExtremaColumn returns the column scanned for peaks and dips.
func (c *ExplorerConfig) GetExtremaColumn() string {
	if c.ExtremaColumn == "" {
		return chart.DefaultExtremaColumn
	}
	return c.ExtremaColumn
}

// GetPeakPercentile returns the peak threshold percentile or the default.
func (c *ExplorerConfig) GetPeakPercentile() float64 {
	if c.PeakPercentile == 0 {
		return chart.DefaultPeakPercentile
	}
	return c.PeakPercentile
}

// GetDipPercentile returns the dip threshold percentile or the default.
func (c *ExplorerConfig) GetDipPercentile() float64 {
	if c.DipPercentile == 0 {
		return chart.DefaultDipPercentile
	}
	return c.DipPercentile
}

// GetPeriodFlagColumn returns the column that assigns rows to periods.
func (c *ExplorerConfig) GetPeriodFlagColumn() string {
	if c.PeriodFlagColumn == "" {
		return chart.YearFlagColumn
	}
	return c.PeriodFlagColumn
}

// ComposeOptions returns the chart options these settings describe.
func (c *ExplorerConfig) ComposeOptions() chart.ComposeOptions {
	return chart.ComposeOptions{Palette: c.GetPalette(), ReasonColors: c.GetReasonColors()}
}

// EnrichOptions returns how imports derive missing extrema and period totals.
func (c *ExplorerConfig) EnrichOptions() chart.EnrichOptions {
	return chart.EnrichOptions{
		ExtremaColumn:  c.GetExtremaColumn(),
		PeakPercentile: c.GetPeakPercentile(),
		DipPercentile:  c.GetDipPercentile(),
		FlagColumn:     c.GetPeriodFlagColumn(),
		PeriodFlags:    c.PeriodFlags,
	}
}
