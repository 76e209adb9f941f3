// Package testutil provides shared test fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TVExport is a small exported payload: three weekly rows out of date order,
// one TV tactic with spend and impressions, a year flag column and a single
// anomaly on the O_UNIT spike.
const TVExport = `{
  "chart_data": {
    "columns": ["date", "O_UNIT", "TV_SPEND", "TV_IMP", "year_flag"],
    "time_series": [
      {"date": "2024-01-15", "O_UNIT": 12, "TV_SPEND": 300, "TV_IMP": 9000, "year_flag": 2},
      {"date": "2024-01-01", "O_UNIT": 10, "TV_SPEND": 100, "TV_IMP": 5000, "year_flag": 1},
      {"date": "2024-01-08", "O_UNIT": 80, "TV_SPEND": 2500, "TV_IMP": 7000, "year_flag": 1}
    ]
  },
  "anomalies_table": [
    {"Anomaly Date": "2024-01-08", "Tactic_Prefix": "TV", "Reason": "Spike", "Severity_Band": "High"}
  ]
}`

// ImportBody wraps TVExport in a dataset import request named name.
func ImportBody(name string) string {
	return fmt.Sprintf(`{"name": %q, "payload": %s}`, name, TVExport)
}

// WriteFile writes content to name inside a fresh temp directory and returns
// the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
