package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/httputil"
	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
)

func handleImport(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	name := fs.String("name", "", "Dataset name (defaults to the file name or URL)")
	url := fs.String("url", "", "Fetch the payload from this URL instead of a file")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout for --url fetches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var source string
	switch {
	case *url != "" && fs.NArg() > 0:
		return errors.New("give either --url or a file, not both")
	case *url != "":
		source = *url
	case fs.NArg() == 1:
		source = fs.Arg(0)
	default:
		return errors.New("usage: stackexplorer import [--name NAME] (--url URL | FILE)")
	}
	if *name == "" {
		*name = defaultDatasetName(source)
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	var p chart.Payload
	if *url != "" {
		client := httputil.NewStandardClient(&http.Client{Timeout: *timeout})
		err = httputil.GetJSON(ctx, client, *url, &p)
	} else {
		p, err = readPayloadFile(source)
	}
	monitoring.RecordImport(err)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	p = chart.Enrich(p, cfg.EnrichOptions())

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	id, err := database.SaveDataset(context.Background(), *name, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Imported %q as %s (%d rows, %d anomalies, %d peaks, %d dips, %d periods)\n",
		*name, id, len(p.ChartData.Points), len(p.AnomaliesTable),
		len(p.Anomalies.Peaks), len(p.Anomalies.Dips), len(p.ChartData.Periods))
	return nil
}

// readPayloadFile decodes an exported payload from a JSON file.
func readPayloadFile(path string) (chart.Payload, error) {
	var p chart.Payload
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

func defaultDatasetName(source string) string {
	if strings.Contains(source, "://") {
		return source
	}
	return strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
}
