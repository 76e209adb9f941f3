package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gonum.org/v1/plot/vg"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
	"github.com/mmm-workbench/stackexplorer/internal/db"
	"github.com/mmm-workbench/stackexplorer/internal/render"
	"github.com/mmm-workbench/stackexplorer/internal/rpc"
	"github.com/mmm-workbench/stackexplorer/internal/security"
)

type renderFlags struct {
	datasetID string
	file      string
	format    string
	out       string
	title     string

	tactic       string
	severity     string
	chartType    string
	columns      string
	from, to     string
	index        int
	hideAnomaly  bool
	widthInches  float64
	heightInches float64
}

func handleRender(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	var rf renderFlags
	fs.StringVar(&rf.datasetID, "dataset", "", "Stored dataset id")
	fs.StringVar(&rf.file, "file", "", "Exported payload JSON file")
	fs.StringVar(&rf.format, "format", "html", "Output format: html, png or json")
	fs.StringVar(&rf.out, "out", "", "Output file (default stdout)")
	fs.StringVar(&rf.title, "title", "", "Chart title")
	fs.StringVar(&rf.tactic, "tactic", chart.AllFilter, "Tactic filter")
	fs.StringVar(&rf.severity, "severity", chart.AllFilter, "Severity filter")
	fs.StringVar(&rf.chartType, "type", "", "Chart type: line, dualAxis or scatter (default from the selected columns)")
	fs.StringVar(&rf.columns, "columns", "", "Comma-separated columns (default picked from the tactic filter)")
	fs.StringVar(&rf.from, "from", "", "First visible day (YYYY-MM-DD)")
	fs.StringVar(&rf.to, "to", "", "Last visible day (YYYY-MM-DD)")
	fs.IntVar(&rf.index, "index", 0, "Playback cursor: show only the first N visible points (0 shows all)")
	fs.BoolVar(&rf.hideAnomaly, "hide-anomalies", false, "Hide anomaly and extrema markers")
	fs.Float64Var(&rf.widthInches, "width", 14, "PNG width in inches")
	fs.Float64Var(&rf.heightInches, "height", 6, "PNG height in inches")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (rf.datasetID == "") == (rf.file == "") {
		return errors.New("exactly one of --dataset or --file is required")
	}
	if rf.index < 0 {
		return errors.New("--index must not be negative")
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}

	req := rpc.BuildRequest{
		DatasetID: rf.datasetID,
		Selection: rf.selection(),
		Playback:  &chart.PlaybackState{Index: rf.index},
	}
	var store rpc.PayloadStore
	if rf.datasetID != "" {
		database, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		store = database
	} else {
		p, err := readPayloadFile(rf.file)
		if err != nil {
			return err
		}
		req.Payload = &p
	}

	resp, err := rpc.NewChartService(store, cfg).Build(context.Background(), req)
	if err != nil {
		return err
	}

	w := stdout
	if rf.out != "" {
		if err := security.ValidateExportPath(rf.out); err != nil {
			return err
		}
		f, err := os.Create(filepath.Clean(rf.out))
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch rf.format {
	case "html":
		return render.EChartsHTML(w, resp.Spec, render.PageOptions{Title: rf.title, AssetsHost: cfg.EChartsAssetsHost})
	case "png":
		return render.PNG(w, resp.Spec, render.ImageOptions{
			Title:  rf.title,
			Width:  vg.Length(rf.widthInches) * vg.Inch,
			Height: vg.Length(rf.heightInches) * vg.Inch,
		})
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Spec)
	default:
		return fmt.Errorf("unknown format %q (want html, png or json)", rf.format)
	}
}

// selection returns nil when no selection flag was set so the chart service
// picks its defaults, including the chart type implied by the columns.
func (rf renderFlags) selection() *chart.Selection {
	if rf.tactic == chart.AllFilter && rf.severity == chart.AllFilter && rf.chartType == "" &&
		rf.columns == "" && rf.from == "" && rf.to == "" && !rf.hideAnomaly {
		return nil
	}
	sel := chart.DefaultSelection()
	sel.TacticFilter = rf.tactic
	sel.SeverityFilter = rf.severity
	// Empty lets the chart service pick the type implied by the columns.
	sel.ChartType = chart.ChartType(rf.chartType)
	if rf.columns != "" {
		for _, c := range strings.Split(rf.columns, ",") {
			if c = strings.TrimSpace(c); c != "" {
				sel.Columns = append(sel.Columns, c)
			}
		}
	}
	sel.DateRange = chart.DateRange{Start: rf.from, End: rf.to}
	sel.ShowAnomalies = !rf.hideAnomaly
	return &sel
}
