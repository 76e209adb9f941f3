package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mmm-workbench/stackexplorer/internal/chart"
)

// ErrNotFound is returned when a dataset id is unknown.
var ErrNotFound = errors.New("dataset not found")

// DatasetSummary is the catalogue entry for a stored dataset.
type DatasetSummary struct {
	DatasetID    string    `json:"dataset_id"`
	Name         string    `json:"name"`
	Columns      []string  `json:"columns"`
	RowCount     int       `json:"row_count"`
	AnomalyCount int       `json:"anomaly_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaveDataset stores an export payload and returns its new id. The whole
// payload is written in one transaction.
func (db *DB) SaveDataset(ctx context.Context, name string, p chart.Payload) (string, error) {
	id := uuid.NewString()
	cols, err := json.Marshal(p.ChartData.Columns)
	if err != nil {
		return "", fmt.Errorf("encode columns: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (dataset_id, name, columns_json, row_count, created_unix) VALUES (?, ?, ?, ?, ?)`,
		id, name, string(cols), len(p.ChartData.Points), time.Now().Unix(),
	); err != nil {
		return "", fmt.Errorf("insert dataset: %w", err)
	}

	if err := insertPoints(ctx, tx, id, p.ChartData.Points); err != nil {
		return "", err
	}
	if err := insertPeriods(ctx, tx, id, p.ChartData.Periods); err != nil {
		return "", err
	}
	if err := insertAnomalies(ctx, tx, id, p.AnomaliesTable); err != nil {
		return "", err
	}
	if err := insertExtrema(ctx, tx, id, "peak", p.Anomalies.Peaks); err != nil {
		return "", err
	}
	if err := insertExtrema(ctx, tx, id, "dip", p.Anomalies.Dips); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit dataset: %w", err)
	}
	return id, nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, id string, points []chart.Point) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_points (dataset_id, ordinal, date, values_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range points {
		vals, err := json.Marshal(valuesOrEmpty(p.Values))
		if err != nil {
			return fmt.Errorf("encode point %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, p.Date, string(vals)); err != nil {
			return fmt.Errorf("insert point %d: %w", i, err)
		}
	}
	return nil
}

func insertPeriods(ctx context.Context, tx *sql.Tx, id string, periods []chart.PeriodAggregate) error {
	for i, p := range periods {
		vals, err := json.Marshal(valuesOrEmpty(p.Values))
		if err != nil {
			return fmt.Errorf("encode period %q: %w", p.Label, err)
		}
		var weeks sql.NullFloat64
		if p.Weeks != nil {
			weeks = sql.NullFloat64{Float64: *p.Weeks, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dataset_periods (dataset_id, ordinal, label, weeks, values_json) VALUES (?, ?, ?, ?, ?)`,
			id, i, p.Label, weeks, string(vals),
		); err != nil {
			return fmt.Errorf("insert period %q: %w", p.Label, err)
		}
	}
	return nil
}

func insertAnomalies(ctx context.Context, tx *sql.Tx, id string, anomalies []chart.Anomaly) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO anomalies (dataset_id, ordinal, date, tactic_prefix, reason, severity, brands_list, contribution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, a := range anomalies {
		if _, err := stmt.ExecContext(ctx, id, i, a.Date, a.TacticPrefix, a.Reason, a.Severity, a.BrandsList, a.Contribution); err != nil {
			return fmt.Errorf("insert anomaly %d: %w", i, err)
		}
	}
	return nil
}

func insertExtrema(ctx context.Context, tx *sql.Tx, id, kind string, marks []chart.Extremum) error {
	for i, m := range marks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extrema (dataset_id, kind, ordinal, date, value) VALUES (?, ?, ?, ?, ?)`,
			id, kind, i, m.Date, m.Value,
		); err != nil {
			return fmt.Errorf("insert %s %d: %w", kind, i, err)
		}
	}
	return nil
}

func valuesOrEmpty(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

// LoadPayload reads back a stored payload with every list in its original
// order.
func (db *DB) LoadPayload(ctx context.Context, id string) (chart.Payload, error) {
	var p chart.Payload
	var cols string
	err := db.QueryRowContext(ctx, `SELECT columns_json FROM datasets WHERE dataset_id = ?`, id).Scan(&cols)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(cols), &p.ChartData.Columns); err != nil {
		return p, fmt.Errorf("decode columns: %w", err)
	}

	if p.ChartData.Points, err = db.loadPoints(ctx, id); err != nil {
		return p, err
	}
	if p.ChartData.Periods, err = db.loadPeriods(ctx, id); err != nil {
		return p, err
	}
	if p.AnomaliesTable, err = db.loadAnomalies(ctx, id); err != nil {
		return p, err
	}
	if p.Anomalies, err = db.loadExtrema(ctx, id); err != nil {
		return p, err
	}
	return p, nil
}

func (db *DB) loadPoints(ctx context.Context, id string) ([]chart.Point, error) {
	rows, err := db.QueryContext(ctx, `SELECT date, values_json FROM dataset_points WHERE dataset_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chart.Point
	for rows.Next() {
		var pt chart.Point
		var vals string
		if err := rows.Scan(&pt.Date, &vals); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vals), &pt.Values); err != nil {
			return nil, fmt.Errorf("decode point values: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (db *DB) loadPeriods(ctx context.Context, id string) ([]chart.PeriodAggregate, error) {
	rows, err := db.QueryContext(ctx, `SELECT label, weeks, values_json FROM dataset_periods WHERE dataset_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chart.PeriodAggregate
	for rows.Next() {
		var agg chart.PeriodAggregate
		var weeks sql.NullFloat64
		var vals string
		if err := rows.Scan(&agg.Label, &weeks, &vals); err != nil {
			return nil, err
		}
		if weeks.Valid {
			w := weeks.Float64
			agg.Weeks = &w
		}
		if err := json.Unmarshal([]byte(vals), &agg.Values); err != nil {
			return nil, fmt.Errorf("decode period %q: %w", agg.Label, err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (db *DB) loadAnomalies(ctx context.Context, id string) ([]chart.Anomaly, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, tactic_prefix, reason, severity, brands_list, contribution
		FROM anomalies WHERE dataset_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chart.Anomaly
	for rows.Next() {
		var a chart.Anomaly
		if err := rows.Scan(&a.Date, &a.TacticPrefix, &a.Reason, &a.Severity, &a.BrandsList, &a.Contribution); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) loadExtrema(ctx context.Context, id string) (chart.Extrema, error) {
	var ex chart.Extrema
	rows, err := db.QueryContext(ctx, `SELECT kind, date, value FROM extrema WHERE dataset_id = ? ORDER BY kind, ordinal`, id)
	if err != nil {
		return ex, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var m chart.Extremum
		if err := rows.Scan(&kind, &m.Date, &m.Value); err != nil {
			return ex, err
		}
		if kind == "peak" {
			ex.Peaks = append(ex.Peaks, m)
		} else {
			ex.Dips = append(ex.Dips, m)
		}
	}
	return ex, rows.Err()
}

// ListDatasets returns every stored dataset, newest first.
func (db *DB) ListDatasets(ctx context.Context) ([]DatasetSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.dataset_id, d.name, d.columns_json, d.row_count, d.created_unix,
		       (SELECT COUNT(*) FROM anomalies a WHERE a.dataset_id = d.dataset_id)
		FROM datasets d
		ORDER BY d.created_unix DESC, d.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DatasetSummary{}
	for rows.Next() {
		var s DatasetSummary
		var cols string
		var created int64
		if err := rows.Scan(&s.DatasetID, &s.Name, &cols, &s.RowCount, &created, &s.AnomalyCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cols), &s.Columns); err != nil {
			return nil, fmt.Errorf("decode columns of %s: %w", s.DatasetID, err)
		}
		s.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and everything stored with it.
func (db *DB) DeleteDataset(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"extrema", "anomalies", "dataset_periods", "dataset_points"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE dataset_id = ?", id); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE dataset_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}
