// Package sqlite records every run's enriched rows and series points in a
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	row_count    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS enriched_rows (
	run_id           TEXT NOT NULL REFERENCES runs(run_id),
	dataset          TEXT NOT NULL,
	row_id           INTEGER NOT NULL,
	gender_key       TEXT NOT NULL,
	gender           TEXT NOT NULL,
	person_trait_key TEXT NOT NULL,
	person_trait     TEXT NOT NULL,
	period_key       TEXT NOT NULL,
	period           TEXT NOT NULL,
	participation    REAL,
	public_transport REAL
);
CREATE TABLE IF NOT EXISTS series_points (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	panel  TEXT NOT NULL,
	series TEXT NOT NULL,
	year   INTEGER NOT NULL,
	value  REAL,
	PRIMARY KEY (run_id, panel, series, year)
);`

// Store appends run results to a SQLite database. It implements
// pipeline.Exporter.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Export writes the run, its rows and its series points in one transaction.
// Absent metrics are stored as NULL.
func (s *Store) Export(ctx context.Context, result domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, generated_at, row_count) VALUES (?, ?, ?)`,
		result.RunID, result.GeneratedAt.Format(time.RFC3339), len(result.Rows),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertRows(ctx, tx, result.RunID, result.Rows); err != nil {
		return err
	}
	if err := insertPoints(ctx, tx, result.RunID, result.Chart); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, runID string, rows []domain.DataRow) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO enriched_rows (
		run_id, dataset, row_id, gender_key, gender, person_trait_key, person_trait,
		period_key, period, participation, public_transport
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		if _, err := stmt.ExecContext(ctx,
			runID, r.Dataset, r.ID,
			r.Gender.Key, r.Gender.Title,
			r.PersonTrait.Key, r.PersonTrait.Title,
			r.Period.Key, r.Period.Title,
			r.ParticipationMetric.Ptr(), r.PublicTransportMetric.Ptr(),
		); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", r.ID, r.Dataset, err)
		}
	}
	return nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, runID string, chart domain.ChartData) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO series_points (run_id, panel, series, year, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for _, panel := range chart.Panels {
		for _, s := range panel.Series {
			for _, p := range s.Points {
				if _, err := stmt.ExecContext(ctx, runID, panel.Title, s.Name, int64(p.Year), p.Value.Ptr()); err != nil {
					return fmt.Errorf("insert point %s/%s/%d: %w", panel.Title, s.Name, p.Year, err)
				}
			}
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
