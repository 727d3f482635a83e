// Package audit keeps a SQLite log of edit runs: what was read, what was
// written, and how each field was rescaled.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Run is one recorded edit.
type Run struct {
	ID        int64
	At        time.Time
	Input     string
	Output    string
	Mode      string
	MinMU     float64
	Spots     int
	Discarded int
	Fields    []Field
}

// Field holds the before and after values of one rescaled field.
type Field struct {
	Number         int
	Name           string
	ScaleFactor    float64
	MetersetBefore float64
	MetersetAfter  float64
	DoseBefore     float64
	DoseAfter      float64
	FinalWeight    float64 // final cumulative meterset weight after the edit
}

// Store appends runs to a SQLite database.
type Store struct {
	db *sql.DB
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	input      TEXT NOT NULL,
	output     TEXT NOT NULL,
	mode       TEXT NOT NULL,
	min_mu     REAL NOT NULL,
	spots      INTEGER NOT NULL,
	discarded  INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS run_fields (
	run_id          INTEGER NOT NULL REFERENCES runs(id),
	number          INTEGER NOT NULL,
	name            TEXT NOT NULL,
	scale_factor    REAL NOT NULL,
	meterset_before REAL NOT NULL,
	meterset_after  REAL NOT NULL,
	dose_before     REAL NOT NULL,
	dose_after      REAL NOT NULL,
	final_weight    REAL NOT NULL,
	PRIMARY KEY (run_id, number)
)`}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("audit database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create audit tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores r and its fields in one transaction and returns the run id.
func (s *Store) Record(ctx context.Context, r Run) (id int64, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if r.At.IsZero() {
		r.At = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (at, input, output, mode, min_mu, spots, discarded) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.At.UTC().Format(time.RFC3339), r.Input, r.Output, r.Mode, r.MinMU, r.Spots, r.Discarded)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	for _, f := range r.Fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_fields (run_id, number, name, scale_factor, meterset_before, meterset_after, dose_before, dose_after, final_weight)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, f.Number, f.Name, f.ScaleFactor, f.MetersetBefore, f.MetersetAfter, f.DoseBefore, f.DoseAfter, f.FinalWeight); err != nil {
			return 0, fmt.Errorf("insert field %d: %w", f.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs returns every recorded run, oldest first, with its fields.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, input, output, mode, min_mu, spots, discarded FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var at string
		if err := rows.Scan(&r.ID, &at, &r.Input, &r.Output, &r.Mode, &r.MinMU, &r.Spots, &r.Discarded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.At, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("run %d: bad timestamp %q: %w", r.ID, at, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		fields, err := s.fields(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Fields = fields
	}
	return runs, nil
}

func (s *Store) fields(ctx context.Context, runID int64) ([]Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, name, scale_factor, meterset_before, meterset_after, dose_before, dose_after, final_weight
		 FROM run_fields WHERE run_id = ? ORDER BY number`, runID)
	if err != nil {
		return nil, fmt.Errorf("select fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.Number, &f.Name, &f.ScaleFactor, &f.MetersetBefore, &f.MetersetAfter,
			&f.DoseBefore, &f.DoseAfter, &f.FinalWeight); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
