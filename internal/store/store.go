// Package store persists result rows in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var ErrEmptyRunID = errors.New("run id must not be empty")

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id           TEXT NOT NULL,
    server           TEXT NOT NULL,
    direction        TEXT NOT NULL,
    bandwidth_mean   REAL,
    bandwidth_median REAL,
    jitter_mean      REAL,
    loss_mean        REAL,
    test_started     TEXT,
    payload          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_run_id ON results (run_id);
`

// Store is a results database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends rows for runID in one transaction. Summary columns are
// copied out of each row for querying; the full row is kept as JSON.
func (s *Store) Save(ctx context.Context, runID string, rows []map[string]any) error {
	if runID == "" {
		return ErrEmptyRunID
	}
	const insert = `
INSERT INTO results (
    run_id, server, direction, bandwidth_mean, bandwidth_median,
    jitter_mean, loss_mean, test_started, payload
) VALUES (?,?,?,?,?,?,?,?,?);
`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			stringValue(row["iperf_server"]),
			stringValue(row["bandwidth_direction"]),
			nullFloat(row["bandwidth_mean"]),
			nullFloat(row["bandwidth_median"]),
			nullFloat(row["jitter_mean"]),
			nullFloat(row["loss_mean"]),
			stringValue(row["test_started"]),
			string(payload),
		); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load returns the rows saved for runID in insertion order.
func (s *Store) Load(ctx context.Context, runID string) ([]map[string]any, error) {
	const query = `
SELECT payload
  FROM results
 WHERE run_id = ?
 ORDER BY id;
`
	rs, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows []map[string]any
	for rs.Next() {
		var payload string
		if err := rs.Scan(&payload); err != nil {
			return nil, err
		}
		row := make(map[string]any)
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, rs.Err()
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func nullFloat(v any) sql.NullFloat64 {
	switch f := v.(type) {
	case float64:
		return sql.NullFloat64{Float64: f, Valid: true}
	case int:
		return sql.NullFloat64{Float64: float64(f), Valid: true}
	default:
		return sql.NullFloat64{}
	}
}
