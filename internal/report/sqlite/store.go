// Package sqlite persists check history as an append-only record.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sitewake/internal/monitor"
)

// Store implements monitor.ReportSink on a local SQLite file. Each run
// appends one row per result; nothing is ever updated or deleted, so the
// table doubles as a status history.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dataSourceName and ensures the
// schema exists.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS check_results (
	run_id     TEXT NOT NULL,
	site_name  TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT,
	checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_results_site_checked_at ON check_results (site_name, checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// WriteReport appends every result of the run.
func (s *Store) WriteReport(ctx context.Context, rep monitor.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO check_results (run_id, site_name, status, detail, checked_at) VALUES (?, ?, ?, ?, ?)`
	for _, res := range rep.Results {
		if _, err := tx.ExecContext(ctx, insert,
			rep.RunID, res.SiteName, string(res.Status), res.Detail,
			res.CheckedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert check result for %s: %w", res.SiteName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit check results: %w", err)
	}
	return nil
}

// History returns the most recent rows for one site, newest first. The watch
// server uses it for the per-site status endpoint.
func (s *Store) History(ctx context.Context, siteName string, limit int) ([]monitor.CheckResult, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
SELECT site_name, status, detail, checked_at
FROM check_results
WHERE site_name = ?
ORDER BY checked_at DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, siteName, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", siteName, err)
	}
	defer rows.Close()

	var out []monitor.CheckResult
	for rows.Next() {
		var (
			res       monitor.CheckResult
			status    string
			checkedAt string
		)
		if err := rows.Scan(&res.SiteName, &status, &res.Detail, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		res.Status = monitor.Status(status)
		res.CheckedAt, err = parseTimestamp(checkedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

func parseTimestamp(raw string) (t time.Time, err error) {
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checked_at %q: %w", raw, err)
	}
	return t, nil
}
