// Package history keeps a sqlite ledger of past report runs.
//
// DESIGN: One row per run — the window, how many alerts and pages were
// fetched, whether the fetch completed, and how many CSV rows were
// written. The monthly job overwrites its CSV each run, so the ledger is
// the only place a partial fetch remains visible after the fact. Failures
// here never fail the run; the caller logs and moves on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mackerelops/alert-report/internal/timewindow"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	window_start  TEXT NOT NULL,
	window_end    TEXT NOT NULL,
	alerts_total  INTEGER NOT NULL,
	pages         INTEGER NOT NULL,
	complete      INTEGER NOT NULL,
	from_cache    INTEGER NOT NULL,
	rows_written  INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_window ON runs (window_start, window_end);
`

// Run is one ledger entry.
type Run struct {
	RunID       string
	Window      timewindow.Window
	AlertsTotal int
	Pages       int
	Complete    bool
	FromCache   bool
	RowsWritten int
	Duration    time.Duration
	FinishedAt  time.Time
}

// Ledger records report runs in a sqlite database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record appends one run to the ledger.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, window_start, window_end, alerts_total, pages,
			complete, from_cache, rows_written, duration_ms, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Window.Start.Format(time.RFC3339),
		r.Window.End.Format(time.RFC3339),
		r.AlertsTotal,
		r.Pages,
		boolToInt(r.Complete),
		boolToInt(r.FromCache),
		r.RowsWritten,
		r.Duration.Milliseconds(),
		r.FinishedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RunsForWindow returns past runs for a window, newest first.
func (l *Ledger) RunsForWindow(ctx context.Context, w timewindow.Window) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, window_start, window_end, alerts_total, pages,
		       complete, from_cache, rows_written, duration_ms, finished_at
		FROM runs
		WHERE window_start = ? AND window_end = ?
		ORDER BY id DESC`,
		w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                    Run
			start, end, finished string
			complete, fromCache  int
			durationMs           int64
		)
		if err := rows.Scan(
			&r.RunID, &start, &end, &r.AlertsTotal, &r.Pages,
			&complete, &fromCache, &r.RowsWritten, &durationMs, &finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Window.Start, _ = time.Parse(time.RFC3339, start)
		r.Window.End, _ = time.Parse(time.RFC3339, end)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		r.Complete = complete != 0
		r.FromCache = fromCache != 0
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close releases the database handle.
func (l *Ledger) Close() error { return l.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
