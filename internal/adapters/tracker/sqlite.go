// Package tracker records every prompt/response pair of the QA chain so runs
// can be inspected after the fact.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/phuslu/log"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

const (
	DefaultPath       = "docqa-tracking.db"
	DefaultExperiment = "Aim Documents Bot"
)

// ErrRunFinished is returned when records arrive for a run that was closed
// without a reset.
var ErrRunFinished = errors.New("run already finished")

var (
	driverOnce sync.Once
	driverName string
	driverErr  error
)

// tracedDriver registers an otelsql-wrapped sqlite3 driver once per process.
func tracedDriver() (string, error) {
	driverOnce.Do(func() {
		driverName, driverErr = otelsql.Register("sqlite3",
			otelsql.TraceQueryWithoutArgs(),
			otelsql.TraceRowsClose(),
			otelsql.TraceRowsAffected(),
			otelsql.WithSystem(semconv.DBSystemSqlite),
		)
	})
	return driverName, driverErr
}

// SQLiteTracker buffers records in memory and writes them on Flush, one
// tracked run at a time.
type SQLiteTracker struct {
	mu         sync.Mutex
	db         *sql.DB
	experiment string
	runID      string
	finished   bool
	pending    []entities.PromptRecord
	dropped    int
	logger     *log.Logger
}

// NewSQLiteTracker opens (or creates) the tracking database and starts a run.
func NewSQLiteTracker(path, experiment string, logger *log.Logger) (*SQLiteTracker, error) {
	if path == "" {
		path = DefaultPath
	}
	if experiment == "" {
		experiment = DefaultExperiment
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating tracker directory: %w", err)
		}
	}

	driver, err := tracedDriver()
	if err != nil {
		return nil, fmt.Errorf("registering traced sqlite driver: %w", err)
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	t := &SQLiteTracker{
		db:         db,
		experiment: experiment,
		logger:     logging.OrNop(logger),
	}
	if err := t.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := t.startRun(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// initSchema creates the necessary tables.
func (t *SQLiteTracker) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		question TEXT NOT NULL,
		stage TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT,
		error TEXT,
		attempt INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id);
	`
	_, err := t.db.Exec(schema)
	return err
}

// startRun must be called with mu held or before the tracker is shared.
func (t *SQLiteTracker) startRun(ctx context.Context) error {
	id := uuid.NewString()
	_, err := t.db.ExecContext(ctx,
		"INSERT INTO runs (id, experiment, started_at) VALUES (?, ?, ?)",
		id, t.experiment, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	t.runID = id
	t.finished = false
	t.logger.Debug().Str("run_id", id).Str("experiment", t.experiment).Msg("tracking run started")
	return nil
}

// RunID returns the current run identifier.
func (t *SQLiteTracker) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Record buffers one prompt/response pair.
func (t *SQLiteTracker) Record(ctx context.Context, rec entities.PromptRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		t.dropped++
		return
	}
	t.pending = append(t.pending, rec)
}

// Flush writes buffered records in one transaction. finish closes the run;
// reset opens a new one afterwards.
func (t *SQLiteTracker) Flush(ctx context.Context, reset, finish bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dropped > 0 {
		dropped := t.dropped
		t.dropped = 0
		if !reset {
			return fmt.Errorf("%w: %d records dropped", ErrRunFinished, dropped)
		}
	}

	if len(t.pending) > 0 || finish {
		if err := t.write(ctx, finish); err != nil {
			return err
		}
	}

	if reset {
		return t.startRun(ctx)
	}
	return nil
}

func (t *SQLiteTracker) write(ctx context.Context, finish bool) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if len(t.pending) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (run_id, question, stage, chunk_index, prompt, response, error, attempt, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range t.pending {
			created := rec.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			_, err = stmt.ExecContext(ctx,
				t.runID,
				rec.Question,
				string(rec.Stage),
				rec.ChunkIndex,
				rec.Prompt,
				rec.Response,
				rec.Error,
				rec.Attempt,
				rec.Duration.Milliseconds(),
				created.UTC(),
			)
			if err != nil {
				return fmt.Errorf("inserting record: %w", err)
			}
		}
	}

	if finish && !t.finished {
		_, err = tx.ExecContext(ctx, "UPDATE runs SET finished_at = ? WHERE id = ?", time.Now().UTC(), t.runID)
		if err != nil {
			return fmt.Errorf("finishing run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	t.logger.Debug().Str("run_id", t.runID).Int("records", len(t.pending)).Bool("finish", finish).Msg("tracker flushed")
	t.pending = t.pending[:0]
	if finish {
		t.finished = true
	}
	return nil
}

// Close releases the database. Unflushed records are lost.
func (t *SQLiteTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.pending); n > 0 {
		t.logger.Warn().Int("records", n).Msg("closing tracker with unflushed records")
	}
	return t.db.Close()
}

// RunSummary is a persisted run with its record count.
type RunSummary struct {
	ID         string
	Experiment string
	Records    int
	Finished   bool
}

// Runs lists the tracked runs, oldest first.
func (t *SQLiteTracker) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT r.id, r.experiment, r.finished_at IS NOT NULL, COUNT(rec.id)
		FROM runs r LEFT JOIN records rec ON rec.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at, r.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Experiment, &s.Finished, &s.Records); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Noop discards everything; it is used when tracking is disabled.
type Noop struct{}

func (Noop) Record(context.Context, entities.PromptRecord) {}
func (Noop) Flush(context.Context, bool, bool) error       { return nil }
func (Noop) Close() error                                   { return nil }
