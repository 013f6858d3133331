package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryDSN keeps the run log in process memory only; it is gone on restart.
const MemoryDSN = ":memory:"

// DefaultRetention is the number of runs kept per key.
const DefaultRetention = 100

// History keeps a log of the most recent webhook runs per key in SQLite
type History struct {
	db        *sql.DB
	retention int
}

// NewHistory opens the run log at dsn and creates its schema.
// Use MemoryDSN for a log that lives only as long as the process.
func NewHistory(dsn string) (*History, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection: SQLite has one writer, and every new connection
	// to :memory: would see an empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	h := &History{db: db, retention: DefaultRetention}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// SetRetention changes how many runs are kept per key. Values below one are
// ignored.
func (h *History) SetRetention(n int) {
	if n > 0 {
		h.retention = n
	}
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			hook_key TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			targets INTEGER NOT NULL DEFAULT 0,
			event TEXT,
			delivery_id TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_hook_key_id
		ON runs(hook_key, id DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordRun inserts a run. RunID and StartedAt are filled in when empty and
// written back to record. Runs not in StatusRunning are stored as completed.
func (h *History) RecordRun(ctx context.Context, record *RunRecord) (int64, error) {
	if record.RunID == "" {
		record.RunID = uuid.NewString()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}

	var completedAt *string
	if record.CompletedAt != nil {
		formatted := record.CompletedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &formatted
	} else if record.Status != StatusRunning {
		formatted := record.StartedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &formatted
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, hook_key, mode, status, targets, event, delivery_id, started_at,
		 completed_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.RunID,
		record.Key,
		record.Mode,
		record.Status,
		record.Targets,
		record.Event,
		record.DeliveryID,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		completedAt,
		record.DurationSeconds,
		record.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id

	if err := h.prune(ctx, record.Key); err != nil {
		return id, err
	}

	return id, nil
}

// prune deletes finished runs of key beyond the newest h.retention. Running
// rows are kept so they can still be completed.
func (h *History) prune(ctx context.Context, key string) error {
	_, err := h.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE hook_key = ?
		  AND status != ?
		  AND id NOT IN (
			SELECT id FROM runs WHERE hook_key = ? ORDER BY id DESC LIMIT ?
		  )
	`, key, StatusRunning, key, h.retention)
	if err != nil {
		return fmt.Errorf("failed to prune run history: %w", err)
	}
	return nil
}

// CompleteRun sets the final status of a run and records its duration.
// An empty errMsg leaves error_message NULL.
func (h *History) CompleteRun(ctx context.Context, runID, status, errMsg string) error {
	var startedAtStr string
	err := h.db.QueryRowContext(ctx, `SELECT started_at FROM runs WHERE run_id = ?`, runID).Scan(&startedAtStr)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return fmt.Errorf("failed to query run: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, startedAtStr)
	if err != nil {
		return fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}

	now := time.Now().UTC()
	duration := now.Sub(startedAt).Seconds()

	var errorMessage *string
	if errMsg != "" {
		errorMessage = &errMsg
	}

	_, err = h.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, completed_at = ?, duration_seconds = ?, error_message = ?
		WHERE run_id = ?
	`, status, now.Format(time.RFC3339Nano), duration, errorMessage, runID)
	if err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}

	return nil
}

// GetLatestRun returns the most recent run for a key, or nil if there is none
func (h *History) GetLatestRun(ctx context.Context, key string) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE hook_key = ?
		ORDER BY id DESC
		LIMIT 1
	`, key)

	record, err := scanRunRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	return record, nil
}

// GetRunHistory returns up to limit runs for a key, newest first
func (h *History) GetRunHistory(ctx context.Context, key string, limit int) ([]RunRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE hook_key = ?
		ORDER BY id DESC
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	return collectRunRecords(rows)
}

// GetAllKeysStatus returns the latest run for every key that has one
func (h *History) GetAllKeysStatus(ctx context.Context) (map[string]*RunRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id IN (SELECT MAX(id) FROM runs GROUP BY hook_key)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all keys status: %w", err)
	}
	defer rows.Close()

	records, err := collectRunRecords(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*RunRecord, len(records))
	for i := range records {
		result[records[i].Key] = &records[i]
	}
	return result, nil
}

const runColumns = `id, run_id, hook_key, mode, status, targets, event, delivery_id,
		       started_at, completed_at, duration_seconds, error_message`

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func collectRunRecords(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanRunRecord scans a database row into a RunRecord
func scanRunRecord(s scanner) (*RunRecord, error) {
	var record RunRecord
	var startedAtStr string
	var completedAtStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.RunID,
		&record.Key,
		&record.Mode,
		&record.Status,
		&record.Targets,
		&record.Event,
		&record.DeliveryID,
		&startedAtStr,
		&completedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(time.RFC3339Nano, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339Nano, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
