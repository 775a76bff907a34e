package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSink persists invocation records to SQLite.
// It is suitable for single-process production use.
type SQLiteSink struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteSink creates a new SQLite report sink.
// The path should be a file path (e.g., "./reports.db") or ":memory:" for testing.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			correlation_id TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			events_detected INTEGER NOT NULL,
			events TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create invocations table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS job_executions (
			id TEXT PRIMARY KEY,
			invocation_id TEXT NOT NULL,
			event TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			result TEXT,
			error_kind TEXT,
			error_message TEXT,
			tracking_token TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create job_executions table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_executions_invocation
		ON job_executions(invocation_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_invocations_correlation
		ON invocations(correlation_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Record implements Sink.
func (s *SQLiteSink) Record(record *InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	events, err := json.Marshal(record.Events)
	if err != nil {
		return fmt.Errorf("encode event records: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO invocations
			(id, correlation_id, source, status, started_at, duration_ms, events_detected, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.CorrelationID, record.Source, record.Status,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.DurationMs, record.EventsDetectedCount, string(events)); err != nil {
		return fmt.Errorf("save invocation: %w", err)
	}

	for _, job := range record.Jobs {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO job_executions
				(id, invocation_id, event, name, status, duration_ms, result, error_kind, error_message, tracking_token)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, job.ID, record.ID, job.Event, job.Name, job.Status, job.DurationMs,
			job.Result, job.ErrorKind, job.ErrorMessage, job.TrackingToken); err != nil {
			return fmt.Errorf("save job execution %s: %w", job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Get returns the record for an invocation id.
func (s *SQLiteSink) Get(id string) (*InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrSinkClosed
	}

	record := &InvocationRecord{ID: id}
	var startedAt, events string
	err := s.db.QueryRow(`
		SELECT correlation_id, source, status, started_at, duration_ms, events_detected, events
		FROM invocations WHERE id = ?
	`, id).Scan(&record.CorrelationID, &record.Source, &record.Status,
		&startedAt, &record.DurationMs, &record.EventsDetectedCount, &events)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invocation: %w", err)
	}

	record.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if err := json.Unmarshal([]byte(events), &record.Events); err != nil {
		return nil, fmt.Errorf("decode event records: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, event, name, status, duration_ms, result, error_kind, error_message, tracking_token
		FROM job_executions WHERE invocation_id = ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load job executions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var job JobRecord
		var result, errKind, errMsg sql.NullString
		if err := rows.Scan(&job.ID, &job.Event, &job.Name, &job.Status,
			&job.DurationMs, &result, &errKind, &errMsg, &job.TrackingToken); err != nil {
			return nil, fmt.Errorf("scan job execution: %w", err)
		}
		job.Result = result.String
		job.ErrorKind = errKind.String
		job.ErrorMessage = errMsg.String
		record.Jobs = append(record.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job executions: %w", err)
	}

	return record, nil
}

// ListByCorrelation returns all invocations of one chain, oldest first.
func (s *SQLiteSink) ListByCorrelation(correlationID string) ([]*InvocationRecord, error) {
	s.mu.RLock()

	if s.closed {
		s.mu.RUnlock()
		return nil, ErrSinkClosed
	}

	rows, err := s.db.Query(`
		SELECT id FROM invocations
		WHERE correlation_id = ?
		ORDER BY started_at
	`, correlationID)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("list invocations: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, fmt.Errorf("scan invocation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	s.mu.RUnlock()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}

	records := make([]*InvocationRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
