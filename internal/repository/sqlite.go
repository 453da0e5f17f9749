package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gezhip02/chat-english/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS render_jobs (
			job_id TEXT PRIMARY KEY,
			session_id TEXT,
			text_chars INTEGER NOT NULL DEFAULT 0,
			avatar_source_url TEXT,
			state TEXT NOT NULL,
			result_url TEXT,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_render_jobs_session ON render_jobs(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRenderJob inserts or updates a render job. Only the length of the
// rendered text is kept.
func (s *SQLiteStore) SaveRenderJob(ctx context.Context, job *domain.RenderJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO render_jobs (job_id, session_id, text_chars, avatar_source_url, state, result_url, attempt_count, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			state = excluded.state,
			result_url = excluded.result_url,
			attempt_count = excluded.attempt_count,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		job.JobID, nullString(job.SessionID), utf8.RuneCountInString(job.SourceText), job.AvatarSourceURL,
		job.State, job.ResultURL, job.AttemptCount, job.Error, job.CreatedAt, job.UpdatedAt)
	return err
}

// GetRenderJob retrieves a render job by ID.
func (s *SQLiteStore) GetRenderJob(ctx context.Context, jobID string) (*domain.RenderJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, session_id, avatar_source_url, state, result_url, attempt_count, error, created_at, updated_at
		 FROM render_jobs WHERE job_id = ?`, jobID)
	job, err := scanRenderJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListRenderJobs returns the most recent jobs, optionally for one session.
func (s *SQLiteStore) ListRenderJobs(ctx context.Context, sessionID string, limit int) ([]domain.RenderJob, error) {
	query := `SELECT job_id, session_id, avatar_source_url, state, result_url, attempt_count, error, created_at, updated_at FROM render_jobs`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.RenderJob
	for rows.Next() {
		job, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRenderJob(row scanner) (*domain.RenderJob, error) {
	var job domain.RenderJob
	var sessionID, sourceURL, resultURL, errText sql.NullString
	if err := row.Scan(&job.JobID, &sessionID, &sourceURL, &job.State, &resultURL,
		&job.AttemptCount, &errText, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.SessionID = sessionID.String
	job.AvatarSourceURL = sourceURL.String
	job.ResultURL = resultURL.String
	job.Error = errText.String
	return &job, nil
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, nullString(event.SessionID), event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events matching filter in timestamp order.
func (s *SQLiteStore) GetEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, ts, type, payload FROM events WHERE 1 = 1`
	var args []interface{}

	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.AfterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, filter.AfterTs)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var sessionID, payload sql.NullString
		if err := rows.Scan(&event.EventID, &sessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		event.SessionID = sessionID.String
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
