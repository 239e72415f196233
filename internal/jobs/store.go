package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tscribe/internal/config"
)

// ErrNotFound is returned when an operation targets a job id with no record.
var ErrNotFound = errors.New("job not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    language TEXT,
    status TEXT NOT NULL,
    title TEXT,
    detected_language TEXT,
    duration_seconds REAL NOT NULL DEFAULT 0,
    progress INTEGER NOT NULL DEFAULT 0,
    result_text TEXT,
    result_segments_json TEXT,
    error TEXT,
    source TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

const jobColumns = `id, url, language, status, title, detected_language,
duration_seconds, progress, result_text, result_segments_json, error, source,
created_at, updated_at, completed_at`

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "tscribe.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Create inserts a new queued job for the given URL and optional language
// hint and returns the persisted record.
func (s *Store) Create(ctx context.Context, url, language string) (*Job, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is required")
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, url, language, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		url,
		nullableString(strings.TrimSpace(language)),
		StatusQueued,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Update persists all mutable fields of the job. Returns ErrNotFound when
// the record no longer exists.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, title = ?, detected_language = ?, duration_seconds = ?,
             progress = ?, result_text = ?, result_segments_json = ?, error = ?,
             source = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.Title),
		nullableString(job.DetectedLanguage),
		job.DurationSeconds,
		job.Progress,
		nullableString(job.ResultText),
		nullableString(job.ResultSegmentsJSON),
		nullableString(job.Error),
		nullableString(job.Source),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNext atomically transitions the oldest queued job to downloading and
// returns it. Two concurrent pollers can never claim the same job. Returns
// (nil, nil) when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var id string
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs SET status = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1
             ) AND status = ?
             RETURNING id`,
			StatusDownloading,
			timestamp,
			StatusQueued,
			StatusQueued,
		)
		return row.Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// List returns jobs ordered newest first, capped at limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// Remove deletes a job record. The boolean reports whether a row existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	return affected > 0, nil
}

// Stats returns job counts per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                          Job
		language, title, detected    sql.NullString
		resultText, resultSegments   sql.NullString
		errorMessage, source         sql.NullString
		createdAt, updatedAt, doneAt sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.URL,
		&language,
		&job.Status,
		&title,
		&detected,
		&job.DurationSeconds,
		&job.Progress,
		&resultText,
		&resultSegments,
		&errorMessage,
		&source,
		&createdAt,
		&updatedAt,
		&doneAt,
	); err != nil {
		return nil, err
	}
	job.Language = language.String
	job.Title = title.String
	job.DetectedLanguage = detected.String
	job.ResultText = resultText.String
	job.ResultSegmentsJSON = resultSegments.String
	job.Error = errorMessage.String
	job.Source = source.String
	job.CreatedAt = parseTimestamp(createdAt.String)
	job.UpdatedAt = parseTimestamp(updatedAt.String)
	if doneAt.Valid && doneAt.String != "" {
		completed := parseTimestamp(doneAt.String)
		job.CompletedAt = &completed
	}
	return &job, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
