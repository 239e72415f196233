// Package api exposes the job operations shared by the daemon's HTTP
// surface and the command-line client: submit, inspect, list, delete, and
// result rendering.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/storage"
	"tscribe/internal/transcript"
)

// ErrNotFound reports a job ID with no record behind it.
var ErrNotFound = errors.New("job not found")

// ErrNotReady reports a result request against a job that has not finished.
var ErrNotReady = errors.New("job has no result yet")

// ErrInvalidInput reports a request the service refused to act on.
var ErrInvalidInput = errors.New("invalid request")

// JobView is the wire representation of a job.
type JobView struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Language         string     `json:"language,omitempty"`
	Status           string     `json:"status"`
	Title            string     `json:"title,omitempty"`
	DetectedLanguage string     `json:"detected_language,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds,omitempty"`
	Progress         int        `json:"progress"`
	Error            string     `json:"error,omitempty"`
	Source           string     `json:"source,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewJobView converts a stored job into its wire form.
func NewJobView(job *jobs.Job) *JobView {
	return &JobView{
		ID:               job.ID,
		URL:              job.URL,
		Language:         job.Language,
		Status:           string(job.Status),
		Title:            job.Title,
		DetectedLanguage: job.DetectedLanguage,
		DurationSeconds:  job.DurationSeconds,
		Progress:         job.Progress,
		Error:            job.Error,
		Source:           job.Source,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		CompletedAt:      job.CompletedAt,
	}
}

// Result is a rendered transcript ready for download.
type Result struct {
	Content     string
	ContentType string
	Filename    string
}

// JobService implements the job operations against the store.
type JobService struct {
	logger    *slog.Logger
	store     *jobs.Store
	dataDir   string
	listLimit int
}

// NewJobService creates the service.
func NewJobService(logger *slog.Logger, cfg *config.Config, store *jobs.Store) *JobService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JobService{
		logger:    logging.NewComponentLogger(logger, "api"),
		store:     store,
		dataDir:   cfg.Paths.DataDir,
		listLimit: cfg.Workflow.ListLimit,
	}
}

// Submit validates the media URL and enqueues a new job.
func (s *JobService) Submit(ctx context.Context, mediaURL, language string) (*JobView, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	parsed, err := url.Parse(mediaURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: media URL must be absolute http(s)", ErrInvalidInput)
	}

	job, err := s.store.Create(ctx, mediaURL, strings.ToLower(strings.TrimSpace(language)))
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldURL, job.URL))
	return NewJobView(job), nil
}

// Get returns a single job.
func (s *JobService) Get(ctx context.Context, id string) (*JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return NewJobView(job), nil
}

// List returns jobs newest first. A non-positive or oversized limit falls
// back to the configured cap.
func (s *JobService) List(ctx context.Context, limit int) ([]*JobView, error) {
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}
	records, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	views := make([]*JobView, len(records))
	for i, job := range records {
		views[i] = NewJobView(job)
	}
	return views, nil
}

// Delete removes a job and its working directory. The directory goes first
// so a crash between the two steps leaves the record behind for a retry
// rather than an orphaned directory.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if err := storage.RemoveJobDir(s.dataDir, id); err != nil {
		return fmt.Errorf("remove job workspace: %w", err)
	}
	existed, err := s.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if !existed {
		return ErrNotFound
	}
	s.logger.Info("job removed", logging.String(logging.FieldJobID, id))
	return nil
}

// Result renders a finished job's transcript in the requested format.
func (s *JobService) Result(ctx context.Context, id string, format transcript.Format) (*Result, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != jobs.StatusDone {
		return nil, fmt.Errorf("%w (status %s)", ErrNotReady, job.Status)
	}

	segments, err := transcript.UnmarshalSegments(job.ResultSegmentsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode stored segments: %w", err)
	}
	content, err := transcript.Render(format, segments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &Result{
		Content:     content,
		ContentType: format.ContentType(),
		Filename:    resultFilename(job.ID, format),
	}, nil
}

// Stats returns the queue counts by status.
func (s *JobService) Stats(ctx context.Context) (map[jobs.Status]int, error) {
	return s.store.Stats(ctx)
}

func resultFilename(id string, format transcript.Format) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("transcript-%s.%s", short, format)
}
