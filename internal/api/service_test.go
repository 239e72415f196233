package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tscribe/internal/api"
	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/storage"
	"tscribe/internal/testsupport"
	"tscribe/internal/transcript"
)

func newService(t *testing.T) (*api.JobService, *jobs.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return api.NewJobService(logging.NewNop(), cfg, store), store, cfg
}

func completeJob(t *testing.T, store *jobs.Store, job *jobs.Job) {
	t.Helper()
	segments := []transcript.Segment{
		{Start: 0, End: 1.5, Text: "hello"},
		{Start: 1.5, End: 3, Text: "world"},
	}
	encoded, err := transcript.MarshalSegments(segments)
	if err != nil {
		t.Fatalf("encode segments: %v", err)
	}
	job.Status = jobs.StatusDone
	job.Progress = 100
	job.ResultText = transcript.JoinText(segments)
	job.ResultSegmentsJSON = encoded
	job.DetectedLanguage = "en"
	job.Source = jobs.SourceWhisper
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}
}

func TestSubmitAndGet(t *testing.T) {
	service, _, _ := newService(t)

	view, err := service.Submit(context.Background(), "https://example.com/watch?v=abc", "DE")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if view.Status != string(jobs.StatusQueued) {
		t.Errorf("status = %q, want queued", view.Status)
	}
	if view.Language != "de" {
		t.Errorf("language = %q, want lowercased de", view.Language)
	}

	got, err := service.Get(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.URL != "https://example.com/watch?v=abc" {
		t.Errorf("url = %q", got.URL)
	}
}

func TestSubmitRejectsBadURLs(t *testing.T) {
	service, _, _ := newService(t)
	for _, bad := range []string{"", "notaurl", "ftp://example.com/x", "/relative/path"} {
		if _, err := service.Submit(context.Background(), bad, ""); !errors.Is(err, api.ErrInvalidInput) {
			t.Errorf("Submit(%q) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestGetMissingJob(t *testing.T) {
	service, _, _ := newService(t)
	if _, err := service.Get(context.Background(), "no-such-id"); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirstAndCapped(t *testing.T) {
	service, store, _ := newService(t)
	var last string
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, "https://example.com/v", "")
		last = job.ID
	}

	views, err := service.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("got %d jobs, want 3", len(views))
	}
	if views[0].ID != last {
		t.Errorf("first listed job = %s, want newest %s", views[0].ID, last)
	}

	capped, err := service.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("got %d jobs with limit 2", len(capped))
	}
}

func TestDeleteRemovesWorkspaceAndRecord(t *testing.T) {
	service, store, cfg := newService(t)
	job := testsupport.NewJob(t, store, "https://example.com/v", "")

	workDir, err := storage.EnsureJobDir(cfg.Paths.DataDir, job.ID)
	if err != nil {
		t.Fatalf("prepare work dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed work dir: %v", err)
	}

	if err := service.Delete(context.Background(), job.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("work dir survived delete, stat err = %v", err)
	}
	if _, err := service.Get(context.Background(), job.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("expected record gone, got %v", err)
	}

	if err := service.Delete(context.Background(), job.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestResultRendersFormats(t *testing.T) {
	service, store, _ := newService(t)
	job := testsupport.NewJob(t, store, "https://example.com/v", "")
	completeJob(t, store, job)

	srt, err := service.Result(context.Background(), job.ID, transcript.FormatSRT)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if !strings.Contains(srt.Content, "00:00:00,000 --> 00:00:01,500") {
		t.Errorf("srt content = %q", srt.Content)
	}
	if srt.ContentType != transcript.FormatSRT.ContentType() {
		t.Errorf("content type = %q", srt.ContentType)
	}
	if !strings.HasSuffix(srt.Filename, ".srt") {
		t.Errorf("filename = %q", srt.Filename)
	}

	txt, err := service.Result(context.Background(), job.ID, transcript.FormatTXT)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if txt.Content != "hello\nworld" {
		t.Errorf("txt content = %q", txt.Content)
	}
}

func TestResultNotReady(t *testing.T) {
	service, store, _ := newService(t)
	job := testsupport.NewJob(t, store, "https://example.com/v", "")

	if _, err := service.Result(context.Background(), job.ID, transcript.FormatTXT); !errors.Is(err, api.ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestResultMissingJob(t *testing.T) {
	service, _, _ := newService(t)
	if _, err := service.Result(context.Background(), "nope", transcript.FormatTXT); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	service, store, _ := newService(t)
	testsupport.NewJob(t, store, "https://example.com/1", "")
	job := testsupport.NewJob(t, store, "https://example.com/2", "")
	completeJob(t, store, job)

	stats, err := service.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats[jobs.StatusQueued] != 1 || stats[jobs.StatusDone] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
