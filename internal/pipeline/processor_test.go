package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tscribe/internal/captions"
	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/media"
	"tscribe/internal/pipeline"
	"tscribe/internal/recognize"
	"tscribe/internal/shutdown"
	"tscribe/internal/storage"
	"tscribe/internal/testsupport"
	"tscribe/internal/transcript"
)

const json3Payload = `{"events":[
	{"tStartMs":0,"dDurationMs":1500,"segs":[{"utf8":"hallo "},{"utf8":"welt"}]},
	{"tStartMs":1500,"dDurationMs":2000,"segs":[{"utf8":"zweiter satz"}]}
]}`

type fakeMedia struct {
	info        *media.CaptionInfo
	probeErr    error
	trackData   []byte
	downloadErr error
	audio       *media.AudioResult
	fetchErr    error

	probeCalls    int
	downloadCalls int
	fetchCalls    int
}

func (f *fakeMedia) ProbeCaptions(ctx context.Context, url string) (*media.CaptionInfo, error) {
	f.probeCalls++
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.info, nil
}

func (f *fakeMedia) DownloadTrack(ctx context.Context, track captions.Track) ([]byte, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.trackData, nil
}

func (f *fakeMedia) FetchAudio(ctx context.Context, url, destDir string) (*media.AudioResult, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.audio, nil
}

type fakeRecognizer struct {
	segments []transcript.Segment
	language string
	err      error

	calls        int
	callbacks    int
	afterSegment func(index int)
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, audioPath, language string, onSegment recognize.SegmentFunc) (*transcript.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for i, segment := range f.segments {
		if onSegment != nil {
			f.callbacks++
			if err := onSegment(segment); err != nil {
				return nil, err
			}
		}
		if f.afterSegment != nil {
			f.afterSegment(i)
		}
	}
	lang := f.language
	if lang == "" {
		lang = language
	}
	return &transcript.Result{Segments: f.segments, Language: lang}, nil
}

// stoppingRecognizer reproduces a daemon stop landing mid-recognition: the
// stop flag is raised, the run context is cancelled, and the engine surfaces
// the killed process as its wrapped read error.
type stoppingRecognizer struct {
	signal *shutdown.Signal
	cancel context.CancelFunc
}

func (s *stoppingRecognizer) Transcribe(ctx context.Context, audioPath, language string, onSegment recognize.SegmentFunc) (*transcript.Result, error) {
	s.signal.Request()
	s.cancel()
	<-ctx.Done()
	return nil, fmt.Errorf("whisper: read output: %w", ctx.Err())
}

func captionInfo(lang string) *media.CaptionInfo {
	return &media.CaptionInfo{
		Title:    "Sample Video",
		Duration: 120,
		Tracks: captions.TrackSet{
			Manual: map[string][]captions.Track{
				lang: {{Language: lang, Encoding: captions.EncodingJSON3, URL: "https://captions.example/" + lang}},
			},
		},
	}
}

type harness struct {
	cfg       *config.Config
	store     *jobs.Store
	media     *fakeMedia
	rec       *fakeRecognizer
	signal    *shutdown.Signal
	processor *pipeline.Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFallbackLanguages("de", "en"))
	store := testsupport.MustOpenStore(t, cfg)
	fm := &fakeMedia{}
	fr := &fakeRecognizer{}
	signal := &shutdown.Signal{}
	return &harness{
		cfg:       cfg,
		store:     store,
		media:     fm,
		rec:       fr,
		signal:    signal,
		processor: pipeline.NewProcessor(logging.NewNop(), cfg, store, fm, fr, signal),
	}
}

func (h *harness) reload(t *testing.T, id string) *jobs.Job {
	t.Helper()
	job, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s disappeared", id)
	}
	return job
}

func TestFastPathFromCaptions(t *testing.T) {
	h := newHarness(t)
	h.media.info = captionInfo("de")
	h.media.trackData = []byte(json3Payload)
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "de")

	workDir, err := storage.EnsureJobDir(h.cfg.Paths.DataDir, job.ID)
	if err != nil {
		t.Fatalf("prepare work dir: %v", err)
	}

	if err := h.processor.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if got.Source != jobs.SourceSubtitles {
		t.Errorf("source = %q, want subtitles", got.Source)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if got.Title != "Sample Video" || got.DurationSeconds != 120 {
		t.Errorf("metadata not persisted: title=%q duration=%v", got.Title, got.DurationSeconds)
	}
	if got.DetectedLanguage != "de" {
		t.Errorf("detected language = %q, want de", got.DetectedLanguage)
	}
	if !strings.Contains(got.ResultText, "hallo welt") {
		t.Errorf("result text missing caption content: %q", got.ResultText)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	segments, err := transcript.UnmarshalSegments(got.ResultSegmentsJSON)
	if err != nil || len(segments) != 2 {
		t.Errorf("stored segments = %v (err %v), want 2", segments, err)
	}

	if h.media.fetchCalls != 0 {
		t.Errorf("fast path fetched audio %d times", h.media.fetchCalls)
	}
	if h.rec.calls != 0 {
		t.Errorf("fast path invoked recognition %d times", h.rec.calls)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("expected work dir to be removed, stat err = %v", err)
	}
}

func TestFallbackToRecognition(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Title: "No Captions", Duration: 300}
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Title: "No Captions", Duration: 300}
	h.rec.segments = []transcript.Segment{
		{Start: 0, End: 2, Text: "first"},
		{Start: 2, End: 4, Text: "second"},
	}
	h.rec.language = "en"
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	if err := h.processor.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if got.Source != jobs.SourceWhisper {
		t.Errorf("source = %q, want whisper", got.Source)
	}
	if got.DetectedLanguage != "en" {
		t.Errorf("detected language = %q, want en", got.DetectedLanguage)
	}
	if got.ResultText != "first\nsecond" {
		t.Errorf("result text = %q", got.ResultText)
	}
	if h.media.fetchCalls != 1 || h.rec.calls != 1 {
		t.Errorf("fetch calls = %d, recognition calls = %d, want 1 each", h.media.fetchCalls, h.rec.calls)
	}
}

func TestUndecodableCaptionsFallBack(t *testing.T) {
	h := newHarness(t)
	h.media.info = captionInfo("de")
	h.media.trackData = []byte("{not json3")
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Duration: 120}
	h.rec.segments = []transcript.Segment{{Start: 0, End: 1, Text: "recovered"}}
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "de")

	if err := h.processor.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusDone || got.Source != jobs.SourceWhisper {
		t.Fatalf("status = %s source = %q, want done via whisper", got.Status, got.Source)
	}
	if h.media.downloadCalls != 1 {
		t.Errorf("download calls = %d, want 1", h.media.downloadCalls)
	}
}

func TestProbeFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.media.probeErr = errors.New("video unavailable in probe")
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Title: "Recovered Title", Duration: 60}
	h.rec.segments = []transcript.Segment{{Start: 0, End: 1, Text: "still works"}}
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	if err := h.processor.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if got.Title != "Recovered Title" || got.DurationSeconds != 60 {
		t.Errorf("metadata from audio fetch not used: title=%q duration=%v", got.Title, got.DurationSeconds)
	}
}

func TestFetchFailureMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Title: "t", Duration: 10}
	h.media.fetchErr = errors.New("network unreachable")
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	err := h.processor.ProcessJob(context.Background(), job)
	if err == nil {
		t.Fatal("expected ProcessJob to report the failure")
	}
	if pipeline.KindOf(err) != pipeline.KindFetchFailed {
		t.Errorf("kind = %s, want FetchFailed", pipeline.KindOf(err))
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.HasPrefix(got.Error, "FetchFailed: ") {
		t.Errorf("error label = %q, want FetchFailed prefix", got.Error)
	}
	if !strings.Contains(got.Error, "network unreachable") {
		t.Errorf("error label missing cause: %q", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt on failed job")
	}
}

func TestRecognitionFailureMarksJobFailed(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 10}
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Duration: 10}
	h.rec.err = errors.New("model load failed")
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	if err := h.processor.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected ProcessJob to report the failure")
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.HasPrefix(got.Error, "RecognitionFailed: ") {
		t.Errorf("error label = %q, want RecognitionFailed prefix", got.Error)
	}
	if !strings.Contains(got.Error, "model load failed") {
		t.Errorf("error label missing cause: %q", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt on failed job")
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	h := newHarness(t)
	h.signal.Request()
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	if err := h.processor.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected cancellation to surface")
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.HasPrefix(got.Error, "Cancelled: ") {
		t.Errorf("error label = %q, want Cancelled prefix", got.Error)
	}
	if h.media.probeCalls != 0 {
		t.Errorf("probe ran %d times despite shutdown", h.media.probeCalls)
	}
}

func TestCancelledBetweenSegments(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 100}
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Duration: 100}
	h.rec.segments = []transcript.Segment{
		{Start: 0, End: 10, Text: "one"},
		{Start: 10, End: 20, Text: "two"},
		{Start: 20, End: 30, Text: "three"},
	}
	h.rec.afterSegment = func(index int) {
		if index == 0 {
			h.signal.Request()
		}
	}
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	if err := h.processor.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected cancellation to surface")
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.HasPrefix(got.Error, "Cancelled: ") {
		t.Errorf("error label = %q, want Cancelled prefix", got.Error)
	}
	if h.rec.callbacks != 2 {
		t.Errorf("callbacks = %d, want 2 (cancel seen at second segment)", h.rec.callbacks)
	}
}

func TestStopMidRecognitionStillRecordsCancellation(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 100}
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Duration: 100}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &stoppingRecognizer{signal: h.signal, cancel: cancel}
	processor := pipeline.NewProcessor(logging.NewNop(), h.cfg, h.store, h.media, rec, h.signal)
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	err := processor.ProcessJob(ctx, job)
	if err == nil {
		t.Fatal("expected cancellation to surface")
	}
	if pipeline.KindOf(err) != pipeline.KindCancelled {
		t.Errorf("kind = %s, want Cancelled", pipeline.KindOf(err))
	}

	got := h.reload(t, job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed even though the run context was cancelled", got.Status)
	}
	if !strings.HasPrefix(got.Error, "Cancelled: ") {
		t.Errorf("error label = %q, want Cancelled prefix", got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt on cancelled job")
	}
}

func TestProgressPersistedDuringRecognition(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 1000}
	h.media.audio = &media.AudioResult{Path: "/tmp/audio.wav", Duration: 1000}
	h.rec.segments = []transcript.Segment{
		{Start: 0, End: 200, Text: "a"},
		{Start: 200, End: 400, Text: "b"},
		{Start: 400, End: 900, Text: "c"},
	}
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")
	var observed []int
	h.rec.afterSegment = func(int) {
		observed = append(observed, h.reload(t, job.ID).Progress)
	}

	if err := h.processor.ProcessJob(context.Background(), job); err != nil {
		t.Fatalf("ProcessJob returned error: %v", err)
	}

	// floor(end/total*90)+5 for 200, 400 and 900 seconds of 1000.
	want := []int{23, 41, 86}
	if len(observed) != len(want) {
		t.Fatalf("observed %v, want %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("progress after segment %d = %d, want %d", i, observed[i], want[i])
		}
	}
	if got := h.reload(t, job.ID); got.Progress != 100 {
		t.Errorf("final progress = %d, want 100", got.Progress)
	}
}

func TestAbandonedWhenRecordDeleted(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 10}
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")
	if _, err := h.store.Remove(context.Background(), job.ID); err != nil {
		t.Fatalf("remove job: %v", err)
	}

	err := h.processor.ProcessJob(context.Background(), job)
	if err == nil {
		t.Fatal("expected abandoned run to surface an error")
	}
	if pipeline.KindOf(err) != pipeline.KindNotFound {
		t.Errorf("kind = %s, want NotFound", pipeline.KindOf(err))
	}

	stored, err := h.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored != nil {
		t.Error("abandoned run must not resurrect the job record")
	}
}

func TestWorkDirRemovedOnFailure(t *testing.T) {
	h := newHarness(t)
	h.media.info = &media.CaptionInfo{Duration: 10}
	h.media.fetchErr = errors.New("boom")
	job := testsupport.NewJob(t, h.store, "https://example.com/v", "")

	workDir, err := storage.EnsureJobDir(h.cfg.Paths.DataDir, job.ID)
	if err != nil {
		t.Fatalf("prepare work dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "audio.wav"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("seed work dir: %v", err)
	}

	if err := h.processor.ProcessJob(context.Background(), job); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("expected work dir to be removed after failure, stat err = %v", err)
	}
}
