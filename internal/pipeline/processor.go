// Package pipeline drives a claimed job through its lifecycle: caption
// probe, fast path from existing tracks, or the audio-plus-recognition
// fallback, ending in a terminal status and an unconditional workspace
// cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tscribe/internal/captions"
	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/media"
	"tscribe/internal/progress"
	"tscribe/internal/recognize"
	"tscribe/internal/shutdown"
	"tscribe/internal/storage"
	"tscribe/internal/transcript"
)

// MediaSource abstracts the yt-dlp client for testing.
type MediaSource interface {
	ProbeCaptions(ctx context.Context, url string) (*media.CaptionInfo, error)
	DownloadTrack(ctx context.Context, track captions.Track) ([]byte, error)
	FetchAudio(ctx context.Context, url, destDir string) (*media.AudioResult, error)
}

// Recognizer abstracts the speech-recognition engine for testing.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, language string, onSegment recognize.SegmentFunc) (*transcript.Result, error)
}

// errAbandoned marks a run whose job record vanished mid-flight. Nothing is
// persisted for such jobs; the run is logged and dropped.
var errAbandoned = errors.New("job record removed while processing")

// Processor runs one job at a time through the full lifecycle.
type Processor struct {
	logger     *slog.Logger
	store      *jobs.Store
	media      MediaSource
	recognizer Recognizer
	signal     *shutdown.Signal

	dataDir   string
	maxAge    time.Duration
	fallbacks []string
}

// NewProcessor assembles a processor from its collaborators.
func NewProcessor(logger *slog.Logger, cfg *config.Config, store *jobs.Store, source MediaSource, recognizer Recognizer, signal *shutdown.Signal) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		store:      store,
		media:      source,
		recognizer: recognizer,
		signal:     signal,
		dataDir:    cfg.Paths.DataDir,
		maxAge:     time.Duration(cfg.Workflow.CleanupMaxAgeHours) * time.Hour,
		fallbacks:  cfg.Workflow.FallbackLanguages,
	}
}

// ProcessJob drives a job to a terminal status. The returned error reports
// what went wrong for the caller's log; the job record itself is already
// updated (or abandoned when its record disappeared mid-run). The job's
// working directory is removed regardless of outcome, and stale directories
// left over from earlier crashes are swept alongside it.
func (p *Processor) ProcessJob(ctx context.Context, job *jobs.Job) error {
	log := p.logger.With(logging.FieldJobID, job.ID)
	defer p.cleanup(log, job.ID)

	if err := p.signal.Check(); err != nil {
		return p.fail(ctx, log, job, Fail(KindCancelled, err))
	}

	job.Status = jobs.StatusDownloading
	job.Progress = 0
	if err := p.persist(ctx, log, job, "downloading"); err != nil {
		return err
	}
	log.Info("processing job", logging.String(logging.FieldURL, job.URL))

	info := p.probe(ctx, log, job)

	if info != nil && !info.Tracks.Empty() {
		segments, selection, ok := p.fromCaptions(ctx, log, info.Tracks, job.Language)
		if ok {
			result := &transcript.Result{Segments: segments, Language: selection.Language}
			return p.complete(ctx, log, job, result, jobs.SourceSubtitles)
		}
	}

	if err := p.signal.Check(); err != nil {
		return p.fail(ctx, log, job, Fail(KindCancelled, err))
	}

	result, err := p.fromAudio(ctx, log, job)
	if err != nil {
		if errors.Is(err, errAbandoned) {
			return err
		}
		// A cancelled run context kills the engine before the cooperative
		// check between segments can fire, and the engine surfaces that as
		// its own wrapped error. Classify by the signal and the context so
		// both paths carry the cancellation label.
		if errors.Is(err, shutdown.ErrRequested) || errors.Is(err, context.Canceled) || p.signal.Requested() {
			return p.fail(ctx, log, job, Fail(KindCancelled, shutdown.ErrRequested))
		}
		return p.fail(ctx, log, job, err)
	}
	return p.complete(ctx, log, job, result, jobs.SourceWhisper)
}

// probe fetches title, duration and the caption inventory. A probe failure
// is not fatal: the audio fallback recovers the metadata on its own.
func (p *Processor) probe(ctx context.Context, log *slog.Logger, job *jobs.Job) *media.CaptionInfo {
	info, err := p.media.ProbeCaptions(ctx, job.URL)
	if err != nil {
		log.Warn("caption probe failed, falling back to recognition", logging.Error(err))
		return nil
	}
	job.Title = info.Title
	job.DurationSeconds = info.Duration
	return info
}

// fromCaptions attempts the fast path: pick a track, download it, decode it.
// Any miss along the way logs and returns ok=false so the caller falls
// through to recognition.
func (p *Processor) fromCaptions(ctx context.Context, log *slog.Logger, set captions.TrackSet, preferred string) ([]transcript.Segment, captions.Selection, bool) {
	selection, ok := captions.Select(set, preferred, p.fallbacks)
	if !ok {
		return nil, captions.Selection{}, false
	}
	track, ok := set.PreferredTrack(selection)
	if !ok {
		return nil, captions.Selection{}, false
	}
	log.Info("using existing caption track",
		logging.String("track_language", track.Language),
		logging.Bool("auto_generated", track.Auto),
		logging.String("encoding", string(track.Encoding)))

	data, err := p.media.DownloadTrack(ctx, track)
	if err != nil {
		log.Warn("caption download failed, falling back to recognition", logging.Error(err))
		return nil, captions.Selection{}, false
	}

	var segments []transcript.Segment
	switch track.Encoding {
	case captions.EncodingJSON3:
		segments, err = captions.ParseJSON3(data)
		if err != nil {
			log.Warn("caption decode failed, falling back to recognition", logging.Error(err))
			return nil, captions.Selection{}, false
		}
	default:
		segments = captions.ParseVTT(data)
	}
	if len(segments) == 0 {
		log.Warn("caption track decoded to nothing, falling back to recognition")
		return nil, captions.Selection{}, false
	}
	return segments, selection, true
}

// fromAudio runs the fallback: download the audio, then stream it through
// the recognition engine, persisting throttled progress along the way.
func (p *Processor) fromAudio(ctx context.Context, log *slog.Logger, job *jobs.Job) (*transcript.Result, error) {
	workDir, err := storage.EnsureJobDir(p.dataDir, job.ID)
	if err != nil {
		return nil, Fail(KindFetchFailed, err)
	}

	log.Info("downloading audio")
	audio, err := p.media.FetchAudio(ctx, job.URL, workDir)
	if err != nil {
		return nil, Fail(KindFetchFailed, err)
	}
	if job.Title == "" {
		job.Title = audio.Title
	}
	if job.DurationSeconds <= 0 {
		job.DurationSeconds = audio.Duration
	}

	job.Status = jobs.StatusTranscribing
	job.Progress = progress.SetupPercent
	if err := p.persist(ctx, log, job, "transcribing"); err != nil {
		return nil, err
	}
	log.Info("transcribing audio", logging.Float64("duration_seconds", job.DurationSeconds))

	throttle := progress.NewThrottle()
	onSegment := func(segment transcript.Segment) error {
		if err := p.signal.Check(); err != nil {
			return err
		}
		pct, emit := throttle.Update(segment.End, job.DurationSeconds)
		if !emit {
			return nil
		}
		job.Progress = pct
		return p.persist(ctx, log, job, "progress")
	}

	result, err := p.recognizer.Transcribe(ctx, audio.Path, job.Language, onSegment)
	if err != nil {
		if errors.Is(err, shutdown.ErrRequested) || errors.Is(err, errAbandoned) {
			return nil, err
		}
		return nil, Fail(KindRecognitionFailed, err)
	}
	return result, nil
}

// complete marks the job done and stores the rendered result.
func (p *Processor) complete(ctx context.Context, log *slog.Logger, job *jobs.Job, result *transcript.Result, source string) error {
	segmentsJSON, err := transcript.MarshalSegments(result.Segments)
	if err != nil {
		return p.fail(ctx, log, job, Failf(KindRecognitionFailed, "encode segments: %v", err))
	}

	now := time.Now().UTC()
	job.Status = jobs.StatusDone
	job.Progress = 100
	job.ResultText = transcript.JoinText(result.Segments)
	job.ResultSegmentsJSON = segmentsJSON
	job.DetectedLanguage = result.Language
	job.Source = source
	job.Error = ""
	job.CompletedAt = &now
	if err := p.persist(context.WithoutCancel(ctx), log, job, "done"); err != nil {
		return err
	}
	log.Info("job complete",
		logging.String("source", source),
		logging.String("detected_language", result.Language),
		logging.Int("segments", len(result.Segments)))
	return nil
}

// fail marks the job failed with the error's rendered label. The terminal
// write runs on a detached context: a run cancelled during shutdown must
// still land its FAILED record.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, job *jobs.Job, cause error) error {
	now := time.Now().UTC()
	job.Status = jobs.StatusFailed
	job.Error = cause.Error()
	job.CompletedAt = &now
	if err := p.persist(context.WithoutCancel(ctx), log, job, "failed"); err != nil {
		return err
	}
	log.Error("job failed", logging.Error(cause))
	return cause
}

// persist writes the job record back. A vanished record aborts the run
// without retrying: someone deleted the job, its outcome no longer matters.
func (p *Processor) persist(ctx context.Context, log *slog.Logger, job *jobs.Job, phase string) error {
	err := p.store.Update(ctx, job)
	if err == nil {
		return nil
	}
	if errors.Is(err, jobs.ErrNotFound) {
		log.Warn("job record removed while processing, abandoning",
			logging.String(logging.FieldPhase, phase))
		return Fail(KindNotFound, errAbandoned)
	}
	return fmt.Errorf("persist job (%s): %w", phase, err)
}

// cleanup removes the job's working directory and sweeps stale siblings.
// Failures here never alter the job's terminal status; they are only logged.
func (p *Processor) cleanup(log *slog.Logger, jobID string) {
	if err := storage.RemoveJobDir(p.dataDir, jobID); err != nil {
		log.Warn("workspace cleanup failed", logging.Error(Fail(KindCleanupFailed, err)))
	}
	storage.Sweep(log, p.dataDir, p.maxAge)
}
