// Package recognize adapts the speech-recognition engine. The engine runs as
// an external process and its stdout is consumed one segment line at a time,
// so callers observe segments lazily, long before the run completes.
package recognize

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"tscribe/internal/config"
	"tscribe/internal/transcript"
)

// whisperCommand is the faster-whisper CLI launched through uvx.
const whisperCommand = "whisper-ctranslate2"

// Config contains the engine invocation parameters.
type Config struct {
	Model       string
	Device      string
	ComputeType string
	UVXBinary   string
}

// ConfigFromApp derives engine settings from the application config.
func ConfigFromApp(cfg *config.Config) Config {
	out := Config{
		Model:       "base",
		Device:      "auto",
		ComputeType: "int8",
		UVXBinary:   "uvx",
	}
	if cfg == nil {
		return out
	}
	if v := strings.TrimSpace(cfg.Whisper.Model); v != "" {
		out.Model = v
	}
	if v := strings.TrimSpace(cfg.Whisper.Device); v != "" {
		out.Device = v
	}
	if v := strings.TrimSpace(cfg.Whisper.ComputeType); v != "" {
		out.ComputeType = v
	}
	if v := strings.TrimSpace(cfg.Whisper.UVXBinary); v != "" {
		out.UVXBinary = v
	}
	return out
}

// SegmentFunc receives each segment as it is produced. A non-nil return
// aborts the run; the engine kills the process and surfaces the error
// unchanged.
type SegmentFunc func(transcript.Segment) error

// Engine invokes the recognition process and streams its output.
type Engine struct {
	cfg Config

	// streamCommand starts a command and returns its stdout stream plus a
	// wait function; overridable for tests.
	streamCommand func(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error)
}

// NewEngine creates a recognition engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = "uvx"
	}
	return &Engine{cfg: cfg}
}

// WithStreamCommand sets a custom process launcher (for testing).
func (e *Engine) WithStreamCommand(launcher func(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error)) {
	e.streamCommand = launcher
}

// Model returns the configured model name for logging.
func (e *Engine) Model() string {
	if e.cfg.Model != "" {
		return e.cfg.Model
	}
	return "base"
}

func (e *Engine) buildArgs(audioPath, language string) []string {
	args := []string{
		whisperCommand,
		"--model", e.Model(),
		"--device", e.cfg.Device,
		"--compute_type", e.cfg.ComputeType,
		"--output_format", "json",
		"--verbose", "True",
	}
	if language = strings.TrimSpace(language); language != "" {
		args = append(args, "--language", language)
	}
	return append(args, audioPath)
}

func (e *Engine) start(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error) {
	if e.streamCommand != nil {
		return e.streamCommand(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}
	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	return stdout, wait, nil
}

// Transcribe runs the engine over an audio file. onSegment, when non-nil, is
// invoked once per produced segment before the next one is read; returning an
// error from it aborts the run. The detected language falls back to the
// requested one when the engine never reports a detection.
func (e *Engine) Transcribe(ctx context.Context, audioPath, language string, onSegment SegmentFunc) (*transcript.Result, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, fmt.Errorf("transcribe: audio path required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdout, wait, err := e.start(runCtx, e.cfg.UVXBinary, e.buildArgs(audioPath, language)...)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	result := &transcript.Result{Language: "unknown"}
	if language != "" {
		result.Language = language
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var callbackErr error
	for scanner.Scan() {
		line := scanner.Text()
		if detected, ok := parseDetectedLanguage(line); ok {
			result.Language = detected
			continue
		}
		segment, ok := parseSegmentLine(line)
		if !ok {
			continue
		}
		result.Segments = append(result.Segments, segment)
		if onSegment != nil {
			if callbackErr = onSegment(segment); callbackErr != nil {
				break
			}
		}
	}

	if callbackErr != nil {
		// Abort the in-flight process; its exit status is irrelevant now.
		cancel()
		_ = stdout.Close()
		if wait != nil {
			_ = wait()
		}
		return nil, callbackErr
	}
	if err := scanner.Err(); err != nil {
		_ = stdout.Close()
		if wait != nil {
			_ = wait()
		}
		return nil, fmt.Errorf("whisper: read output: %w", err)
	}
	if wait != nil {
		if err := wait(); err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
	}
	return result, nil
}
