// Package media wraps yt-dlp for two of the pipeline's collaborators: the
// metadata/caption probe (no media transfer) and the audio fetch. Both are
// exec-based with an injectable command runner so tests never shell out.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tscribe/internal/captions"
	"tscribe/internal/config"
)

// CaptionInfo bundles the metadata returned by the caption probe with the
// available caption tracks. Even when the audio download is skipped, the job
// record still needs the title and duration.
type CaptionInfo struct {
	Title    string
	Duration float64
	Tracks   captions.TrackSet
}

// AudioResult describes a completed audio fetch.
type AudioResult struct {
	Path     string
	Title    string
	Duration float64
}

// audioFileName is the fixed name of the extracted audio inside a job's
// working directory.
const audioFileName = "audio.wav"

// Client invokes yt-dlp and downloads caption track content.
type Client struct {
	binary     string
	httpClient *http.Client

	// commandOutput runs a command and returns its stdout; overridable for
	// tests.
	commandOutput func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewClient constructs a media client from configuration.
func NewClient(cfg *config.Config) *Client {
	binary := "yt-dlp"
	timeout := 30 * time.Second
	if cfg != nil {
		if b := strings.TrimSpace(cfg.Media.YtDlpBinary); b != "" {
			binary = b
		}
		if cfg.Media.RequestTimeout > 0 {
			timeout = time.Duration(cfg.Media.RequestTimeout) * time.Second
		}
	}
	return &Client{
		binary:     binary,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithCommandOutput sets a custom command runner (for testing).
func (c *Client) WithCommandOutput(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	c.commandOutput = runner
}

// WithHTTPClient sets a custom HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

func (c *Client) output(ctx context.Context, args ...string) ([]byte, error) {
	if c.commandOutput != nil {
		return c.commandOutput(ctx, c.binary, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// infoJSON mirrors the slice of yt-dlp's info dict the pipeline consumes.
type infoJSON struct {
	Title             string                      `json:"title"`
	Duration          float64                     `json:"duration"`
	Subtitles         map[string][]subtitleFormat `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleFormat `json:"automatic_captions"`
}

type subtitleFormat struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// ProbeCaptions extracts metadata and the available caption tracks for a URL
// without transferring any media.
func (c *Client) ProbeCaptions(ctx context.Context, url string) (*CaptionInfo, error) {
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--write-subs",
		"--write-auto-subs",
		"--quiet",
		"--no-warnings",
		url,
	}
	out, err := c.output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("probe captions: %w", err)
	}

	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("probe captions: decode info: %w", err)
	}

	return &CaptionInfo{
		Title:    info.Title,
		Duration: info.Duration,
		Tracks: captions.TrackSet{
			Manual: buildTracks(info.Subtitles, false),
			Auto:   buildTracks(info.AutomaticCaptions, true),
		},
	}, nil
}

func buildTracks(formats map[string][]subtitleFormat, auto bool) map[string][]captions.Track {
	if len(formats) == 0 {
		return nil
	}
	tracks := make(map[string][]captions.Track, len(formats))
	for lang, renditions := range formats {
		list := make([]captions.Track, 0, len(renditions))
		for _, rendition := range renditions {
			if strings.TrimSpace(rendition.URL) == "" {
				continue
			}
			list = append(list, captions.Track{
				Language: lang,
				Auto:     auto,
				Encoding: trackEncoding(rendition.Ext),
				URL:      rendition.URL,
			})
		}
		if len(list) > 0 {
			tracks[lang] = list
		}
	}
	return tracks
}

func trackEncoding(ext string) captions.Encoding {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case "json3":
		return captions.EncodingJSON3
	case "vtt":
		return captions.EncodingVTT
	case "srt":
		return captions.EncodingSRT
	default:
		return captions.Encoding(strings.ToLower(strings.TrimSpace(ext)))
	}
}

// DownloadTrack fetches a caption track's raw content.
func (c *Client) DownloadTrack(ctx context.Context, track captions.Track) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("download track: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download track: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download track: read body: %w", err)
	}
	return data, nil
}

// FetchAudio downloads the best audio-only stream for a URL into destDir and
// converts it to WAV. The info dict yt-dlp prints after the download supplies
// the title and duration.
func (c *Client) FetchAudio(ctx context.Context, url, destDir string) (*AudioResult, error) {
	args := []string{
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "wav",
		"-o", filepath.Join(destDir, "audio.%(ext)s"),
		"--print-json",
		"--quiet",
		"--no-warnings",
		url,
	}
	out, err := c.output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}

	var info infoJSON
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("fetch audio: decode info: %w", err)
	}

	return &AudioResult{
		Path:     filepath.Join(destDir, audioFileName),
		Title:    info.Title,
		Duration: info.Duration,
	}, nil
}
