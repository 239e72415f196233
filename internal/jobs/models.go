package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
//
// Flow: queued -> downloading -> transcribing -> done
//
//	-> failed (from any non-terminal state)
//
// The downloading status covers both the caption check and the audio fetch;
// which path produced the result is recorded in Source at completion.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// SourceSubtitles tags jobs completed from existing caption tracks.
const SourceSubtitles = "subtitles"

// SourceWhisper tags jobs completed by the speech-recognition engine.
const SourceWhisper = "whisper"

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusTranscribing,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status is final. Once a job is terminal no
// status, progress, result or error field is mutated again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is a transcription request persisted in SQLite. The pipeline reads and
// mutates the record through the store; it never holds one in memory across
// phases.
type Job struct {
	ID                 string
	URL                string
	Language           string
	Status             Status
	Title              string
	DetectedLanguage   string
	DurationSeconds    float64
	Progress           int
	ResultText         string
	ResultSegmentsJSON string
	Error              string
	Source             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j != nil && j.Status.Terminal()
}
