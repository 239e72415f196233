package captions

import (
	"encoding/json"
	"fmt"
	"strings"

	"tscribe/internal/transcript"
)

type json3Document struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	StartMs    int64      `json:"tStartMs"`
	DurationMs int64      `json:"dDurationMs"`
	Segs       []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// ParseJSON3 decodes the structured JSON caption format into segments.
// Events without text fragments, and events whose joined text is empty or
// whitespace-only, are skipped. Offsets are milliseconds on the wire and
// seconds on the way out.
func ParseJSON3(data []byte) ([]transcript.Segment, error) {
	var doc json3Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json3: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(doc.Events))
	for _, event := range doc.Events {
		if len(event.Segs) == 0 {
			continue
		}
		parts := make([]string, 0, len(event.Segs))
		for _, seg := range event.Segs {
			text := strings.TrimSpace(seg.UTF8)
			if text != "" {
				parts = append(parts, text)
			}
		}
		combined := strings.TrimSpace(strings.Join(parts, " "))
		if combined == "" {
			continue
		}

		start := float64(event.StartMs) / 1000.0
		end := float64(event.StartMs+event.DurationMs) / 1000.0
		segments = append(segments, transcript.Segment{Start: start, End: end, Text: combined})
	}
	return segments, nil
}
