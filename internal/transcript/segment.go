package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is one timed unit of transcript text. Offsets are in seconds and
// End is never before Start. Segments are treated as immutable once produced.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result bundles an ordered segment sequence with the language the producer
// detected (or was told to assume).
type Result struct {
	Segments []Segment
	Language string
}

// JoinText returns the plain transcript, one segment per line.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, "\n")
}

// MarshalSegments encodes segments as the JSON array persisted on the job
// record and returned by the API.
func MarshalSegments(segments []Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}
	return string(data), nil
}

// UnmarshalSegments decodes the persisted segment JSON. An empty payload
// yields an empty slice.
func UnmarshalSegments(data string) ([]Segment, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var segments []Segment
	if err := json.Unmarshal([]byte(data), &segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	return segments, nil
}
