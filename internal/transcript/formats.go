package transcript

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format identifies one of the supported transcript export encodings.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
)

var formatSet = map[Format]struct{}{
	FormatSRT:  {},
	FormatVTT:  {},
	FormatTXT:  {},
	FormatJSON: {},
}

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, bool) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	_, ok := formatSet[normalized]
	return normalized, ok
}

// Formats returns the supported format names in stable order.
func Formats() []string {
	names := make([]string, 0, len(formatSet))
	for f := range formatSet {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render converts segments into the requested format.
func Render(f Format, segments []Segment) (string, error) {
	switch f {
	case FormatSRT:
		return ToSRT(segments), nil
	case FormatVTT:
		return ToVTT(segments), nil
	case FormatTXT:
		return ToTXT(segments), nil
	case FormatJSON:
		return ToJSON(segments)
	default:
		return "", fmt.Errorf("unsupported format %q", string(f))
	}
}

// ToSRT renders numbered SRT cues. SRT uses a comma as the millisecond
// separator.
func ToSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(seg.Start, ','), formatTimestamp(seg.End, ','))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ToVTT renders WebVTT cues. VTT uses a dot as the millisecond separator.
func ToVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(seg.Start, '.'), formatTimestamp(seg.End, '.'))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ToTXT renders the plain transcript, one segment per line.
func ToTXT(segments []Segment) string {
	return JoinText(segments)
}

// ToJSON renders the segment array as indented JSON.
func ToJSON(segments []Segment) (string, error) {
	if segments == nil {
		segments = []Segment{}
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}
	return string(data), nil
}

func formatTimestamp(seconds float64, msSep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, msSep, millis)
}
