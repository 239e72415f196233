package captions

import (
	"regexp"
	"strconv"
	"strings"

	"tscribe/internal/transcript"
)

// timingRe matches a cue timing line. The hours component is optional on
// either side and the fractional separator may be a dot or a comma, which
// covers both WebVTT and SRT timestamps.
var timingRe = regexp.MustCompile(
	`^(?:(\d{1,2}):)?(\d{2}):(\d{2})[.,](\d{3})\s*-->\s*(?:(\d{1,2}):)?(\d{2}):(\d{2})[.,](\d{3})`)

// markupRe matches inline cue markup such as <c>, </c.color>, <00:00:01.000>.
var markupRe = regexp.MustCompile(`<[^>]+>`)

// ParseVTT decodes WebVTT (or SRT) cue blocks into segments. Lines that are
// not timing lines advance the scan, which skips headers, bare numeric cue
// identifiers and malformed blocks without aborting the decode. Cues whose
// text is empty after markup stripping are dropped.
func ParseVTT(data []byte) []transcript.Segment {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	segments := make([]transcript.Segment, 0, len(lines)/3)

	i := 0
	for i < len(lines) {
		match := timingRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if match == nil {
			i++
			continue
		}
		start := cueSeconds(match[1], match[2], match[3], match[4])
		end := cueSeconds(match[5], match[6], match[7], match[8])

		i++
		var parts []string
		for i < len(lines) {
			line := strings.TrimSpace(lines[i])
			if line == "" || timingRe.MatchString(line) {
				break
			}
			if clean := strings.TrimSpace(markupRe.ReplaceAllString(line, "")); clean != "" {
				parts = append(parts, clean)
			}
			i++
		}

		text := strings.TrimSpace(strings.Join(parts, " "))
		if text != "" {
			segments = append(segments, transcript.Segment{Start: start, End: end, Text: text})
		}
	}
	return segments
}

func cueSeconds(hours, minutes, seconds, millis string) float64 {
	h := 0
	if hours != "" {
		h, _ = strconv.Atoi(hours)
	}
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	ms, _ := strconv.Atoi(millis)
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000.0
}
