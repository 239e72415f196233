package recognize

import (
	"regexp"
	"strconv"
	"strings"

	"tscribe/internal/transcript"
)

// segmentRe matches the engine's progress lines, e.g.
// "[00:12.340 --> 00:15.120]  some spoken text" with an optional hours part.
var segmentRe = regexp.MustCompile(`^\[(?:(\d{1,2}):)?(\d{1,2}):(\d{2})\.(\d{1,3}) --> (?:(\d{1,2}):)?(\d{1,2}):(\d{2})\.(\d{1,3})\]\s*(.*)$`)

// detectedRe matches lines such as
// "Detected language 'German' with probability 0.99" and
// "Detected language: de".
var detectedRe = regexp.MustCompile(`^Detected language[:\s]+'?([A-Za-z-]+)'?`)

// languageNames maps the engine's spelled-out names back to codes. Entries
// cover the languages the engine names in prose; unknown names pass through
// lowercased.
var languageNames = map[string]string{
	"english":    "en",
	"german":     "de",
	"french":     "fr",
	"spanish":    "es",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"turkish":    "tr",
	"arabic":     "ar",
	"ukrainian":  "uk",
	"czech":      "cs",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

func parseDetectedLanguage(line string) (string, bool) {
	m := detectedRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	name := strings.ToLower(m[1])
	if code, ok := languageNames[name]; ok {
		return code, true
	}
	return name, true
}

func parseSegmentLine(line string) (transcript.Segment, bool) {
	m := segmentRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return transcript.Segment{}, false
	}
	text := strings.TrimSpace(m[9])
	if text == "" {
		return transcript.Segment{}, false
	}
	return transcript.Segment{
		Start: stampSeconds(m[1], m[2], m[3], m[4]),
		End:   stampSeconds(m[5], m[6], m[7], m[8]),
		Text:  text,
	}, true
}

func stampSeconds(hours, minutes, seconds, millis string) float64 {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	for len(millis) < 3 {
		millis += "0"
	}
	ms, _ := strconv.Atoi(millis)
	return float64(h)*3600 + float64(m)*60 + float64(s) + float64(ms)/1000
}
