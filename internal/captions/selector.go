package captions

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Selection names the caption track the cascade settled on.
type Selection struct {
	Language string
	Auto     bool
}

// Select picks the best available caption track. The cascade, first match
// wins:
//
//  1. manual track in the preferred language
//  2. auto track in the preferred language
//  3. manual track in each fallback language, in order
//  4. auto track in each fallback language, in order
//  5. any manual track (first by sorted language key)
//  6. any auto track (first by sorted language key)
//
// Language comparison tolerates regional subtags, so an "en-US" track
// satisfies a preference for "en". Returns ok=false only when the set holds
// no tracks at all.
func Select(set TrackSet, preferred string, fallbacks []string) (Selection, bool) {
	sources := []struct {
		tracks map[string][]Track
		auto   bool
	}{
		{set.Manual, false},
		{set.Auto, true},
	}

	if preferred = strings.TrimSpace(preferred); preferred != "" {
		for _, source := range sources {
			if key, ok := matchLanguage(source.tracks, preferred); ok {
				return Selection{Language: key, Auto: source.auto}, true
			}
		}
	}

	for _, fallback := range fallbacks {
		for _, source := range sources {
			if key, ok := matchLanguage(source.tracks, fallback); ok {
				return Selection{Language: key, Auto: source.auto}, true
			}
		}
	}

	for _, source := range sources {
		if key, ok := firstKey(source.tracks); ok {
			return Selection{Language: key, Auto: source.auto}, true
		}
	}

	return Selection{}, false
}

// matchLanguage finds a track key matching the wanted language: exact match
// first, then a shared primary language base (en matches en-US and en-GB).
func matchLanguage(tracks map[string][]Track, want string) (string, bool) {
	want = strings.TrimSpace(want)
	if want == "" || len(tracks) == 0 {
		return "", false
	}
	if _, ok := tracks[want]; ok {
		return want, true
	}

	wantBase, confidence := language.Make(want).Base()
	if confidence == language.No {
		return "", false
	}
	for _, key := range sortedKeys(tracks) {
		base, conf := language.Make(key).Base()
		if conf != language.No && base == wantBase {
			return key, true
		}
	}
	return "", false
}

func firstKey(tracks map[string][]Track) (string, bool) {
	keys := sortedKeys(tracks)
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

func sortedKeys(tracks map[string][]Track) []string {
	keys := make([]string, 0, len(tracks))
	for key := range tracks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
