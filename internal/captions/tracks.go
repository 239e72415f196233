package captions

// Encoding identifies how a caption track's raw bytes are laid out.
type Encoding string

const (
	// EncodingJSON3 is the structured JSON event format.
	EncodingJSON3 Encoding = "json3"
	// EncodingVTT is the WebVTT cue-block text format.
	EncodingVTT Encoding = "vtt"
	// EncodingSRT is SubRip text; the cue grammar is close enough to WebVTT
	// that the same decoder handles it.
	EncodingSRT Encoding = "srt"
)

// Track describes one fetchable caption rendition of a media item.
type Track struct {
	Language string
	Auto     bool
	Encoding Encoding
	URL      string
}

// TrackSet partitions a media item's caption tracks into manual and
// auto-generated renditions, keyed by language.
type TrackSet struct {
	Manual map[string][]Track
	Auto   map[string][]Track
}

// Empty reports whether the set contains no tracks at all.
func (ts TrackSet) Empty() bool {
	return len(ts.Manual) == 0 && len(ts.Auto) == 0
}

// Tracks returns the renditions for a selection, preferring the set the
// selection named.
func (ts TrackSet) Tracks(sel Selection) []Track {
	if sel.Auto {
		return ts.Auto[sel.Language]
	}
	return ts.Manual[sel.Language]
}

// PreferredTrack picks the rendition to download for a selection: json3
// first because it is the cheapest to decode, then VTT/SRT, then whatever
// is listed first.
func (ts TrackSet) PreferredTrack(sel Selection) (Track, bool) {
	tracks := ts.Tracks(sel)
	if len(tracks) == 0 {
		return Track{}, false
	}
	for _, track := range tracks {
		if track.Encoding == EncodingJSON3 {
			return track, true
		}
	}
	for _, track := range tracks {
		if track.Encoding == EncodingVTT || track.Encoding == EncodingSRT {
			return track, true
		}
	}
	return tracks[0], true
}
