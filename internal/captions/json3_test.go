package captions

import "testing"

func TestParseJSON3(t *testing.T) {
	data := []byte(`{
		"events": [
			{"tStartMs": 0, "dDurationMs": 5000, "segs": [{"utf8": "Hello"}, {"utf8": " "}, {"utf8": "world"}]},
			{"tStartMs": 5000, "dDurationMs": 2500, "segs": [{"utf8": "Second"}]}
		]
	}`)
	segments, err := ParseJSON3(data)
	if err != nil {
		t.Fatalf("ParseJSON3: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	first := segments[0]
	if first.Start != 0 || first.End != 5.0 || first.Text != "Hello world" {
		t.Errorf("first segment = %+v", first)
	}
	second := segments[1]
	if second.Start != 5.0 || second.End != 7.5 || second.Text != "Second" {
		t.Errorf("second segment = %+v", second)
	}
}

func TestParseJSON3SkipsEmptyEvents(t *testing.T) {
	data := []byte(`{
		"events": [
			{"tStartMs": 0, "dDurationMs": 1000},
			{"tStartMs": 1000, "dDurationMs": 1000, "segs": []},
			{"tStartMs": 2000, "dDurationMs": 1000, "segs": [{"utf8": "\n"}, {"utf8": "  "}]},
			{"tStartMs": 3000, "dDurationMs": 1000, "segs": [{"utf8": "kept"}]}
		]
	}`)
	segments, err := ParseJSON3(data)
	if err != nil {
		t.Fatalf("ParseJSON3: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "kept" {
		t.Errorf("segments = %+v, want single kept segment", segments)
	}
}

func TestParseJSON3MissingOffsets(t *testing.T) {
	data := []byte(`{"events": [{"segs": [{"utf8": "no timing"}]}]}`)
	segments, err := ParseJSON3(data)
	if err != nil {
		t.Fatalf("ParseJSON3: %v", err)
	}
	if len(segments) != 1 || segments[0].Start != 0 || segments[0].End != 0 {
		t.Errorf("segments = %+v", segments)
	}
}

func TestParseJSON3Invalid(t *testing.T) {
	if _, err := ParseJSON3([]byte("{not json")); err == nil {
		t.Error("invalid payload should error")
	}
	segments, err := ParseJSON3([]byte("{}"))
	if err != nil || len(segments) != 0 {
		t.Errorf("empty document = %v, %v", segments, err)
	}
}
