package notes_test

import (
	"testing"

	"vidnote/internal/notes"
)

func TestParseStyle(t *testing.T) {
	if style, ok := notes.ParseStyle(""); !ok || style != notes.StyleDetailed {
		t.Fatalf("empty style should default to detailed, got %q %v", style, ok)
	}
	if style, ok := notes.ParseStyle("  Minimal "); !ok || style != notes.StyleMinimal {
		t.Fatalf("expected normalized minimal, got %q %v", style, ok)
	}
	if _, ok := notes.ParseStyle("unknown"); ok {
		t.Fatal("unknown style should be rejected")
	}
}

func TestAllStylesHaveDescriptions(t *testing.T) {
	styles := notes.AllStyles()
	if len(styles) != 6 {
		t.Fatalf("expected 6 styles, got %d", len(styles))
	}
	for _, style := range styles {
		if style.Description() == "" {
			t.Errorf("style %q has no description", style)
		}
	}
}

func TestTranscriptValidate(t *testing.T) {
	valid := notes.Transcript{Segments: []notes.Segment{
		{Start: 0, End: 2.5, Text: "hello"},
		{Start: 2.5, End: 4, Text: "world"},
		{Start: 2.5, End: 6, Text: "overlap is fine"},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transcript rejected: %v", err)
	}

	empty := notes.Transcript{}
	if err := empty.Validate(); err != nil {
		t.Fatalf("empty transcript rejected: %v", err)
	}

	inverted := notes.Transcript{Segments: []notes.Segment{{Start: 3, End: 3, Text: "x"}}}
	if err := inverted.Validate(); err == nil {
		t.Fatal("zero-length segment accepted")
	}

	unordered := notes.Transcript{Segments: []notes.Segment{
		{Start: 5, End: 6, Text: "late"},
		{Start: 1, End: 2, Text: "early"},
	}}
	if err := unordered.Validate(); err == nil {
		t.Fatal("unordered segments accepted")
	}
}

func TestJoinText(t *testing.T) {
	tr := notes.Transcript{Segments: []notes.Segment{
		{Start: 0, End: 1, Text: " one "},
		{Start: 1, End: 2, Text: ""},
		{Start: 2, End: 3, Text: "two"},
	}}
	if got := tr.JoinText(); got != "one two" {
		t.Fatalf("unexpected joined text %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:      "00:00",
		75.4:   "01:15",
		3671.0: "1:01:11",
	}
	for in, want := range cases {
		if got := notes.FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}
