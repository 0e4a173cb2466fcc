package textutil_test

import (
	"testing"

	"vidnote/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"How to: Build/Deploy?": "How to- Build-Deploy",
		"  spaced  ":            "spaced",
		`a<b>c|d"e`:              "abcde",
	}
	for input, want := range cases {
		if got := textutil.SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTitleFromPath(t *testing.T) {
	if got := textutil.TitleFromPath("/drop/intro_to-go.lectures.mp4"); got != "Intro To Go Lectures" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := textutil.TitleFromPath(""); got != "Untitled" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := textutil.Truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := textutil.Truncate("short", 10); got != "short" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
