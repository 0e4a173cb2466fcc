package notes

import (
	"fmt"
	"strings"
)

// Segment is one timestamped unit of transcribed speech. Times are seconds
// from the start of the source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the output of the transcribe stage. Immutable once written.
// Segments are ordered non-decreasing by start time, and every segment spans
// a positive interval. Zero segments is a valid transcript (silent audio).
type Transcript struct {
	Language string    `json:"language,omitempty"`
	FullText string    `json:"full_text"`
	Segments []Segment `json:"segments"`
}

// Validate enforces the segment ordering invariant.
func (t Transcript) Validate() error {
	prevStart := -1.0
	for i, seg := range t.Segments {
		if seg.Start >= seg.End {
			return fmt.Errorf("segment %d: start %.3f not before end %.3f", i, seg.Start, seg.End)
		}
		if seg.Start < prevStart {
			return fmt.Errorf("segment %d: start %.3f precedes previous start %.3f", i, seg.Start, prevStart)
		}
		prevStart = seg.Start
	}
	return nil
}

// JoinText concatenates segment text, used when a backend does not supply the
// full transcript as one string.
func (t Transcript) JoinText() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// FormatTimestamp renders seconds as MM:SS (or H:MM:SS past one hour).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
