package notes

import "strings"

// Style selects the tone and structure of the generated note.
type Style string

const (
	StyleMinimal     Style = "minimal"
	StyleDetailed    Style = "detailed"
	StyleAcademic    Style = "academic"
	StyleTutorial    Style = "tutorial"
	StyleMeeting     Style = "meeting"
	StyleXiaohongshu Style = "xiaohongshu"
)

// DefaultStyle is applied when a submission omits the style field.
const DefaultStyle = StyleDetailed

var styleDescriptions = map[Style]string{
	StyleMinimal:     "Core takeaways only, at most a few bullets per section",
	StyleDetailed:    "Full coverage with specifics, examples, and data",
	StyleAcademic:    "Academic register with claims, evidence, and citations",
	StyleTutorial:    "Step-by-step walkthrough with commands and checkpoints",
	StyleMeeting:     "Meeting minutes: agenda, discussion, decisions, action items",
	StyleXiaohongshu: "Social-post tone with emoji, hooks, and bold highlights",
}

var styleOrder = []Style{
	StyleMinimal,
	StyleDetailed,
	StyleAcademic,
	StyleTutorial,
	StyleMeeting,
	StyleXiaohongshu,
}

// AllStyles returns the supported styles in presentation order.
func AllStyles() []Style {
	cp := make([]Style, len(styleOrder))
	copy(cp, styleOrder)
	return cp
}

// ParseStyle normalizes and validates a style value. Empty input yields the
// default style; unknown values are rejected.
func ParseStyle(value string) (Style, bool) {
	normalized := Style(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return DefaultStyle, true
	}
	if _, ok := styleDescriptions[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Description returns the human-readable summary of a style.
func (s Style) Description() string {
	return styleDescriptions[s]
}

// Valid reports whether the style is one of the supported values.
func (s Style) Valid() bool {
	_, ok := styleDescriptions[s]
	return ok
}
