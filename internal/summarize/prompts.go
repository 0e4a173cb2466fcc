package summarize

import (
	"fmt"
	"strings"

	"vidnote/internal/notes"
)

// systemPrompt instructs the model to stay faithful to the transcript and
// emit bare markdown.
const systemPrompt = `You are a professional video note assistant. You turn video
transcripts into clear, well organized, information-dense Markdown notes.

Output requirements:
- Return only the final Markdown content.
- Do NOT wrap the output in a code fence such as ` + "```markdown" + `.
- Write numbered section headings as "## 1. Heading", not as ordered list items.
- Use LaTeX syntax for any mathematical formulas mentioned in the video.

Core principles:
1. Stay strictly faithful to the transcript. Never add information the
   transcript does not contain, such as background knowledge or term
   definitions the speaker never gave.
2. Reorganizing is allowed: rephrase, split into sections, add headings and
   lists. That is normal note taking.
3. If you must add something the transcript lacks entirely, mark it "(note)".
4. Preserve the speaker's meaning, even for casual phrasing. Do not
   over-summarize or editorialize.
5. Drop ads, filler words, and greetings.
6. Keep relevant details, facts, examples, conclusions, and advice.
7. Prefer bullet points and short paragraphs.
8. Organize with a sensible heading hierarchy.`

var styleInstructions = map[notes.Style]string{
	notes.StyleMinimal:  "Style: **minimal** - record only the essential points, at most 3 bullets per section.",
	notes.StyleDetailed: "Style: **detailed** - capture the full content including specifics, examples, and data.",
	notes.StyleAcademic: "Style: **academic** - use academic register with claims, supporting evidence, and citation-style references.",
	notes.StyleTutorial: "Style: **tutorial** - record the procedure step by step, including key commands or code and where screenshots belong.",
	notes.StyleMeeting:  "Style: **meeting minutes** - cover agenda items, discussion points, decisions, and action items.",
	notes.StyleXiaohongshu: "Style: **xiaohongshu** - use emoji and a light, upbeat tone, add a catchy title, " +
		"lean on bold and highlights, and use exclamation marks for energy.",
}

// BuildUserPrompt assembles the user message from the video title, the
// timestamped transcript, the note style, and optional extra instructions.
func BuildUserPrompt(title string, transcript *notes.Transcript, style notes.Style, extras string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video title: %s\n\n", title)
	b.WriteString("Timestamped transcript (format: time - text):\n---\n")
	for _, segment := range transcript.Segments {
		fmt.Fprintf(&b, "%s - %s\n", notes.FormatTimestamp(segment.Start), segment.Text)
	}
	b.WriteString("---\n\n")
	b.WriteString("Generate a structured video note from the transcript above.\n")
	b.WriteString("End the note with an \"## AI Summary\" section of 3-5 sentences covering the core content.\n\n")

	instruction, ok := styleInstructions[style]
	if !ok {
		instruction = styleInstructions[notes.StyleDetailed]
	}
	b.WriteString(instruction)

	if extras = strings.TrimSpace(extras); extras != "" {
		b.WriteString("\nAdditional requirements: ")
		b.WriteString(extras)
	}
	return b.String()
}

// stripCodeFence removes a markdown code fence wrapping the whole response,
// which some models emit despite instructions.
func stripCodeFence(markdown string) string {
	trimmed := strings.TrimSpace(markdown)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.SplitN(trimmed, "\n", 2)
	if len(lines) < 2 {
		return trimmed
	}
	body := lines[1]
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
