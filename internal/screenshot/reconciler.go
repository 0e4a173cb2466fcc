package screenshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidnote/internal/config"
	"vidnote/internal/notes"
	"vidnote/internal/services"
)

// Policy names for frame placement.
const (
	PolicyEven     = "even"
	PolicyHeadings = "headings"
)

// Reconciler extracts video frames and splices them into the rendered note.
// A failed frame is downgraded to a warning; only a completely unusable video
// fails the stage.
type Reconciler struct {
	ffmpegBinary  string
	policy        string
	maxFrames     int
	timeout       time.Duration
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewReconciler builds the reconciler from configuration.
func NewReconciler(cfg *config.Config) *Reconciler {
	return &Reconciler{
		ffmpegBinary: cfg.Screenshots.FFmpegBinary,
		policy:       cfg.Screenshots.Policy,
		maxFrames:    cfg.Screenshots.MaxFrames,
		timeout:      time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Reconciler) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	r.commandRunner = runner
}

// span is a transcript location selected for a frame.
type span struct {
	segmentIndex int
	start        float64
	end          float64
}

// Reconcile extracts frames for the note and returns the spliced markdown,
// the screenshot references, and any per-frame warnings. Image links use
// paths relative to the task directory.
func (r *Reconciler) Reconcile(ctx context.Context, markdown string, transcript *notes.Transcript, duration float64, videoPath, screenshotDir string) (string, []notes.ScreenshotRef, []string, error) {
	if videoPath == "" {
		return "", nil, nil, services.Wrap(services.ErrFrameExtraction, "screenshot", "check input", "video file missing", nil)
	}
	if _, err := os.Stat(videoPath); err != nil {
		return "", nil, nil, services.Wrap(services.ErrFrameExtraction, "screenshot", "check input", "video file unreadable", err)
	}
	if err := os.MkdirAll(screenshotDir, 0o755); err != nil {
		return "", nil, nil, services.Wrap(services.ErrFrameExtraction, "screenshot", "prepare dir", "could not create screenshot directory", err)
	}

	spans := r.selectSpans(markdown, transcript, duration)
	if len(spans) == 0 {
		return markdown, nil, nil, nil
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		refs     []notes.ScreenshotRef
		warnings []string
	)
	for i, sp := range spans {
		name := fmt.Sprintf("frame_%02d.jpg", i+1)
		target := filepath.Join(screenshotDir, name)
		if err := r.extractFrame(ctx, videoPath, sp.start, target); err != nil {
			warnings = append(warnings, fmt.Sprintf("screenshot at %s failed: %v", notes.FormatTimestamp(sp.start), err))
			continue
		}
		refs = append(refs, notes.ScreenshotRef{
			Path:         filepath.Join("screenshots", name),
			SegmentIndex: sp.segmentIndex,
			Start:        sp.start,
			End:          sp.end,
		})
	}

	return r.splice(markdown, refs, duration), refs, warnings, nil
}

// selectSpans picks up to maxFrames transcript locations according to the
// configured policy. Starts are clamped inside the video runtime.
func (r *Reconciler) selectSpans(markdown string, transcript *notes.Transcript, duration float64) []span {
	if transcript == nil || len(transcript.Segments) == 0 || duration <= 0 {
		return nil
	}

	count := r.maxFrames
	if r.policy == PolicyHeadings {
		if headings := countHeadings(markdown); headings < count {
			count = headings
		}
	}
	if count <= 0 {
		return nil
	}
	if count > len(transcript.Segments) {
		count = len(transcript.Segments)
	}

	spans := make([]span, 0, count)
	for i := 0; i < count; i++ {
		// Spread selections evenly across the transcript.
		idx := i * len(transcript.Segments) / count
		segment := transcript.Segments[idx]
		spans = append(spans, span{
			segmentIndex: idx,
			start:        clampStart(segment.Start, duration),
			end:          segment.End,
		})
	}
	return spans
}

func (r *Reconciler) extractFrame(ctx context.Context, videoPath string, start float64, target string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		target,
	}
	if r.commandRunner != nil {
		return r.commandRunner(ctx, r.ffmpegBinary, args...)
	}
	cmd := exec.CommandContext(ctx, r.ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", r.ffmpegBinary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// splice inserts one image link per frame at the paragraph boundary nearest
// to the frame's relative position in the video. The headings policy anchors
// frames under successive headings instead.
func (r *Reconciler) splice(markdown string, refs []notes.ScreenshotRef, duration float64) string {
	if len(refs) == 0 {
		return markdown
	}
	blocks := strings.Split(strings.TrimRight(markdown, "\n"), "\n\n")

	targets := make([]int, 0, len(refs))
	if r.policy == PolicyHeadings {
		headingIdx := headingBlockIndexes(blocks)
		for i := range refs {
			if i < len(headingIdx) {
				targets = append(targets, headingIdx[i])
			} else {
				targets = append(targets, len(blocks)-1)
			}
		}
	} else {
		for _, ref := range refs {
			pos := int(ref.Start / duration * float64(len(blocks)))
			if pos >= len(blocks) {
				pos = len(blocks) - 1
			}
			targets = append(targets, pos)
		}
	}

	// One image per paragraph: bump collisions forward so every frame keeps
	// its own anchor.
	for i := 1; i < len(targets); i++ {
		if targets[i] <= targets[i-1] {
			targets[i] = targets[i-1] + 1
		}
	}

	var b strings.Builder
	inserted := 0
	for blockIdx, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n\n")
		for inserted < len(targets) && targets[inserted] <= blockIdx {
			fmt.Fprintf(&b, "![%s](%s)\n\n", notes.FormatTimestamp(refs[inserted].Start), refs[inserted].Path)
			inserted++
		}
	}
	for ; inserted < len(refs); inserted++ {
		fmt.Fprintf(&b, "![%s](%s)\n\n", notes.FormatTimestamp(refs[inserted].Start), refs[inserted].Path)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func clampStart(start, duration float64) float64 {
	if start < 0 {
		return 0
	}
	if limit := duration - 0.1; start > limit && limit > 0 {
		return limit
	}
	return start
}

func countHeadings(markdown string) int {
	count := 0
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "## ") {
			count++
		}
	}
	return count
}

func headingBlockIndexes(blocks []string) []int {
	var indexes []int
	for i, block := range blocks {
		if strings.HasPrefix(strings.TrimSpace(block), "## ") {
			indexes = append(indexes, i)
		}
	}
	return indexes
}
