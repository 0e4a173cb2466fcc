package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidnote/internal/config"
	"vidnote/internal/notes"
	"vidnote/internal/services"
	"vidnote/internal/stage"
)

// WhisperCLI transcribes audio with a local whisper.cpp command line binary.
// The audio is first converted to mono 16kHz WAV with ffmpeg, which is the
// only input format the binary accepts reliably.
type WhisperCLI struct {
	binary        string
	ffmpegBinary  string
	model         string
	language      string
	timeout       time.Duration
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperCLI builds the local transcriber from configuration.
func NewWhisperCLI(cfg *config.Config) *WhisperCLI {
	return &WhisperCLI{
		binary:       cfg.Transcriber.Binary,
		ffmpegBinary: cfg.Downloader.FFmpegBinary,
		model:        cfg.Transcriber.Model,
		language:     cfg.Transcriber.Language,
		timeout:      time.Duration(cfg.Transcriber.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperCLI) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

// whisperOutput mirrors the JSON file the whisper.cpp CLI writes with -oj.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe converts the downloaded audio into a timestamped transcript.
// Silent audio yields an empty transcript, not an error.
func (w *WhisperCLI) Transcribe(ctx context.Context, req stage.Request, meta *notes.AudioMeta) (*notes.Transcript, error) {
	if meta == nil || meta.AudioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "check input", "audio metadata missing", nil)
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	workDir := filepath.Dir(meta.AudioPath)
	wavPath := filepath.Join(workDir, "transcribe_input.wav")
	if err := w.run(ctx, w.ffmpegBinary,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", meta.AudioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		wavPath,
	); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "prepare audio", "ffmpeg conversion failed", err)
	}
	defer os.Remove(wavPath)

	outputPrefix := filepath.Join(workDir, "transcribe_output")
	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"-oj",
		"-of", outputPrefix,
	}
	if w.language != "" {
		args = append(args, "-l", w.language)
	}
	if err := w.run(ctx, w.binary, args...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "run whisper", "whisper-cli failed", err)
	}

	jsonPath := outputPrefix + ".json"
	defer os.Remove(jsonPath)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "read output", "whisper-cli wrote no JSON output", err)
	}

	var payload whisperOutput
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "parse output", "whisper-cli JSON unparseable", err)
	}

	transcript := &notes.Transcript{Language: payload.Result.Language}
	for _, entry := range payload.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, notes.Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  text,
		})
	}
	transcript.FullText = transcript.JoinText()
	return transcript, nil
}

// HealthCheck verifies the whisper binary and model are reachable.
func (w *WhisperCLI) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(w.binary); err != nil {
		return stage.Unhealthy("transcribe", fmt.Sprintf("%s not found in PATH", w.binary))
	}
	return stage.Healthy("transcribe")
}

func (w *WhisperCLI) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
