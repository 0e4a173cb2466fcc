package stage

import (
	"context"

	"vidnote/internal/notes"
)

// Request carries the immutable task inputs through the pipeline stages.
type Request struct {
	TaskID   string
	VideoURL string
	Style    notes.Style
	Model    string
	Extras   string
}

// Downloader fetches the audio track and source metadata for a video URL.
// FetchVideo retrieves the full video file when frame extraction requires it.
type Downloader interface {
	FetchAudio(ctx context.Context, req Request, destDir string) (*notes.AudioMeta, error)
	FetchVideo(ctx context.Context, req Request, destDir string) (string, error)
	HealthCheck(ctx context.Context) Health
}

// Transcriber converts an audio file into a timestamped transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request, meta *notes.AudioMeta) (*notes.Transcript, error)
	HealthCheck(ctx context.Context) Health
}

// Summarizer renders a markdown note from a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, req Request, meta *notes.AudioMeta, transcript *notes.Transcript) (*notes.Note, error)
	HealthCheck(ctx context.Context) Health
}
