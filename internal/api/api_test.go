package api_test

import (
	"errors"
	"testing"
	"time"

	"vidnote/internal/api"
	"vidnote/internal/notes"
	"vidnote/internal/queue"
	"vidnote/internal/services"
)

func TestSubmitNormalize(t *testing.T) {
	req := api.SubmitRequest{VideoURL: "  https://www.youtube.com/watch?v=abc ", Style: "minimal"}
	videoURL, style, err := req.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if videoURL != "https://www.youtube.com/watch?v=abc" || style != notes.StyleMinimal {
		t.Fatalf("unexpected normalization: %q %q", videoURL, style)
	}
}

func TestSubmitNormalizeDefaultsStyle(t *testing.T) {
	_, style, err := api.SubmitRequest{VideoURL: "/tmp/talk.mp4"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if style != notes.StyleDetailed {
		t.Fatalf("empty style should default to detailed, got %q", style)
	}
}

func TestSubmitNormalizeRejectsBadInput(t *testing.T) {
	cases := []api.SubmitRequest{
		{VideoURL: ""},
		{VideoURL: "   "},
		{VideoURL: "ftp://host/video.mp4"},
		{VideoURL: "https://example.com/v", Style: "haiku"},
	}
	for _, req := range cases {
		if _, _, err := req.Normalize(); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("request %+v should fail validation, got %v", req, err)
		}
	}
}

func TestFromTask(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	task := &queue.Task{
		TaskID:       "abc123def456",
		VideoURL:     "https://example.com/v",
		Style:        "detailed",
		Status:       queue.StatusFailed,
		Stage:        "transcribe",
		ErrorKind:    "transcription",
		ErrorMessage: "model load failed",
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Minute),
	}
	view := api.FromTask(task, nil)
	if view.TaskID != task.TaskID || view.Status != "failed" || view.ErrorKind != "transcription" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.CreatedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", view.CreatedAt)
	}
}

func TestAllStylesCoversEveryStyle(t *testing.T) {
	infos := api.AllStyles()
	if len(infos) != len(notes.AllStyles()) {
		t.Fatalf("expected %d styles, got %d", len(notes.AllStyles()), len(infos))
	}
	for _, info := range infos {
		if info.Name == "" || info.Description == "" {
			t.Fatalf("style info incomplete: %+v", info)
		}
	}
}
