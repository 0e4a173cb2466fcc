package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidnote/internal/download"
	"vidnote/internal/services"
	"vidnote/internal/stage"
	"vidnote/internal/testsupport"
)

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube"},
		{"https://www.bilibili.com/video/BV1xx411c7mD", "bilibili"},
		{"https://b23.tv/abc", "bilibili"},
		{"https://v.douyin.com/xyz", "douyin"},
		{"https://www.tiktok.com/@user/video/1", "tiktok"},
		{"https://www.xiaohongshu.com/explore/1", "xiaohongshu"},
		{"https://example.com/video", "unknown"},
		{"file:///tmp/talk.mp4", "local"},
	}
	for _, tc := range cases {
		if got := download.DetectPlatform(tc.url); got != tc.want {
			t.Errorf("DetectPlatform(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestDetectVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.bilibili.com/video/BV1xx411c7mD", "BV1xx411c7mD"},
		{"https://www.douyin.com/video/123", ""},
	}
	for _, tc := range cases {
		if got := download.DetectVideoID(tc.url); got != tc.want {
			t.Errorf("DetectVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestFetchAudioParsesMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)

	destDir := t.TempDir()
	strategy.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "yt-dlp" {
			t.Fatalf("unexpected binary %q", name)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--audio-format mp3") || !strings.Contains(joined, "--no-playlist") {
			t.Fatalf("missing audio args: %q", joined)
		}
		testsupport.WriteFile(t, filepath.Join(destDir, "dQw4w9WgXcQ.mp3"), 16)
		return []byte(`{"id":"dQw4w9WgXcQ","title":"Never Gonna","duration":212.5,"thumbnail":"https://img.example/t.jpg","uploader":"Rick"}`), nil
	})

	meta, err := strategy.FetchAudio(context.Background(), stage.Request{
		TaskID:   "t1",
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, destDir)
	if err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
	if meta.VideoID != "dQw4w9WgXcQ" || meta.Platform != "youtube" || meta.Duration != 212.5 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.AudioPath != filepath.Join(destDir, "dQw4w9WgXcQ.mp3") {
		t.Fatalf("unexpected audio path: %q", meta.AudioPath)
	}
}

func TestFetchAudioBilibiliHeaders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)

	destDir := t.TempDir()
	strategy.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--referer https://www.bilibili.com/") {
			t.Fatalf("bilibili referer missing: %q", joined)
		}
		testsupport.WriteFile(t, filepath.Join(destDir, "BV1xx411c7mD.mp3"), 16)
		return []byte(`{"id":"BV1xx411c7mD","title":"demo","duration":30}`), nil
	})

	if _, err := strategy.FetchAudio(context.Background(), stage.Request{
		VideoURL: "https://www.bilibili.com/video/BV1xx411c7mD",
	}, destDir); err != nil {
		t.Fatalf("FetchAudio: %v", err)
	}
}

func TestFetchAudioCommandFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)
	strategy.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("network unreachable")
	})

	_, err := strategy.FetchAudio(context.Background(), stage.Request{
		VideoURL: "https://www.youtube.com/watch?v=abc",
	}, t.TempDir())
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
}

func TestFetchAudioMissingOutputFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)
	strategy.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"id":"ghost","title":"x","duration":1}`), nil
	})

	_, err := strategy.FetchAudio(context.Background(), stage.Request{
		VideoURL: "https://www.youtube.com/watch?v=ghost",
	}, t.TempDir())
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected ErrDownload for missing file, got %v", err)
	}
}

func TestFetchVideoLocalPassthrough(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)

	source := filepath.Join(t.TempDir(), "talk.mp4")
	testsupport.WriteFile(t, source, 64)

	path, err := strategy.FetchVideo(context.Background(), stage.Request{VideoURL: source}, t.TempDir())
	if err != nil {
		t.Fatalf("FetchVideo: %v", err)
	}
	if path != source {
		t.Fatalf("local video should be used in place, got %q", path)
	}
}

func TestLocalFileMissingIsValidationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	strategy := download.NewStrategy(cfg)

	_, err := strategy.FetchVideo(context.Background(), stage.Request{VideoURL: "file:///nope/missing.mp4"}, t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, statErr := os.Stat("/nope/missing.mp4"); statErr == nil {
		t.Fatal("test precondition broken")
	}
}
