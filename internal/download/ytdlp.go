package download

import (
	"bytes"
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
	"vidnote/internal/textutil"
)

const bilibiliUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Strategy fetches audio and video through the yt-dlp binary. Local file
// paths bypass yt-dlp and are converted with ffmpeg directly.
type Strategy struct {
	binary        string
	ffmpegBinary  string
	timeout       time.Duration
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewStrategy builds the downloader from configuration.
func NewStrategy(cfg *config.Config) *Strategy {
	return &Strategy{
		binary:       cfg.Downloader.Binary,
		ffmpegBinary: cfg.Downloader.FFmpegBinary,
		timeout:      time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Strategy) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

// mediaInfo is the subset of yt-dlp's single-json output the pipeline needs.
type mediaInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Uploader  string  `json:"uploader"`
}

// FetchAudio downloads the best audio stream as mp3 into destDir and returns
// the source metadata.
func (s *Strategy) FetchAudio(ctx context.Context, req stage.Request, destDir string) (*notes.AudioMeta, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrDownload, "download", "prepare dir", "could not create download directory", err)
	}

	platform := DetectPlatform(req.VideoURL)
	if platform == PlatformLocal {
		return s.localAudio(ctx, req, destDir)
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--dump-single-json",
		"--no-simulate",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "64K",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
	}
	args = append(args, platformArgs(platform)...)
	args = append(args, req.VideoURL)

	output, err := s.run(ctx, s.timeout, s.binary, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrDownload, "download", "fetch audio", "yt-dlp failed", err)
	}

	info, err := parseMediaInfo(output)
	if err != nil {
		return nil, services.Wrap(services.ErrDownload, "download", "parse metadata", "yt-dlp returned unparseable metadata", err)
	}

	audioPath := filepath.Join(destDir, info.ID+".mp3")
	if _, statErr := os.Stat(audioPath); statErr != nil {
		return nil, services.Wrap(services.ErrDownload, "download", "locate audio", fmt.Sprintf("expected audio file %s missing", audioPath), statErr)
	}

	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = "Untitled"
	}

	return &notes.AudioMeta{
		AudioPath: audioPath,
		Title:     title,
		Duration:  info.Duration,
		VideoID:   info.ID,
		Platform:  platform,
		Uploader:  info.Uploader,
		CoverURL:  info.Thumbnail,
		SourceURL: req.VideoURL,
	}, nil
}

// FetchVideo downloads the full video as mp4 into destDir and returns its
// path. Called lazily, only when frame extraction needs the picture.
func (s *Strategy) FetchVideo(ctx context.Context, req stage.Request, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrDownload, "download", "prepare dir", "could not create download directory", err)
	}

	platform := DetectPlatform(req.VideoURL)
	if platform == PlatformLocal {
		return localPath(req.VideoURL)
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--dump-single-json",
		"--no-simulate",
		"-f", "mp4/bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", filepath.Join(destDir, "%(id)s_video.%(ext)s"),
	}
	args = append(args, platformArgs(platform)...)
	args = append(args, req.VideoURL)

	output, err := s.run(ctx, s.timeout, s.binary, args...)
	if err != nil {
		return "", services.Wrap(services.ErrDownload, "download", "fetch video", "yt-dlp failed", err)
	}

	info, err := parseMediaInfo(output)
	if err != nil {
		return "", services.Wrap(services.ErrDownload, "download", "parse metadata", "yt-dlp returned unparseable metadata", err)
	}

	videoPath := filepath.Join(destDir, info.ID+"_video.mp4")
	if _, statErr := os.Stat(videoPath); statErr != nil {
		return "", services.Wrap(services.ErrDownload, "download", "locate video", fmt.Sprintf("expected video file %s missing", videoPath), statErr)
	}
	return videoPath, nil
}

// HealthCheck verifies the external binaries are reachable.
func (s *Strategy) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.binary); err != nil {
		return stage.Unhealthy("download", fmt.Sprintf("%s not found in PATH", s.binary))
	}
	if _, err := exec.LookPath(s.ffmpegBinary); err != nil {
		return stage.Unhealthy("download", fmt.Sprintf("%s not found in PATH", s.ffmpegBinary))
	}
	return stage.Healthy("download")
}

// localAudio converts a dropped local file to the pipeline's mp3 layout.
func (s *Strategy) localAudio(ctx context.Context, req stage.Request, destDir string) (*notes.AudioMeta, error) {
	source, err := localPath(req.VideoURL)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(destDir, "local.mp3")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		audioPath,
	}
	if _, err := s.run(ctx, s.timeout, s.ffmpegBinary, args...); err != nil {
		return nil, services.Wrap(services.ErrDownload, "download", "extract audio", "ffmpeg failed on local file", err)
	}

	duration, err := s.probeDuration(ctx, source)
	if err != nil {
		duration = 0
	}

	return &notes.AudioMeta{
		AudioPath: audioPath,
		VideoPath: source,
		Title:     textutil.TitleFromPath(source),
		Duration:  duration,
		VideoID:   "local",
		Platform:  PlatformLocal,
		SourceURL: req.VideoURL,
	}, nil
}

// probeDuration reads the container duration via ffmpeg's ffprobe sibling.
func (s *Strategy) probeDuration(ctx context.Context, source string) (float64, error) {
	probe := "ffprobe"
	if dir := filepath.Dir(s.ffmpegBinary); dir != "." {
		probe = filepath.Join(dir, "ffprobe")
	}
	output, err := s.run(ctx, s.timeout, probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	if err != nil {
		return 0, err
	}
	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &duration); err != nil {
		return 0, err
	}
	return duration, nil
}

func (s *Strategy) run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return stdout.Bytes(), nil
}

func platformArgs(platform string) []string {
	if platform == PlatformBilibili {
		return []string{
			"--referer", "https://www.bilibili.com/",
			"--user-agent", bilibiliUserAgent,
		}
	}
	return nil
}

func parseMediaInfo(output []byte) (*mediaInfo, error) {
	// yt-dlp may emit progress noise before the JSON document; find the
	// first object start.
	idx := bytes.IndexByte(output, '{')
	if idx < 0 {
		return nil, fmt.Errorf("no JSON document in output")
	}
	var info mediaInfo
	if err := json.Unmarshal(output[idx:], &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, fmt.Errorf("metadata missing video id")
	}
	return &info, nil
}

func localPath(videoURL string) (string, error) {
	path := strings.TrimPrefix(videoURL, "file://")
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrValidation, "download", "resolve local file", "local file does not exist", err)
	}
	return path, nil
}
