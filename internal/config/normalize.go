package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeDownloader()
	c.normalizeTranscriber()
	c.normalizeSummarizer()
	c.normalizeScreenshots()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeWatch() error {
	c.Watch.Dir = strings.TrimSpace(c.Watch.Dir)
	if c.Watch.Dir == "" {
		return nil
	}
	var err error
	if c.Watch.Dir, err = expandPath(c.Watch.Dir); err != nil {
		return fmt.Errorf("watch.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownloader() {
	c.Downloader.Kind = strings.ToLower(strings.TrimSpace(c.Downloader.Kind))
	if c.Downloader.Kind == "" {
		c.Downloader.Kind = defaultDownloaderKind
	}
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		c.Downloader.Binary = defaultDownloaderBinary
	}
	if strings.TrimSpace(c.Downloader.FFmpegBinary) == "" {
		c.Downloader.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Downloader.TimeoutSeconds <= 0 {
		c.Downloader.TimeoutSeconds = defaultDownloadTimeout
	}
}

func (c *Config) normalizeTranscriber() {
	c.Transcriber.Kind = strings.ToLower(strings.TrimSpace(c.Transcriber.Kind))
	if c.Transcriber.Kind == "" {
		c.Transcriber.Kind = defaultTranscriberKind
	}
	if strings.TrimSpace(c.Transcriber.Binary) == "" {
		c.Transcriber.Binary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Transcriber.Model) == "" {
		c.Transcriber.Model = defaultWhisperModel
	}
	if c.Transcriber.MaxConcurrent <= 0 {
		c.Transcriber.MaxConcurrent = defaultMaxTranscriptions
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		c.Transcriber.TimeoutSeconds = defaultTranscribeTimeout
	}
	if c.Transcriber.APIKey == "" {
		if value, ok := os.LookupEnv("VIDNOTE_TRANSCRIBER_API_KEY"); ok {
			c.Transcriber.APIKey = value
		}
	}
}

func (c *Config) normalizeSummarizer() {
	c.Summarizer.Kind = strings.ToLower(strings.TrimSpace(c.Summarizer.Kind))
	if c.Summarizer.Kind == "" {
		c.Summarizer.Kind = defaultSummarizerKind
	}
	c.Summarizer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Summarizer.BaseURL), "/")
	if c.Summarizer.BaseURL == "" {
		c.Summarizer.BaseURL = defaultSummarizerBaseURL
	}
	if strings.TrimSpace(c.Summarizer.Model) == "" {
		c.Summarizer.Model = defaultSummarizerModel
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		c.Summarizer.TimeoutSeconds = defaultSummarizeTimeout
	}
	if c.Summarizer.APIKey == "" {
		if value, ok := os.LookupEnv("VIDNOTE_SUMMARIZER_API_KEY"); ok {
			c.Summarizer.APIKey = value
		}
	}
}

func (c *Config) normalizeScreenshots() {
	c.Screenshots.Policy = strings.ToLower(strings.TrimSpace(c.Screenshots.Policy))
	if c.Screenshots.Policy == "" {
		c.Screenshots.Policy = defaultScreenshotPolicy
	}
	if c.Screenshots.MaxFrames <= 0 {
		c.Screenshots.MaxFrames = defaultScreenshotFrames
	}
	if strings.TrimSpace(c.Screenshots.FFmpegBinary) == "" {
		c.Screenshots.FFmpegBinary = c.Downloader.FFmpegBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
