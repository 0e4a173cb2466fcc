package config

import (
	"errors"
	"fmt"
)

var downloaderKinds = map[string]struct{}{
	"yt-dlp": {},
}

var transcriberKinds = map[string]struct{}{
	"whisper-cli": {},
	"openai":      {},
}

var summarizerKinds = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
}

var screenshotPolicies = map[string]struct{}{
	"even":     {},
	"headings": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStrategies(); err != nil {
		return err
	}
	if err := c.validateSummarizer(); err != nil {
		return err
	}
	if err := c.validateScreenshots(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStrategies() error {
	if _, ok := downloaderKinds[c.Downloader.Kind]; !ok {
		return fmt.Errorf("downloader.kind: unsupported value %q (supported: yt-dlp)", c.Downloader.Kind)
	}
	if _, ok := transcriberKinds[c.Transcriber.Kind]; !ok {
		return fmt.Errorf("transcriber.kind: unsupported value %q (supported: whisper-cli, openai)", c.Transcriber.Kind)
	}
	if c.Transcriber.Kind == "openai" && c.Transcriber.APIKey == "" {
		return errors.New("transcriber.api_key is required for the openai transcriber. Set VIDNOTE_TRANSCRIBER_API_KEY or edit the config file")
	}
	return nil
}

func (c *Config) validateSummarizer() error {
	if _, ok := summarizerKinds[c.Summarizer.Kind]; !ok {
		return fmt.Errorf("summarizer.kind: unsupported value %q (supported: openai, anthropic)", c.Summarizer.Kind)
	}
	if c.Summarizer.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vidnote/config.toml"
		}
		return fmt.Errorf("summarizer.api_key is required. Set VIDNOTE_SUMMARIZER_API_KEY env var or edit %s (create with 'vidnote config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScreenshots() error {
	if !c.Screenshots.Enabled {
		return nil
	}
	if _, ok := screenshotPolicies[c.Screenshots.Policy]; !ok {
		return fmt.Errorf("screenshots.policy: unsupported value %q (supported: even, headings)", c.Screenshots.Policy)
	}
	if c.Screenshots.MaxFrames <= 0 {
		return errors.New("screenshots.max_frames must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.max_concurrent_tasks": c.Workflow.MaxConcurrentTasks,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"transcriber.max_concurrent":    c.Transcriber.MaxConcurrent,
		"downloader.timeout_seconds":    c.Downloader.TimeoutSeconds,
		"transcriber.timeout_seconds":   c.Transcriber.TimeoutSeconds,
		"summarizer.timeout_seconds":    c.Summarizer.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateWatch() error {
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return errors.New("watch.dir must be set when watch.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
