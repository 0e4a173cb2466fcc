package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	// DataDir holds one directory per task with all persisted artifacts.
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Downloader selects and tunes the audio/video acquisition strategy.
type Downloader struct {
	// Kind selects the strategy. Supported: "yt-dlp".
	Kind           string `toml:"kind"`
	Binary         string `toml:"binary"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcriber selects and tunes the speech-to-text strategy.
type Transcriber struct {
	// Kind selects the strategy. Supported: "whisper-cli", "openai".
	Kind string `toml:"kind"`
	// Binary is the local whisper CLI executable (whisper-cli kind).
	Binary   string `toml:"binary"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	// MaxConcurrent bounds simultaneous transcriptions across all tasks.
	// Local models hold significant memory; keep this small.
	MaxConcurrent  int    `toml:"max_concurrent"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Summarizer selects and tunes the LLM note generation strategy.
type Summarizer struct {
	// Kind selects the strategy. Supported: "openai", "anthropic".
	Kind           string `toml:"kind"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Screenshots configures frame extraction and note reconciliation.
type Screenshots struct {
	Enabled bool `toml:"enabled"`
	// Policy selects which segments to illustrate: "even" spaces frames
	// evenly across the runtime, "headings" picks one per note heading span.
	Policy       string `toml:"policy"`
	MaxFrames    int    `toml:"max_frames"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains daemon timing and concurrency settings.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	MaxConcurrentTasks int `toml:"max_concurrent_tasks"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Watch configures the optional drop-directory watcher for local video files.
type Watch struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Config encapsulates all configuration values for vidnote. It is constructed
// once at process start and passed by reference; nothing mutates it afterward.
//
// Configuration sections by subsystem:
//   - Paths: task data directory, logs, and API bind address
//   - Downloader: yt-dlp invocation settings
//   - Transcriber: whisper-cli / cloud transcription settings
//   - Summarizer: LLM connection settings
//   - Screenshots: frame extraction policy
//   - Notifications: ntfy push notification settings
//   - Workflow: polling intervals and concurrency bounds
//   - Logging: log format and level
//   - Watch: drop-directory ingestion of local video files
type Config struct {
	Paths         Paths         `toml:"paths"`
	Downloader    Downloader    `toml:"downloader"`
	Transcriber   Transcriber   `toml:"transcriber"`
	Summarizer    Summarizer    `toml:"summarizer"`
	Screenshots   Screenshots   `toml:"screenshots"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Watch         Watch         `toml:"watch"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidnote/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidnote.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Watch.Enabled && strings.TrimSpace(c.Watch.Dir) != "" {
		if err := os.MkdirAll(c.Watch.Dir, 0o755); err != nil {
			return fmt.Errorf("create watch directory %q: %w", c.Watch.Dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns the cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
