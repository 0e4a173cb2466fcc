package config

const (
	defaultDataDir            = "~/.local/share/vidnote/tasks"
	defaultLogDir             = "~/.local/share/vidnote/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultDownloaderKind     = "yt-dlp"
	defaultDownloaderBinary   = "yt-dlp"
	defaultFFmpegBinary       = "ffmpeg"
	defaultDownloadTimeout    = 900
	defaultTranscriberKind    = "whisper-cli"
	defaultWhisperBinary      = "whisper-cli"
	defaultWhisperModel       = "base"
	defaultTranscribeTimeout  = 3600
	defaultMaxTranscriptions  = 1
	defaultSummarizerKind     = "openai"
	defaultSummarizerBaseURL  = "https://api.openai.com/v1"
	defaultSummarizerModel    = "gpt-4o-mini"
	defaultSummarizeTimeout   = 120
	defaultScreenshotPolicy   = "even"
	defaultScreenshotFrames   = 5
	defaultNotifyTimeout      = 10
	defaultQueuePollInterval  = 5
	defaultMaxConcurrentTasks = 2
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Downloader: Downloader{
			Kind:           defaultDownloaderKind,
			Binary:         defaultDownloaderBinary,
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Transcriber: Transcriber{
			Kind:           defaultTranscriberKind,
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			MaxConcurrent:  defaultMaxTranscriptions,
			TimeoutSeconds: defaultTranscribeTimeout,
		},
		Summarizer: Summarizer{
			Kind:           defaultSummarizerKind,
			BaseURL:        defaultSummarizerBaseURL,
			Model:          defaultSummarizerModel,
			TimeoutSeconds: defaultSummarizeTimeout,
		},
		Screenshots: Screenshots{
			Enabled:      true,
			Policy:       defaultScreenshotPolicy,
			MaxFrames:    defaultScreenshotFrames,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			MaxConcurrentTasks: defaultMaxConcurrentTasks,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
