package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vidnote/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external binaries implied by the configuration.
// Cloud transcription removes the whisper CLI requirement.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Downloader.Binary,
			Description: "downloads audio and video from supported platforms",
		},
		{
			Name:        "ffmpeg",
			Command:     cfg.Downloader.FFmpegBinary,
			Description: "audio conversion and frame extraction",
		},
	}
	if cfg.Transcriber.Kind == "whisper-cli" {
		reqs = append(reqs, Requirement{
			Name:        "whisper-cli",
			Command:     cfg.Transcriber.Binary,
			Description: "local speech-to-text transcription",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
