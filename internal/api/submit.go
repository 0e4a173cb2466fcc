package api

import (
	"net/url"
	"strings"

	"vidnote/internal/notes"
	"vidnote/internal/services"
)

// Normalize validates a submission and resolves its note style. Local file
// paths and file:// URLs are accepted alongside http(s) video URLs.
func (r SubmitRequest) Normalize() (string, notes.Style, error) {
	videoURL := strings.TrimSpace(r.VideoURL)
	if videoURL == "" {
		return "", "", services.Wrap(services.ErrValidation, "", "submit", "videoUrl is required", nil)
	}
	if parsed, err := url.Parse(videoURL); err == nil && parsed.Scheme != "" {
		switch parsed.Scheme {
		case "http", "https", "file":
		default:
			return "", "", services.Wrap(services.ErrValidation, "", "submit", "unsupported url scheme "+parsed.Scheme, nil)
		}
	}

	style, ok := notes.ParseStyle(r.Style)
	if !ok {
		return "", "", services.Wrap(services.ErrValidation, "", "submit", "unknown style "+strings.TrimSpace(r.Style), nil)
	}
	return videoURL, style, nil
}
