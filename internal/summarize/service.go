package summarize

import (
	"context"
	"strings"

	"vidnote/internal/config"
	"vidnote/internal/notes"
	"vidnote/internal/services"
	"vidnote/internal/stage"
)

// Service renders markdown notes from transcripts through a model provider.
type Service struct {
	client *Client
}

// NewService builds the summarizer from configuration.
func NewService(cfg *config.Config, opts ...ClientOption) *Service {
	return &Service{
		client: NewClient(ClientConfig{
			Kind:           cfg.Summarizer.Kind,
			APIKey:         cfg.Summarizer.APIKey,
			BaseURL:        cfg.Summarizer.BaseURL,
			Model:          cfg.Summarizer.Model,
			TimeoutSeconds: cfg.Summarizer.TimeoutSeconds,
		}, opts...),
	}
}

// Summarize generates the note. An empty transcript short-circuits to a
// stub note so silent videos still complete.
func (s *Service) Summarize(ctx context.Context, req stage.Request, meta *notes.AudioMeta, transcript *notes.Transcript) (*notes.Note, error) {
	if transcript == nil {
		return nil, services.Wrap(services.ErrValidation, "summarize", "check input", "transcript missing", nil)
	}

	title := "Untitled"
	if meta != nil && strings.TrimSpace(meta.Title) != "" {
		title = meta.Title
	}

	if len(transcript.Segments) == 0 && strings.TrimSpace(transcript.FullText) == "" {
		return &notes.Note{
			Markdown: "# " + title + "\n\nNo speech was detected in this video.\n",
		}, nil
	}

	userPrompt := BuildUserPrompt(title, transcript, req.Style, req.Extras)
	content, err := s.client.Complete(ctx, req.Model, systemPrompt, userPrompt)
	if err != nil {
		return nil, services.Wrap(services.ErrSummarization, "summarize", "generate note", "model completion failed", err)
	}

	markdown := stripCodeFence(content)
	if markdown == "" {
		return nil, services.Wrap(services.ErrSummarization, "summarize", "generate note", "model returned empty note", nil)
	}
	return &notes.Note{Markdown: markdown + "\n"}, nil
}

// HealthCheck verifies the provider credentials are configured.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if s.client.cfg.APIKey == "" {
		return stage.Unhealthy("summarize", "summarizer API key not configured")
	}
	return stage.Healthy("summarize")
}
