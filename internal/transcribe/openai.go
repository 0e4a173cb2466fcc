package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidnote/internal/config"
	"vidnote/internal/notes"
	"vidnote/internal/services"
	"vidnote/internal/stage"
)

const defaultCloudModel = "whisper-1"

// OpenAI transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint.
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAI builds the cloud transcriber from configuration.
func NewOpenAI(cfg *config.Config) *OpenAI {
	baseURL := strings.TrimRight(cfg.Transcriber.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Transcriber.Model
	if model == "" || model == "base" {
		model = defaultCloudModel
	}
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  cfg.Transcriber.APIKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Transcriber.TimeoutSeconds) * time.Second,
		},
	}
}

type verboseTranscription struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and maps the verbose_json response to a
// transcript.
func (o *OpenAI) Transcribe(ctx context.Context, req stage.Request, meta *notes.AudioMeta) (*notes.Transcript, error) {
	if meta == nil || meta.AudioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "check input", "audio metadata missing", nil)
	}

	file, err := os.Open(meta.AudioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "open audio", "audio file unreadable", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(meta.AudioPath))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "build request", "multipart encoding failed", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "build request", "audio copy failed", err)
	}
	_ = writer.WriteField("model", o.model)
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "build request", "multipart close failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "build request", "request construction failed", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "call api", "transcription request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "read response", "response body unreadable", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "call api",
			fmt.Sprintf("transcription endpoint returned %d: %s", resp.StatusCode, truncate(string(payload), 300)), nil)
	}

	var result verboseTranscription
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcribe", "parse response", "verbose_json unparseable", err)
	}

	transcript := &notes.Transcript{Language: result.Language}
	for _, segment := range result.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, notes.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
	}
	transcript.FullText = transcript.JoinText()
	if transcript.FullText == "" {
		transcript.FullText = strings.TrimSpace(result.Text)
	}
	return transcript, nil
}

// HealthCheck verifies the API key is configured.
func (o *OpenAI) HealthCheck(ctx context.Context) stage.Health {
	if o.apiKey == "" {
		return stage.Unhealthy("transcribe", "transcriber API key not configured")
	}
	return stage.Healthy("transcribe")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
