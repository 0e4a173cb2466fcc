package summarize_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidnote/internal/notes"
	"vidnote/internal/services"
	"vidnote/internal/stage"
	"vidnote/internal/summarize"
	"vidnote/internal/testsupport"
)

func sampleTranscript() *notes.Transcript {
	return &notes.Transcript{
		Language: "en",
		FullText: "welcome to the talk we cover caching",
		Segments: []notes.Segment{
			{Start: 0, End: 4, Text: "welcome to the talk"},
			{Start: 65, End: 70, Text: "we cover caching"},
		},
	}
}

func TestBuildUserPromptContainsTimestampsAndStyle(t *testing.T) {
	prompt := summarize.BuildUserPrompt("Cache Talk", sampleTranscript(), notes.StyleMinimal, "focus on numbers")
	for _, want := range []string{
		"Video title: Cache Talk",
		"00:00 - welcome to the talk",
		"01:05 - we cover caching",
		"**minimal**",
		"Additional requirements: focus on numbers",
		"## AI Summary",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildUserPromptUnknownStyleFallsBack(t *testing.T) {
	prompt := summarize.BuildUserPrompt("T", sampleTranscript(), notes.Style("bogus"), "")
	if !strings.Contains(prompt, "**detailed**") {
		t.Error("unknown style should fall back to detailed")
	}
}

func TestSummarizeOpenAI(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"# Cache Talk\n\n- point\n\n## AI Summary\n\nGood talk."}}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	service := summarize.NewService(cfg)

	note, err := service.Summarize(context.Background(), stage.Request{Style: notes.StyleDetailed},
		&notes.AudioMeta{Title: "Cache Talk"}, sampleTranscript())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.HasPrefix(note.Markdown, "# Cache Talk") {
		t.Fatalf("unexpected note: %q", note.Markdown)
	}
	if gotModel != cfg.Summarizer.Model {
		t.Fatalf("expected configured model, got %q", gotModel)
	}
}

func TestSummarizeModelOverride(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"note"}}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	service := summarize.NewService(cfg)

	if _, err := service.Summarize(context.Background(), stage.Request{Model: "gpt-4o"},
		&notes.AudioMeta{Title: "T"}, sampleTranscript()); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if gotModel != "gpt-4o" {
		t.Fatalf("per-request model override ignored, got %q", gotModel)
	}
}

func TestSummarizeStripsCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```markdown\\n# Note\\n\\nbody\\n```" + `"}}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	service := summarize.NewService(cfg)

	note, err := service.Summarize(context.Background(), stage.Request{},
		&notes.AudioMeta{Title: "T"}, sampleTranscript())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if strings.Contains(note.Markdown, "```") {
		t.Fatalf("code fence not stripped: %q", note.Markdown)
	}
}

func TestSummarizeEmptyTranscriptShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("model should not be called for silent video")
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	service := summarize.NewService(cfg)

	note, err := service.Summarize(context.Background(), stage.Request{},
		&notes.AudioMeta{Title: "Silent"}, &notes.Transcript{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(note.Markdown, "No speech was detected") {
		t.Fatalf("unexpected stub note: %q", note.Markdown)
	}
}

func TestSummarizeRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	var slept []time.Duration
	service := summarize.NewService(cfg, summarize.WithSleeper(func(d time.Duration) {
		slept = append(slept, d)
	}))

	note, err := service.Summarize(context.Background(), stage.Request{},
		&notes.AudioMeta{Title: "T"}, sampleTranscript())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(note.Markdown, "recovered") {
		t.Fatalf("unexpected note: %q", note.Markdown)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("Retry-After not honored: %v", slept)
	}
}

func TestSummarizeDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	service := summarize.NewService(cfg)

	_, err := service.Summarize(context.Background(), stage.Request{},
		&notes.AudioMeta{Title: "T"}, sampleTranscript())
	if !errors.Is(err, services.ErrSummarization) {
		t.Fatalf("expected ErrSummarization, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls.Load())
	}
}

func TestSummarizeAnthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") == "" || r.Header.Get("anthropic-version") == "" {
			t.Fatal("anthropic headers missing")
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"# Note\n\nanthropic body"}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithSummarizerEndpoint(server.URL))
	cfg.Summarizer.Kind = "anthropic"
	service := summarize.NewService(cfg)

	note, err := service.Summarize(context.Background(), stage.Request{},
		&notes.AudioMeta{Title: "T"}, sampleTranscript())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(note.Markdown, "anthropic body") {
		t.Fatalf("unexpected note: %q", note.Markdown)
	}
}
