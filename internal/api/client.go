package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a daemon API client for the given bind address. The
// address may be a bare host:port or a full http URL.
func NewClient(address, token string) (*Client, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("api address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WithTimeout overrides the request timeout, for long synchronous calls.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// Submit enqueues a video URL for asynchronous processing.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/notes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitSync processes a video URL inline and returns the finished note.
func (c *Client) SubmitSync(ctx context.Context, req SubmitRequest) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.do(ctx, http.MethodPost, "/api/notes/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Task fetches the current state of one task.
func (c *Client) Task(ctx context.Context, taskID string) (*TaskView, error) {
	var resp TaskResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Result fetches the finished note for a completed task.
func (c *Client) Result(ctx context.Context, taskID string) (*ResultResponse, error) {
	var resp ResultResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID)+"/result", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tasks lists registry tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, statuses ...string) ([]TaskView, error) {
	path := "/api/tasks"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var resp TaskListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Cancel requests cooperative cancellation of a task.
func (c *Client) Cancel(ctx context.Context, taskID string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry moves failed tasks back to pending.
func (c *Client) Retry(ctx context.Context, taskIDs ...string) (int64, error) {
	var resp struct {
		Retried int64 `json:"retried"`
	}
	payload := map[string][]string{"taskIds": taskIDs}
	if err := c.do(ctx, http.MethodPost, "/api/tasks/retry", payload, &resp); err != nil {
		return 0, err
	}
	return resp.Retried, nil
}

// Styles lists the supported note styles.
func (c *Client) Styles(ctx context.Context) ([]StyleInfo, error) {
	var resp StylesResponse
	if err := c.do(ctx, http.MethodGet, "/api/styles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Styles, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("daemon api: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
