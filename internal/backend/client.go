package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// Client talks to the dashboard API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig holds configuration for the API client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// HTTPClient overrides the transport; nil uses a fresh http.Client.
	HTTPClient *http.Client
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "http://localhost:8000/api",
		RequestTimeout: 10 * time.Second,
	}
}

// NewClient creates a client for the API rooted at cfg.BaseURL.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", cfg.BaseURL, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	var out PingResponse
	err := c.do(ctx, "ping", http.MethodGet, "/ping", nil, &out)
	return out, err
}

// Stats fetches the stat snapshot.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, &out)
	return out, err
}

// Tasks fetches the pending task collection in backend order.
func (c *Client) Tasks(ctx context.Context) ([]TaskSummary, error) {
	var out []TaskSummary
	if err := c.do(ctx, "tasks", http.MethodGet, "/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskDetail fetches one task by id.
func (c *Client) TaskDetail(ctx context.Context, id string) (TaskDetail, error) {
	var out TaskDetail
	err := c.do(ctx, "task detail", http.MethodGet, "/task/"+url.PathEscape(id), nil, &out)
	return out, err
}

// CompleteTask archives a task. Non-2xx responses return a *StatusError
// carrying the backend detail.
func (c *Client) CompleteTask(ctx context.Context, id string) error {
	return c.do(ctx, "complete task", http.MethodPost, "/task/complete", completeRequest{ID: id}, nil)
}

// Logs fetches recent log lines in backend order.
func (c *Client) Logs(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, "logs", http.MethodGet, "/logs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Chat posts a message for the assistant. Only the status is significant.
func (c *Client) Chat(ctx context.Context, message string) error {
	return c.do(ctx, "chat", http.MethodPost, "/chat", chatRequest{Message: message}, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRequest, op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", "op", op, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrRequest, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: detailFrom(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, op, err)
	}
	return nil
}
