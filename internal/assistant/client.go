// Package assistant talks to the extraction assistant, an OpenAI-compatible
// chat completions endpoint used for field extraction, photo descriptions
// and optional template rendering.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

// Config configures a Client
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	// RetryDelay is the first backoff delay; zero uses the default
	RetryDelay time.Duration
	MaxTokens  int
}

// Message is one chat message. Content is a string or a []ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image, usually as a data URL
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Usage is the token accounting of one or more calls
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the text of a successful call
type Completion struct {
	Content string
	Usage   Usage
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Client calls the chat completions endpoint
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model returns the configured model identifier
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends messages and returns the completion text. Connection
// errors, rate limits, server errors and empty responses all surface as
// KindAssistantCallFailed once retries are exhausted.
func (c *Client) Complete(ctx context.Context, messages []Message, jsonMode bool) (*Completion, error) {
	if c.cfg.APIKey == "" {
		return nil, perrors.New(perrors.KindAssistantCallFailed, "no API key configured (set OPENAI_API_KEY)")
	}

	body := chatRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	}
	if jsonMode {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}

	rid := uuid.New().String()
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	c.log.Info("assistant.request", "req_id", rid, "model", c.cfg.Model, "messages", len(messages))

	var out *Completion
	err := WithRetry(ctx, c.log, func() error {
		raw, err := c.post(ctx, endpoint, body)
		if err != nil {
			return err
		}

		var cc chatResponse
		if err := json.Unmarshal(raw, &cc); err != nil {
			return permanent(fmt.Errorf("decode response: %w", err))
		}
		if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
			return permanent(errors.New("empty response"))
		}
		out = &Completion{Content: strings.TrimSpace(cc.Choices[0].Message.Content), Usage: cc.Usage}
		return nil
	}, RetryOptions{MaxAttempts: c.cfg.MaxAttempts, InitialDelay: c.cfg.RetryDelay, MaxDelay: 20 * c.cfg.RetryDelay})

	if err != nil {
		c.log.Error("assistant.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, perrors.Wrap(perrors.KindAssistantCallFailed, err, "extraction assistant returned no result")
	}

	c.log.Info("assistant.ok",
		"req_id", rid,
		"total_tokens", out.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// post sends one request. Rate limits, server errors and transport errors
// are retryable; other statuses are not.
func (c *Client) post(ctx context.Context, url string, body chatRequest) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, permanent(ctx.Err())
		}
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("assistant response body close error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimit, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
