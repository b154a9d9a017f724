package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"edulearn-quiz-service/internal/app"
	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

const (
	DefaultBaseURL    = "https://api.perplexity.ai"
	DefaultModel      = "sonar"
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 2

	maxResponseBytes   = 4 << 20
	maxBackoffInterval = 10 * time.Second
)

// Config configures an OpenAI-compatible chat-completions endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client implements app.Completer over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

// HTTPError is a non-2xx answer from the generation service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generation service status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// MaxDuration is the longest Complete can run: every attempt hitting the
// client timeout plus the largest randomized sleep between attempts.
func (c *Client) MaxDuration() time.Duration {
	sleep := time.Duration(float64(maxBackoffInterval) * (1 + backoff.DefaultRandomizationFactor))
	return time.Duration(c.cfg.MaxRetries+1)*c.cfg.Timeout + time.Duration(c.cfg.MaxRetries)*sleep
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []app.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion and returns the first choice's content.
// Every failure wraps domain.ErrGenerationService.
func (c *Client) Complete(ctx context.Context, req app.CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: api key not configured", domain.ErrGenerationService)
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", domain.ErrGenerationService, err)
	}

	var raw []byte
	attempt := 0
	op := func() error {
		attempt++
		var opErr error
		raw, opErr = c.doOnce(ctx, body)
		if opErr == nil {
			return nil
		}
		if !isRetryable(ctx, opErr) {
			return backoff.Permanent(opErr)
		}
		return opErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = maxBackoffInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn("generation request retrying",
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
			"sleep", wait.String(),
			"err", err,
		)
	}
	if err := backoff.RetryNotify(op, retry, notify); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGenerationService, err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGenerationService)
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) doOnce(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	return raw, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
