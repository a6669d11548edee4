// Package speech talks to the speech-synthesis service that turns narration
// markup into audio.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/narration"
	"storyreel/internal/services"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	maxErrorBody          = 4 << 10
)

// Config captures the runtime settings required to reach the service.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	RetryAttempts  int
}

// Client synthesizes speech over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	client := &Client{
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: timeout},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type synthesizeRequest struct {
	VoiceID string `json:"voice_id"`
	Text    string `json:"text"`
}

type synthesizeResponse struct {
	AudioBase64     string  `json:"audio_base64"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("speech request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Synthesize converts markup into audio. Rate-limit and server errors are
// retried with backoff; a rate limit or payment error that outlives the retries
// is reported as services.ErrQuota.
func (c *Client) Synthesize(ctx context.Context, voiceID, markup string) (narration.Audio, error) {
	var empty narration.Audio
	if strings.TrimSpace(markup) == "" {
		return empty, services.Wrap(services.ErrValidation, "speech", "synthesize", "markup required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, "speech", "synthesize", "speech.base_url not set", nil)
	}
	body, err := json.Marshal(synthesizeRequest{VoiceID: voiceID, Text: markup})
	if err != nil {
		return empty, fmt.Errorf("speech synthesize: encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		audio, err := c.sendOnce(ctx, body)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(err, attempt)
		if !retry || attempt == c.cfg.RetryAttempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return empty, err
		}
	}
	return empty, classify(lastErr)
}

func (c *Client) sendOnce(ctx context.Context, body []byte) (narration.Audio, error) {
	var empty narration.Audio
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		if delay, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			statusErr.RetryAfter = delay
		}
		return empty, statusErr
	}

	var parsed synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return empty, fmt.Errorf("speech response: decode: %w", err)
	}
	if parsed.Error != "" {
		return empty, fmt.Errorf("speech response: %s", parsed.Error)
	}
	data, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
	if err != nil {
		return empty, fmt.Errorf("speech response: audio payload: %w", err)
	}
	if len(data) == 0 {
		return empty, errors.New("speech response: empty audio")
	}
	return narration.Audio{Data: data, DurationSeconds: parsed.DurationSeconds}, nil
}

// retryDelay reports whether err is worth another attempt and how long to
// wait first. Retry-After wins over exponential backoff; both are capped.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *httpStatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		if !retryableStatus(statusErr.StatusCode) {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, c.retryMaxDelay), true
		}
	case errors.As(err, &netErr) && netErr.Timeout():
	default:
		return 0, false
	}
	delay := c.retryBaseDelay << min(attempt-1, 16)
	return min(max(delay, 0), c.retryMaxDelay), true
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusPaymentRequired,
			statusErr.StatusCode == http.StatusTooManyRequests:
			return services.Wrap(services.ErrQuota, "speech", "synthesize", "quota exhausted", err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "speech", "synthesize", "service unavailable", err)
		case statusErr.StatusCode == http.StatusBadRequest,
			statusErr.StatusCode == http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrValidation, "speech", "synthesize", "markup rejected", err)
		}
	}
	return services.Wrap(services.ErrExternalService, "speech", "synthesize", "", err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
