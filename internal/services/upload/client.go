// Package upload stores synthesized narration in object storage and returns
// its public URL.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"storyreel/internal/services"
)

const (
	// MaxBytes is the largest narration clip the storage endpoint accepts.
	MaxBytes = 10 << 20
	// AllowedMIME is the only accepted audio type.
	AllowedMIME = "audio/mpeg"

	defaultHTTPTimeout = 60 * time.Second
)

// Config captures the runtime settings required to reach the upload endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client uploads audio over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs an upload client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Validate checks size and content type before anything is sent.
func Validate(data []byte) error {
	if len(data) == 0 {
		return services.Wrap(services.ErrValidation, "upload", "validate", "empty payload", nil)
	}
	if len(data) > MaxBytes {
		return services.Wrap(services.ErrValidation, "upload", "validate",
			fmt.Sprintf("payload is %d bytes, limit is %d", len(data), MaxBytes), nil)
	}
	if detected := mimetype.Detect(data); !detected.Is(AllowedMIME) {
		return services.Wrap(services.ErrValidation, "upload", "validate",
			fmt.Sprintf("content type %s not allowed", detected.String()), nil)
	}
	return nil
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Upload sends data as a multipart file and returns the durable URL.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := Validate(data); err != nil {
		return "", err
	}
	if c.cfg.BaseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, "upload", "send", "upload.base_url not set", nil)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", AllowedMIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &body)
	if err != nil {
		return "", fmt.Errorf("upload: request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "send", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		marker := services.ErrExternalService
		switch {
		case resp.StatusCode == http.StatusRequestEntityTooLarge, resp.StatusCode == http.StatusUnsupportedMediaType:
			marker = services.ErrValidation
		case resp.StatusCode >= http.StatusInternalServerError:
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "upload", "send",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if parsed.URL == "" {
		msg := parsed.Error
		if msg == "" {
			msg = "response missing url"
		}
		return "", services.Wrap(services.ErrExternalService, "upload", "send", msg, nil)
	}
	return parsed.URL, nil
}
