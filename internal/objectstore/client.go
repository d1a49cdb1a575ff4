package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"treegift/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures storage endpoints.
type Config struct {
	BaseURL        string
	PublicBaseURL  string
	APIToken       string
	TimeoutSeconds int
}

// Client talks to the object storage service.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a storage client. PublicBaseURL falls back to BaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = cfg.BaseURL
	}
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Key joins namespace, request id, and file name into a storage key. Empty
// parts are skipped and surrounding slashes trimmed.
func Key(namespace, requestID, name string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{namespace, requestID, name} {
		if part = strings.Trim(strings.TrimSpace(part), "/"); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}

// URLForKey returns the public URL of key.
func (c *Client) URLForKey(key string) string {
	return c.cfg.PublicBaseURL + "/" + escapeKey(key)
}

// UploadFile stores body under <namespace>/<requestID>/<name> and returns its
// public URL. The content type is sniffed from the payload.
func (c *Client) UploadFile(ctx context.Context, namespace, name string, body io.Reader, requestID string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, "objectstore", "upload", "base url not configured", nil)
	}
	if strings.TrimSpace(name) == "" {
		return "", services.Wrap(services.ErrValidation, "objectstore", "upload", "file name required", nil)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "objectstore", "upload", "read body", err)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, "objectstore", "upload", "empty file", nil)
	}

	key := Key(namespace, requestID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.cfg.BaseURL+"/"+escapeKey(key), bytes.NewReader(data))
	if err != nil {
		return "", services.Wrap(services.ErrRemote, "objectstore", "upload", "new request", err)
	}
	req.Header.Set("Content-Type", mimetype.Detect(data).String())
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrRemote, "objectstore", "upload", fmt.Sprintf("put %s", key), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrRemote, "objectstore", "upload", fmt.Sprintf("put %s: http %d", key, resp.StatusCode), nil)
	}
	return c.URLForKey(key), nil
}

// PublicFileExists reports whether key is publicly readable. 403 and 404 both
// count as absent; other failures are returned as errors.
func (c *Client) PublicFileExists(ctx context.Context, key string) (bool, error) {
	if c.cfg.PublicBaseURL == "" {
		return false, services.Wrap(services.ErrConfiguration, "objectstore", "exists", "public base url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.URLForKey(key), nil)
	if err != nil {
		return false, services.Wrap(services.ErrRemote, "objectstore", "exists", "new request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrRemote, "objectstore", "exists", fmt.Sprintf("head %s", key), err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, services.Wrap(services.ErrRemote, "objectstore", "exists", fmt.Sprintf("head %s: http %d", key, resp.StatusCode), nil)
	}
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
