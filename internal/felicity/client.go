package felicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 120 * time.Second

	maxErrorBody = 4 << 10
)

// Config binds a client to one credential and endpoint for its lifetime.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

type Client struct {
	baseURL    string
	apiKey     string
	retry      RetryConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// Validate reports the first problem with cfg as a *ConfigError.
func (cfg Config) Validate() error {
	if err := validateAPIKey(cfg.APIKey); err != nil {
		return err
	}
	_, err := validateBaseURL(cfg.BaseURL)
	return err
}

// Configure validates cfg and returns a client holding its credential.
func Configure(cfg Config, logger *logrus.Logger) (*Client, error) {
	if err := validateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}
	base, err := validateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		retry:   cfg.Retry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

func validateAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &ConfigError{Field: "api key", Reason: "is required"}
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &ConfigError{Field: "api key", Reason: "contains whitespace or control characters"}
		}
	}
	return nil
}

func validateBaseURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ConfigError{Field: "base url", Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ConfigError{Field: "base url", Reason: fmt.Sprintf("is invalid: %v", err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ConfigError{Field: "base url", Reason: "must be an absolute http(s) url"}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Search sends query and qctx to the service. onProgress, when non-nil, is
// called with each progress label in the order the service emits them,
// before Search returns.
func (c *Client) Search(ctx context.Context, query string, qctx QueryContext, onProgress func(label string)) (*SearchResponse, error) {
	payload, err := json.Marshal(SearchRequest{Query: query, Context: qctx})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/search", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream, application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"status_code":  resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"elapsed_ms":   time.Since(start).Milliseconds(),
	}).Debug("Felicity search response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.serviceError("search", resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return readSearchStream(resp.Body, onProgress)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "search", Err: fmt.Errorf("failed to read response: %w", err)}
	}
	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ServiceError{Op: "search", StatusCode: resp.StatusCode, Message: fmt.Sprintf("undecodable response: %v", err)}
	}
	return &result, nil
}

// SendFeedback reports payload for the answer identified by answerFeedbackID.
// Only the acknowledgment is consumed.
func (c *Client) SendFeedback(ctx context.Context, answerFeedbackID string, payload FeedbackPayload) error {
	if answerFeedbackID == "" {
		return fmt.Errorf("answer feedback id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback payload: %w", err)
	}

	endpoint := "/feedback/" + url.PathEscape(answerFeedbackID)
	return c.retryOperation(ctx, "feedback", func() error {
		return c.makeRequest(ctx, "feedback", http.MethodPost, endpoint, body)
	})
}

// Ping checks that the service health endpoint answers with a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	return c.makeRequest(ctx, "health", http.MethodGet, "/health", nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)

		c.logger.WithFields(logrus.Fields{
			"method":       method,
			"endpoint":     endpoint,
			"payload_size": len(payload),
		}).Debug("Request payload info")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) makeRequest(ctx context.Context, op, method, endpoint string, payload []byte) error {
	req, err := c.newRequest(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"method":      method,
		"endpoint":    endpoint,
	}).Debug("Felicity API response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serviceError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) serviceError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	c.logger.WithFields(logrus.Fields{
		"op":            op,
		"status_code":   resp.StatusCode,
		"response_body": string(body),
	}).Debug("Felicity API request failed")

	message := strings.TrimSpace(string(body))
	var decoded errorEvent
	if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		message = decoded.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: message}
}
