// Package openai generates résumé feedback through the OpenAI Responses API.
package openai

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/ats-checker/internal/ai"
	"github.com/spigell/ats-checker/internal/logger"
	"github.com/spigell/ats-checker/internal/utils"
	"go.uber.org/zap"
)

const (
	apiURL        = "https://api.openai.com/v1"
	responsesPath = "/responses"
	userAgent     = "spigell/ats-checker"
	contentType   = "application/json"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o"

	defaultTemperature = 0.2
	defaultMaxAttempts = 3
	baseRetryDelay     = time.Second
	maxRetryDelay      = 10 * time.Second
	maxLogLength       = 200
)

var wait = utils.WaitFor

// Client calls the Responses API.
type Client struct {
	token       string
	model       string
	maxAttempts int
	logger      *zap.Logger
	HTTPClient  *http.Client
	UserAgent   string
	APIURL      string
}

// New creates a Client. An empty model selects DefaultModel and a
// non-positive maxAttempts selects the default.
func New(token, model string, maxAttempts int, log *zap.Logger) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("openai api key is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Client{
		token:       token,
		model:       model,
		maxAttempts: maxAttempts,
		logger:      logger.WithVendor(log, "openai", model),
		HTTPClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		UserAgent: userAgent,
		APIURL:    apiURL,
	}, nil
}

type responseRequest struct {
	Model        string  `json:"model"`
	Instructions string  `json:"instructions,omitempty"`
	Input        string  `json:"input"`
	Temperature  float64 `json:"temperature"`
}

type responseBody struct {
	Output []any          `json:"output"`
	Error  *responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputItem is one entry of the "output" array.
type OutputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content []OutputContent `json:"content"`
}

// OutputContent is one content part of an output message.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad status: %d", e.Code)
	}
	return fmt.Sprintf("bad status: %d: %s", e.Code, e.Message)
}

func (e *StatusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// GenerateFeedback implements ai.FeedbackGenerator.
func (c *Client) GenerateFeedback(ctx context.Context, req ai.Request) (string, error) {
	prompt := ai.BuildPrompt(req)
	return c.Respond(ctx, prompt.System, prompt.Input)
}

func (c *Client) Vendor() string { return "openai" }

func (c *Client) Model() string { return c.model }

// Respond sends instructions and input and returns the joined output text.
// Rate limits and server errors are retried with linear backoff.
func (c *Client) Respond(ctx context.Context, instructions, input string) (string, error) {
	payload, err := json.Marshal(responseRequest{
		Model:        c.model,
		Instructions: strings.TrimSpace(instructions),
		Input:        input,
		Temperature:  defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	attempts := c.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := c.post(ctx, payload)
		if err == nil {
			c.logger.Debug("openai response received",
				zap.Int("attempt", attempt),
				zap.String("response_preview", utils.TruncateForLog(text, maxLogLength)),
			)
			return text, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.temporary() || attempt == attempts {
			break
		}

		delay := baseRetryDelay * time.Duration(attempt)
		if statusErr.RetryAfter > 0 {
			delay = statusErr.RetryAfter
		}
		if delay > maxRetryDelay {
			break
		}

		c.logger.Warn("openai request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	url := fmt.Sprintf("%s%s", c.APIURL, responsesPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("make request", zap.String("url", url))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	var body responseBody
	decodeErr := json.Unmarshal(data, &body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		if decodeErr == nil && body.Error != nil {
			statusErr.Message = body.Error.Message
		}
		return "", statusErr
	}

	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if body.Error != nil {
		return "", fmt.Errorf("openai error %s: %s", body.Error.Code, body.Error.Message)
	}

	return outputText(body.Output)
}

// outputText joins every output_text part of every message item.
func outputText(raw []any) (string, error) {
	var items []OutputItem
	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &items,
		TagName:  "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return "", err
	}
	if err := decoder.Decode(raw); err != nil {
		return "", fmt.Errorf("decode output items: %w", err)
	}

	var parts []string
	for _, item := range items {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" && strings.TrimSpace(content.Text) != "" {
				parts = append(parts, content.Text)
			}
		}
	}

	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", errors.New("openai api returned empty response")
	}
	return text, nil
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
