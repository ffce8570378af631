package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/christiandamico04/thesis-translation-backend/pkg/log"
)

// maxErrorBodyBytes bounds how much of an error response body is kept
// in the returned error message.
const maxErrorBodyBytes = 512

// Client performs chat-completion requests against the configured
// inference endpoint. One outbound HTTP call per Complete invocation,
// bounded by the configured timeout and retry policy.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	retry      RetryPolicy
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new inference client with the given configuration
// and retry policy.
//
// Example:
//
//	client, err := llm.NewClient(cfg, llm.DefaultRetryPolicy())
//	if err != nil {
//		log.Fatal("%v", err)
//	}
func NewClient(config *Config, retry RetryPolicy) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		retry:   retry.normalized(),
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			// Inference is slow; the timeout is on the order of
			// minutes, not milliseconds.
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends a single-user-message chat completion and returns the
// assistant's raw content. Transient failures are retried per the
// client's retry policy; the last error is returned once attempts are
// exhausted.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		content, err := c.chatCompletion(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !c.retry.ShouldRetry(err) || attempt == c.retry.MaxAttempts {
			break
		}

		delay := c.retry.Delay(attempt)
		log.Warn("Inference attempt %d/%d failed, retrying in %v: %v",
			attempt, c.retry.MaxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

// chatCompletion performs one request/response round trip.
func (c *Client) chatCompletion(ctx context.Context, prompt string) (string, error) {
	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    truncateBody(responseBody),
		}
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return "", &APIError{Message: chatResponse.Error.Message}
	}
	if len(chatResponse.Choices) == 0 || chatResponse.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: missing choices[0].message.content", ErrMalformedResponse)
	}

	return chatResponse.Choices[0].Message.Content, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
