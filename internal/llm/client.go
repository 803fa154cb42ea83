// Package llm is the client for the generative planning service.
//
// The service speaks the OpenAI-compatible chat completions API and is
// strictly optional: a missing credential is a normal operating mode,
// reported through Configured rather than as an error. Callers decide
// what unavailability means; for the agent it selects the
// deterministic planner.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bc-dunia/sysagent/internal/config"
)

// Chat completion responses fit comfortably below this.
const maxResponseBytes = 10 * 1024 * 1024

// Config holds generative service parameters. Zero values fall back
// to package defaults; an empty APIKey means not configured.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   RetryConfig
}

// ConfigFromEnv reads the service configuration from the environment.
// Absent variables leave defaults in place.
func ConfigFromEnv() *Config {
	cfg := &Config{
		BaseURL: config.DefaultLLMBaseURL,
		APIKey:  os.Getenv(config.EnvLLMAPIKey),
		Model:   config.DefaultLLMModel,
		Timeout: config.DefaultLLMTimeout,
		Retry:   DefaultRetryConfig(),
	}
	if base := os.Getenv(config.EnvLLMBaseURL); base != "" {
		cfg.BaseURL = base
	}
	if model := os.Getenv(config.EnvLLMModel); model != "" {
		cfg.Model = model
	}
	return cfg
}

// Configured reports whether a credential is present.
func (c *Config) Configured() bool {
	return c != nil && c.APIKey != ""
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	transport *retryTransport
}

// New builds a Client from cfg. A nil cfg reads the environment.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultLLMBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultLLMModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultLLMTimeout
	}
	retry := cfg.Retry
	if retry.Backoff <= 0 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		transport: &retryTransport{
			// The timeout applies per attempt, so a retried request
			// gets a fresh budget.
			httpClient: &http.Client{Timeout: timeout},
			config:     retry,
		},
	}
}

// Configured reports whether the client holds a credential.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// ChatCompletion posts the conversation, with optional tool
// definitions, and returns the parsed response.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, tools []Tool) (*ChatResponse, error) {
	payload, err := json.Marshal(&ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return nil, chatResp.Error
	}
	return &chatResp, nil
}

// decodeAPIError extracts the standard error envelope from a non-2xx
// body, falling back to the raw status and body text.
func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error
	}
	return fmt.Errorf("chat completion failed with status %d: %s", status, strings.TrimSpace(string(body)))
}
