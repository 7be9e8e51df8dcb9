package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLLMTimeout = 120 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultMaxTokens  = 4096
)

// Provider presets for known LLM providers
var providerDefaults = map[string]struct {
	BaseURL   string
	Model     string
	APIFormat string
}{
	"openai":    {BaseURL: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o-mini", APIFormat: "openai"},
	"anthropic": {BaseURL: "https://api.anthropic.com/v1/messages", Model: "claude-sonnet-4-5-20250929", APIFormat: "anthropic"},
	"ollama":    {BaseURL: "http://localhost:11434/v1/chat/completions", Model: "llama3", APIFormat: "openai"},
}

// Model is a single-turn completion: system instruction and user payload in,
// raw text out.
type Model interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// HTTPClient is the subset of *http.Client used by LLMClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ChatMessage represents a message in the chat API
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents the API request body
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatResponse represents the API response
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// AnthropicRequest represents the Anthropic /v1/messages request body
type AnthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// AnthropicResponse represents the Anthropic /v1/messages response
type AnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// LLMClient talks to OpenAI-compatible chat completions or Anthropic messages APIs
type LLMClient struct {
	provider   string
	apiFormat  string // "openai" (default) or "anthropic"
	apiKey     string
	model      string
	baseURL    string
	jsonMode   bool
	retryDelay time.Duration
	httpClient HTTPClient
}

// LLMOption allows configuring the client
type LLMOption func(*LLMClient)

// WithLLMHTTPClient sets a custom HTTP client
func WithLLMHTTPClient(client HTTPClient) LLMOption {
	return func(c *LLMClient) {
		c.httpClient = client
	}
}

// WithLLMModel sets a custom model
func WithLLMModel(model string) LLMOption {
	return func(c *LLMClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLLMBaseURL sets a custom base URL
func WithLLMBaseURL(url string) LLMOption {
	return func(c *LLMClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithLLMAPIFormat sets the wire format ("openai" or "anthropic")
func WithLLMAPIFormat(format string) LLMOption {
	return func(c *LLMClient) {
		if format != "" {
			c.apiFormat = format
		}
	}
}

// WithJSONMode toggles response_format=json_object on OpenAI-format requests
func WithJSONMode(enabled bool) LLMOption {
	return func(c *LLMClient) {
		c.jsonMode = enabled
	}
}

// WithLLMRetryDelay sets the base delay between retries
func WithLLMRetryDelay(d time.Duration) LLMOption {
	return func(c *LLMClient) {
		c.retryDelay = d
	}
}

// NewLLMClient creates a new LLM API client.
// provider can be "openai", "anthropic", "ollama", or empty (defaults to openai).
// apiKey can be empty for providers that don't require it (e.g., ollama).
func NewLLMClient(provider, apiKey string, opts ...LLMOption) (*LLMClient, error) {
	if provider == "" {
		provider = "openai"
	}

	defaults, known := providerDefaults[provider]
	if !known {
		// Unknown provider: require explicit base_url via options
		defaults.BaseURL = ""
		defaults.Model = ""
	}

	client := &LLMClient{
		provider:   provider,
		apiFormat:  defaults.APIFormat,
		apiKey:     apiKey,
		model:      defaults.Model,
		baseURL:    defaults.BaseURL,
		jsonMode:   provider == "openai",
		retryDelay: defaultRetryDelay,
		httpClient: &http.Client{Timeout: defaultLLMTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiFormat == "" {
		client.apiFormat = "openai"
	}

	// Auto-append standard path if base URL has no path component
	if client.baseURL != "" && !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(client.baseURL, "https://"), "http://"), "/") {
		switch client.apiFormat {
		case "anthropic":
			client.baseURL = strings.TrimRight(client.baseURL, "/") + "/v1/messages"
		default:
			client.baseURL = strings.TrimRight(client.baseURL, "/") + "/v1/chat/completions"
		}
	}

	if client.baseURL == "" {
		return nil, fmt.Errorf("LLM base_url is required for provider %q", provider)
	}
	if client.model == "" {
		return nil, fmt.Errorf("LLM model is required for provider %q", provider)
	}
	if client.apiKey == "" && provider != "ollama" {
		return nil, fmt.Errorf("LLM api_key is required for provider %q", provider)
	}

	return client, nil
}

// Provider returns the configured provider name
func (c *LLMClient) Provider() string { return c.provider }

// ModelName returns the configured model
func (c *LLMClient) ModelName() string { return c.model }

// Complete sends one system+user exchange and returns the assistant text.
// Server errors are retried; client errors and malformed bodies are not.
func (c *LLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := c.buildRequest(system, user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		content, err := c.doRequest(ctx, body)
		if err != nil {
			var noRetry *errNoRetry
			if errors.As(err, &noRetry) {
				return "", noRetry.err
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", defaultMaxRetries, lastErr)
}

func (c *LLMClient) buildRequest(system, user string) ([]byte, error) {
	if c.apiFormat == "anthropic" {
		return json.Marshal(AnthropicRequest{
			Model:     c.model,
			MaxTokens: defaultMaxTokens,
			System:    system,
			Messages:  []ChatMessage{{Role: "user", Content: user}},
		})
	}

	req := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return json.Marshal(req)
}

// errNoRetry wraps errors that should not be retried (e.g., 4xx client errors).
type errNoRetry struct {
	err error
}

func (e *errNoRetry) Error() string { return e.err.Error() }
func (e *errNoRetry) Unwrap() error { return e.err }

func (c *LLMClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &errNoRetry{err: err}
	}

	if c.apiFormat == "anthropic" {
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		// Only server errors are transient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", &errNoRetry{err: apiErr}
		}
		return "", apiErr
	}

	return c.extractContent(respBody)
}

// extractContent parses the response body and returns the text content,
// handling both OpenAI and Anthropic response formats.
func (c *LLMClient) extractContent(respBody []byte) (string, error) {
	if c.apiFormat == "anthropic" {
		var anthropicResp AnthropicResponse
		if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
			return "", &errNoRetry{err: fmt.Errorf("unexpected response (not JSON): %s", preview(respBody))}
		}
		if anthropicResp.Error != nil {
			return "", fmt.Errorf("API error: %s", anthropicResp.Error.Message)
		}
		for _, block := range anthropicResp.Content {
			if block.Type == "text" {
				return strings.TrimSpace(block.Text), nil
			}
		}
		return "", &errNoRetry{err: fmt.Errorf("no text content in Anthropic response")}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &errNoRetry{err: fmt.Errorf("unexpected response (not JSON): %s", preview(respBody))}
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", &errNoRetry{err: fmt.Errorf("no choices in response")}
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// parseAPIError extracts a human-readable message from an API error response.
// If the body is JSON with an error.message field, it uses that; otherwise falls back to raw body.
func parseAPIError(statusCode int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		return fmt.Errorf("API error (status %d): %s", statusCode, parsed.Error.Message)
	}
	return fmt.Errorf("API error (status %d): %s", statusCode, string(body))
}
