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

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

const (
	openRouterURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel = "google/gemini-2.0-flash-001"
)

// OpenRouterClient calls an OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	retry      RetryConfig
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// OpenRouterOption configures an OpenRouterClient.
type OpenRouterOption func(*OpenRouterClient)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(url string) OpenRouterOption {
	return func(c *OpenRouterClient) {
		c.endpoint = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenRouterOption {
	return func(c *OpenRouterClient) {
		c.httpClient = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) OpenRouterOption {
	return func(c *OpenRouterClient) {
		c.retry = cfg
	}
}

// NewOpenRouterClient creates a client. An empty model selects the default.
func NewOpenRouterClient(apiKey, model string, logger *observability.Logger, opts ...OpenRouterOption) *OpenRouterClient {
	if model == "" {
		model = defaultOpenRouterModel
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	c := &OpenRouterClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   openRouterURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      DefaultRetryConfig(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify sends the input-guard prompt with classifier settings.
func (c *OpenRouterClient) Classify(ctx context.Context, prompt string) (string, error) {
	text, err := c.send(ctx, prompt, ClassifierOptions)
	if err != nil {
		return "", domain.UpstreamClassifierError("classification failed", err)
	}
	return text, nil
}

// Complete sends the answer prompt.
func (c *OpenRouterClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	text, err := c.send(ctx, prompt, opts)
	if err != nil {
		return "", domain.UpstreamCompletionError("completion failed", err)
	}
	return text, nil
}

func (c *OpenRouterClient) send(ctx context.Context, prompt string, opts Options) (string, error) {
	body, err := json.Marshal(c.buildRequest(prompt, opts))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/manthann3/mobile-recommendation-chat-agent")
		req.Header.Set("X-Title", "Phone Catalog Assistant")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}

	return out.Choices[0].Message.Content, nil
}

func (c *OpenRouterClient) buildRequest(prompt string, opts Options) Request {
	req := Request{
		Model:     c.model,
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: opts.MaxOutputTokens,
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.TopP > 0 {
		p := opts.TopP
		req.TopP = &p
	}
	if opts.TopK > 0 {
		k := opts.TopK
		req.TopK = &k
	}
	return req
}
