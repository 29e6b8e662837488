package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures a GeminiClient. BaseURL is for tests and proxies.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewGeminiClient creates a Gemini-backed Service.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("Gemini API key is required", nil)
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Classify runs the input-guard prompt with classifier settings.
func (g *GeminiClient) Classify(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt, ClassifierOptions)
	if err != nil {
		return "", domain.UpstreamClassifierError("classification failed", err)
	}
	return text, nil
}

// Complete runs the answer prompt.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	text, err := g.generate(ctx, prompt, opts)
	if err != nil {
		return "", domain.UpstreamCompletionError("completion failed", err)
	}
	return text, nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, opts Options) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generationConfig(opts))
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("GenAI returned no text")
	}
	return text, nil
}

func generationConfig(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxOutputTokens),
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.TopP > 0 {
		cfg.TopP = genai.Ptr(opts.TopP)
	}
	if opts.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(opts.TopK))
	}
	return cfg
}
