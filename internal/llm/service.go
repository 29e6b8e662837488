// Package llm talks to the text-completion service that classifies messages
// and writes answers. Prompt construction lives elsewhere; this package only
// moves text.
package llm

import "context"

// Options are the generation settings for one call. Zero fields are left to
// the provider's defaults.
type Options struct {
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
}

var (
	// ClassifierOptions are used for the VALID/INVALID input check.
	ClassifierOptions = Options{Temperature: 0.1, MaxOutputTokens: 50}
	// CompletionOptions are used for the answer.
	CompletionOptions = Options{Temperature: 0.1, TopK: 20, TopP: 0.7, MaxOutputTokens: 1024}
)

// Service is the completion capability. Both calls honour ctx cancellation.
type Service interface {
	Classify(ctx context.Context, prompt string) (string, error)
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}
