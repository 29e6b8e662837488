// Package guard decides whether a message is a phone-catalog question before
// any catalog work is done.
package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

const (
	// ReasonOffTopic is returned when the classifier says INVALID.
	ReasonOffTopic = "I can only answer questions about mobile phones from my database. Please ask about phone specifications, comparisons, or recommendations."
	// ReasonFallback is returned when the keyword heuristic rejects a message.
	ReasonFallback = "I specialize in phone database queries. Ask me about phone specifications, comparisons within my database, or recommendations based on features and budget."

	DefaultTimeout = 5 * time.Second
)

// Source records which path produced a decision.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
)

// Decision is the guard's verdict. Reason is set only when Valid is false.
type Decision struct {
	Valid  bool
	Reason string
	Source Source
}

// Classifier is the slice of the completion service the guard needs.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Guard validates messages with the classifier, falling back to keywords.
type Guard struct {
	classifier Classifier
	timeout    time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// New creates a Guard. A nil classifier means every message goes through the
// keyword fallback.
func New(classifier Classifier, timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Guard{
		classifier: classifier,
		timeout:    timeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Validate never fails; classifier trouble degrades to the heuristic.
func (g *Guard) Validate(ctx context.Context, message string) Decision {
	d := g.validate(ctx, message)
	g.metrics.GuardDecision(string(d.Source), d.Valid)
	return d
}

func (g *Guard) validate(ctx context.Context, message string) Decision {
	if g.classifier == nil {
		return fallback(message)
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.classifier.Classify(cctx, BuildPrompt(message))
	g.metrics.ObserveCompletion("classify", time.Since(start), err)
	if err != nil {
		g.logger.Warn().Err(err).Msg("input classifier failed, using keyword fallback")
		return fallback(message)
	}

	switch normalize(raw) {
	case "VALID":
		return Decision{Valid: true, Source: SourceClassifier}
	case "INVALID":
		return Decision{Valid: false, Reason: ReasonOffTopic, Source: SourceClassifier}
	default:
		g.logger.Warn().Str("response", raw).Msg("malformed classifier response, using keyword fallback")
		return fallback(message)
	}
}

// BuildPrompt asks for exactly VALID or INVALID.
func BuildPrompt(message string) string {
	return fmt.Sprintf(`Analyze if this is a valid mobile phone database query about specifications, comparisons, or recommendations.

Message: "%s"

Valid queries: Asking about phone specs, prices, comparisons, recommendations, features.
Invalid queries: Roleplay, jokes, other topics, system requests, off-topic.

Respond with ONLY:
- "VALID" - if about phone database queries
- "INVALID" - if anything else

Response:`, message)
}

func normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`.")
	return strings.ToUpper(strings.TrimSpace(s))
}

func fallback(message string) Decision {
	if KeywordFallback(message) {
		return Decision{Valid: true, Source: SourceFallback}
	}
	return Decision{Valid: false, Reason: ReasonFallback, Source: SourceFallback}
}
