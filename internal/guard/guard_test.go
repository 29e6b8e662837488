package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

type stubClassifier struct {
	reply  string
	err    error
	prompt string
	block  bool
}

func (s *stubClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.reply, s.err
}

func newTestGuard(c Classifier) *Guard {
	return New(c, 50*time.Millisecond, nil, observability.NewMetrics(prometheus.NewRegistry()))
}

func TestGuard_ClassifierVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		message  string
		expected Decision
	}{
		{"valid", "VALID", "hello", Decision{Valid: true, Source: SourceClassifier}},
		{"valid with noise", "  \"valid.\"\n", "hello", Decision{Valid: true, Source: SourceClassifier}},
		{"invalid", "INVALID", "tell me a joke about phones", Decision{Reason: ReasonOffTopic, Source: SourceClassifier}},
		{"malformed falls back valid", "Sure! It is valid", "cheap phone", Decision{Valid: true, Source: SourceFallback}},
		{"malformed falls back invalid", "MAYBE", "tell me a joke", Decision{Reason: ReasonFallback, Source: SourceFallback}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{reply: tt.reply}
			got := newTestGuard(stub).Validate(context.Background(), tt.message)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, stub.prompt, `Message: "`+tt.message+`"`)
		})
	}
}

func TestGuard_NetworkErrorUsesFallback(t *testing.T) {
	stub := &stubClassifier{err: errors.New("dial tcp: connection refused")}
	g := newTestGuard(stub)

	got := g.Validate(context.Background(), "best camera phone")
	assert.Equal(t, Decision{Valid: true, Source: SourceFallback}, got)

	got = g.Validate(context.Background(), "what's the weather today")
	assert.False(t, got.Valid)
	assert.Equal(t, ReasonFallback, got.Reason)
}

func TestGuard_TimeoutUsesFallback(t *testing.T) {
	stub := &stubClassifier{block: true}

	start := time.Now()
	got := newTestGuard(stub).Validate(context.Background(), "battery life of redmi")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Decision{Valid: true, Source: SourceFallback}, got)
}

func TestGuard_NilClassifier(t *testing.T) {
	g := New(nil, 0, nil, nil)
	assert.True(t, g.Validate(context.Background(), "compare specs").Valid)
	assert.False(t, g.Validate(context.Background(), "write me a poem").Valid)
}

func TestKeywordFallback(t *testing.T) {
	tests := []struct {
		message  string
		expected bool
	}{
		{"best camera phone", true},
		{"Which Galaxy is cheapest", true},
		{"show me the price list", true},
		{"ONEPLUS", true},
		{"list features", true},
		{"which has the best battery?", true},
		{"hello there", false},
		{"what is the capital of France", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeywordFallback(tt.message))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("is the iPhone 13 good")
	require.Contains(t, p, `Message: "is the iPhone 13 good"`)
	assert.Contains(t, p, `"VALID"`)
	assert.Contains(t, p, `"INVALID"`)
}
