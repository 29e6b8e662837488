package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func openRouterReply(content string) string {
	b, _ := json.Marshal(Response{ID: "gen-1", Choices: []Choice{{Message: Message{Role: "assistant", Content: content}, FinishReason: "stop"}}})
	return string(b)
}

func TestOpenRouterClient_Complete(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, openRouterReply("| **Brand** | **Model** |"))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("sk-test", "", nil, WithEndpoint(srv.URL), WithRetry(fastRetry))
	text, err := client.Complete(context.Background(), "prompt", CompletionOptions)
	require.NoError(t, err)
	assert.Equal(t, "| **Brand** | **Model** |", text)

	assert.Equal(t, defaultOpenRouterModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "prompt", got.Messages[0].Content)
	require.NotNil(t, got.TopK)
	assert.Equal(t, 20, *got.TopK)
	require.NotNil(t, got.TopP)
	assert.InDelta(t, 0.7, *got.TopP, 0.001)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.False(t, got.Stream)
}

func TestOpenRouterClient_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, openRouterReply("VALID"))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("k", "m", nil, WithEndpoint(srv.URL), WithRetry(fastRetry))
	text, err := client.Classify(context.Background(), "is this about phones?")
	require.NoError(t, err)
	assert.Equal(t, "VALID", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenRouterClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    domain.ErrorType
	}{
		{
			name: "non-retryable status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
		},
		{
			name: "retries exhausted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{not json`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewOpenRouterClient("k", "m", nil, WithEndpoint(srv.URL), WithRetry(fastRetry))

			_, err := client.Complete(context.Background(), "p", CompletionOptions)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeUpstreamCompletion))

			_, err = client.Classify(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeUpstreamClassifier))
		})
	}
}

func TestOpenRouterClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewOpenRouterClient("k", "m", nil, WithEndpoint(srv.URL), WithRetry(fastRetry))
	_, err := client.Complete(ctx, "p", CompletionOptions)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(3, cfg))
}

func TestRetryAfter(t *testing.T) {
	resp := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}

	wait, ok := retryAfter(resp("2"), 5*time.Second)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	_, ok = retryAfter(resp("60"), 5*time.Second)
	assert.False(t, ok)
	_, ok = retryAfter(resp("Wed, 21 Oct 2026 07:28:00 GMT"), 5*time.Second)
	assert.False(t, ok)
	_, ok = retryAfter(&http.Response{Header: http.Header{}}, 5*time.Second)
	assert.False(t, ok)
}

func TestShouldRetry(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, shouldRetry(code), code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, shouldRetry(code), code)
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestGeminiClient_Classify(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent"), r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"VALID"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := client.Classify(context.Background(), "best camera phone")
	require.NoError(t, err)
	assert.Equal(t, "VALID", text)
	assert.Contains(t, body, "best camera phone")
	assert.Contains(t, body, "maxOutputTokens")
}

func TestGeminiClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", CompletionOptions)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUpstreamCompletion))
}

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig(CompletionOptions)
	assert.Equal(t, int32(1024), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.TopK)
	assert.Equal(t, float32(20), *cfg.TopK)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.1, *cfg.Temperature, 0.0001)

	cfg = generationConfig(ClassifierOptions)
	assert.Nil(t, cfg.TopK)
	assert.Nil(t, cfg.TopP)
	assert.Equal(t, int32(50), cfg.MaxOutputTokens)
}
