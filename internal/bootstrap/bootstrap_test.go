package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/config"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/llm"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/ratelimit"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/session"
)

type scriptedLLM struct{}

func (scriptedLLM) Classify(ctx context.Context, prompt string) (string, error) {
	return "VALID", nil
}

func (scriptedLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return "The Samsung Galaxy A14 costs ₹13,999.", nil
}

func TestBuild_MemoryDriver(t *testing.T) {
	cfg := config.DefaultConfig()

	c, err := Build(context.Background(), cfg, observability.NopLogger(), Options{LLM: scriptedLLM{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &session.MemoryStore{}, c.Sessions)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, c.Limiter)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Exchanges)
	assert.NotNil(t, c.Metrics)
	assert.NoError(t, c.Ready(context.Background()))

	reply, err := c.Assistant.Chat(context.Background(), assistant.Request{Message: "samsung under 15k"})
	require.NoError(t, err)
	assert.True(t, *reply.ContextUpdated)
}

func TestBuild_RedisDriverAndAudit(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Session.Driver = "redis"
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"
	cfg.Audit.Enabled = true
	cfg.Audit.Driver = "sqlite"
	cfg.Audit.DSN = filepath.Join(t.TempDir(), "audit.db")

	c, err := Build(context.Background(), cfg, observability.NopLogger(), Options{LLM: scriptedLLM{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &session.RedisStore{}, c.Sessions)
	assert.IsType(t, &ratelimit.RedisLimiter{}, c.Limiter)
	require.NotNil(t, c.Exchanges)
	assert.NoError(t, c.Ready(context.Background()))

	_, err = c.Assistant.Chat(context.Background(), assistant.Request{Message: "samsung under 15k", ConversationID: "r1"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("phonechat:session:r1"))
	assert.True(t, mr.Exists("phonechat:ratelimit:r1"))

	rows, err := c.Exchanges.ListByConversation(context.Background(), "r1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, assistant.OutcomeAnswered, rows[0].Outcome)
}

func TestBuild_RedisUnavailable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Driver = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, observability.NopLogger(), Options{LLM: scriptedLLM{}})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestBuild_MissingCatalogFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.json")

	_, err := Build(context.Background(), cfg, observability.NopLogger(), Options{LLM: scriptedLLM{}})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDataLoad))
}

func TestNewLLM_RequiresKey(t *testing.T) {
	for _, provider := range []string{"gemini", "openrouter"} {
		t.Run(provider, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LLM.Provider = provider

			_, err := NewLLM(context.Background(), cfg, observability.NopLogger())
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		})
	}
}

func TestNewLLM_OpenRouter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openrouter"
	cfg.LLM.OpenRouterAPIKey = "sk-or-test"

	service, err := NewLLM(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenRouterClient{}, service)
}
