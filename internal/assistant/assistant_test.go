package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/guard"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/llm"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/monitoring"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/ratelimit"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/session"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/storage"
)

type stubValidator struct {
	decision guard.Decision
	calls    int
}

func (s *stubValidator) Validate(ctx context.Context, message string) guard.Decision {
	s.calls++
	return s.decision
}

type fakeLLM struct {
	reply  string
	err    error
	before func()
	prompt string
	opts   llm.Options
	calls  int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	f.calls++
	f.prompt = prompt
	f.opts = opts
	if f.before != nil {
		f.before()
	}
	return f.reply, f.err
}

type flakyStore struct {
	session.Store
	getErr    error
	updateErr error
}

func (s *flakyStore) Get(ctx context.Context, id string) (domain.Conversation, error) {
	if s.getErr != nil {
		return domain.Conversation{}, s.getErr
	}
	return s.Store.Get(ctx, id)
}

func (s *flakyStore) Update(ctx context.Context, id string, mentioned []string, raw string, intent domain.Intent) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Store.Update(ctx, id, mentioned, raw, intent)
}

type recordingWriter struct {
	rows []*storage.Exchange
}

func (w *recordingWriter) Insert(ctx context.Context, ex *storage.Exchange) error {
	w.rows = append(w.rows, ex)
	return nil
}

type fixture struct {
	assistant *Assistant
	sessions  session.Store
	limiter   ratelimit.Limiter
	validator *stubValidator
	llm       *fakeLLM
	audit     *recordingWriter
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	idx, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		sessions:  session.NewMemoryStore(),
		limiter:   ratelimit.NewMemoryLimiter(ratelimit.Config{}),
		validator: &stubValidator{decision: guard.Decision{Valid: true, Source: guard.SourceClassifier}},
		llm:       &fakeLLM{reply: "| **Brand** | **Model** |\n|---|---|\n| Samsung | Galaxy A14 |"},
		audit:     &recordingWriter{},
	}
	deps := Deps{
		Catalog:  idx,
		Sessions: f.sessions,
		Limiter:  f.limiter,
		Guard:    f.validator,
		LLM:      f.llm,
		Audit:    monitoring.NewAuditLogger(observability.NopLogger(), f.audit),
		Metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.assistant, err = New(deps)
	require.NoError(t, err)
	return f
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestChat_Answered(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "| **Brand** | **Model** |\n|---|---|\n| Samsung | Galaxy A14 |\n\nThe Apple iPhone 15 is great."

	reply, err := f.assistant.Chat(context.Background(), Request{Message: "  samsung under 20k  ", ConversationID: "c1"})
	require.NoError(t, err)

	assert.True(t, reply.IsDBQuery)
	assert.NotContains(t, reply.Response, "iPhone 15")
	assert.NotContains(t, reply.Response, "great")
	assert.True(t, *reply.HasTable)
	assert.True(t, *reply.ContextUpdated)
	assert.True(t, *reply.DatabaseResults)
	assert.Equal(t, 2, *reply.PhonesFound)
	assert.Nil(t, reply.Allowed)

	assert.Contains(t, f.llm.prompt, "Galaxy A14")
	assert.NotContains(t, f.llm.prompt, "Galaxy S23")
	assert.Equal(t, llm.CompletionOptions, f.llm.opts)

	conv, err := f.sessions.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Samsung Galaxy A14", "Samsung Galaxy M34"}, conv.PreviousPhones)
	assert.Equal(t, "  samsung under 20k  ", conv.LastQuery)
	assert.Equal(t, 20000, conv.UserPreferences.MaxBudget)

	require.Len(t, f.audit.rows, 1)
	assert.Equal(t, OutcomeAnswered, f.audit.rows[0].Outcome)
	assert.Equal(t, "samsung", f.audit.rows[0].Brand)
}

func TestChat_DefaultConversationID(t *testing.T) {
	f := newFixture(t)

	_, err := f.assistant.Chat(context.Background(), Request{Message: "samsung under 20k"})
	require.NoError(t, err)

	conv, err := f.assistant.Context(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "samsung under 20k", conv.LastQuery)
}

func TestChat_NoMentionMeansContextNotUpdated(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "Nothing in the list fits."

	reply, err := f.assistant.Chat(context.Background(), Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.NoError(t, err)
	assert.False(t, *reply.ContextUpdated)
	assert.False(t, *reply.HasTable)

	conv, err := f.sessions.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "samsung under 20k", conv.LastQuery)
	assert.Empty(t, conv.PreviousPhones)
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"", "   \n\t"} {
		_, err := f.assistant.Chat(context.Background(), Request{Message: msg, ConversationID: "c1"})
		require.Error(t, err)
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	}

	n, err := f.limiter.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.validator.calls)
}

func TestChat_GuardRejection(t *testing.T) {
	f := newFixture(t)
	f.validator.decision = guard.Decision{Reason: guard.ReasonOffTopic, Source: guard.SourceClassifier}

	reply, err := f.assistant.Chat(context.Background(), Request{Message: "write me a poem", ConversationID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, guard.ReasonOffTopic, reply.Response)
	assert.False(t, reply.IsDBQuery)
	require.NotNil(t, reply.Allowed)
	assert.False(t, *reply.Allowed)
	assert.Zero(t, f.llm.calls)
	assert.Equal(t, OutcomeRejected, f.audit.rows[0].Outcome)
}

func TestChat_NoMatchingPhones(t *testing.T) {
	f := newFixture(t)

	reply, err := f.assistant.Chat(context.Background(), Request{Message: "show me Apple phones under 500", ConversationID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, MsgNoPhones, reply.Response)
	assert.True(t, reply.IsDBQuery)
	require.NotNil(t, reply.DatabaseResults)
	assert.False(t, *reply.DatabaseResults)
	assert.Nil(t, reply.PhonesFound)
	assert.Zero(t, f.llm.calls)
}

func TestChat_EleventhRequestIsRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "burst"})
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "burst"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRateLimit))
	assert.Equal(t, 10, f.validator.calls)

	_, err = f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "other"})
	assert.NoError(t, err)
}

func TestChat_CompletionFailure(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("connection reset")

	_, err := f.assistant.Chat(context.Background(), Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUpstreamCompletion))

	conv, err := f.sessions.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, conv.LastQuery)
	assert.Equal(t, 500, f.audit.rows[0].StatusCode)
}

func TestChat_CancelledDuringCompletionLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.llm.before = cancel

	_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.ErrorIs(t, err, context.Canceled)

	conv, err := f.sessions.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, conv.LastQuery)
	assert.Empty(t, conv.PreviousPhones)

	require.Len(t, f.audit.rows, 1)
	assert.Equal(t, OutcomeCancelled, f.audit.rows[0].Outcome)
}

func TestChat_SessionFailuresDegrade(t *testing.T) {
	store := &flakyStore{
		Store:     session.NewMemoryStore(),
		getErr:    errors.New("redis down"),
		updateErr: errors.New("redis down"),
	}
	f := newFixture(t, func(d *Deps) { d.Sessions = store })

	reply, err := f.assistant.Chat(context.Background(), Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.NoError(t, err)
	assert.True(t, *reply.DatabaseResults)
	assert.False(t, *reply.ContextUpdated)
}

func TestChat_InheritsBudgetFromConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.NoError(t, err)

	reply, err := f.assistant.Chat(ctx, Request{Message: "which samsung has the best battery", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, *reply.PhonesFound)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "c1"})
	require.NoError(t, err)

	h, err := f.assistant.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 29, h.DatabaseSize)
	assert.Equal(t, "samsung", h.SupportedBrands[0])
	assert.Equal(t, 1, h.MemorySize)
	assert.Equal(t, 1, h.RateLimitSize)
}

func TestClear_ResetsSessionAndRateWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "c1"})
		require.NoError(t, err)
	}

	res, err := f.assistant.Clear(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, ClearResult{Success: true, Message: MsgContextCleared}, res)

	conv, err := f.assistant.Context(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, conv.PreviousPhones)

	_, err = f.assistant.Chat(ctx, Request{Message: "samsung under 20k", ConversationID: "c1"})
	assert.NoError(t, err)

	res, err = f.assistant.Clear(ctx, "never-seen")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestParseIntent_HasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	intent, phones, err := f.assistant.ParseIntent(context.Background(), "c1", "best phone under 15k")
	require.NoError(t, err)
	assert.Equal(t, 15000, intent.Budget)
	assert.NotEmpty(t, phones)

	n, err := f.sessions.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
