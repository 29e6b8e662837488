// Package assistant runs the chat pipeline: rate limit, guard, intent,
// filter, prompt, completion, enforcement and session update.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/catalog"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/enforce"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/guard"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/llm"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/monitoring"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/prompt"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/ratelimit"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/retrieval"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/session"
)

// User-facing messages.
const (
	MsgMessageRequired = "Message is required"
	MsgTooManyRequests = "Too many requests. Please try again in a minute."
	MsgNoPhones        = "No phones found in the database matching your criteria."
	MsgQueryFailed     = "Database query failed"
	MsgContextCleared  = "Context cleared"
)

// Outcome labels used for metrics and the audit log.
const (
	OutcomeAnswered    = "answered"
	OutcomeNoMatch     = "no_match"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

// Validator decides whether a message is on topic.
type Validator interface {
	Validate(ctx context.Context, message string) guard.Decision
}

// Completer produces the answer text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Request is one user turn.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Reply is the body returned for every non-error outcome. Fields that do not
// apply to an outcome are omitted.
type Reply struct {
	Response        string `json:"response"`
	IsDBQuery       bool   `json:"isDBQuery"`
	Allowed         *bool  `json:"allowed,omitempty"`
	HasTable        *bool  `json:"hasTable,omitempty"`
	ContextUpdated  *bool  `json:"contextUpdated,omitempty"`
	DatabaseResults *bool  `json:"databaseResults,omitempty"`
	PhonesFound     *int   `json:"phonesFound,omitempty"`
}

// Health summarises the live state of the assistant.
type Health struct {
	Status          string   `json:"status"`
	DatabaseSize    int      `json:"databaseSize"`
	SupportedBrands []string `json:"supportedBrands"`
	MemorySize      int      `json:"memorySize"`
	RateLimitSize   int      `json:"rateLimitSize"`
}

// ClearResult acknowledges a context reset.
type ClearResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Deps are the collaborators of an Assistant. Audit, Metrics and Logger are
// optional.
type Deps struct {
	Catalog  *catalog.Index
	Sessions session.Store
	Limiter  ratelimit.Limiter
	Guard    Validator
	LLM      Completer
	Audit    *monitoring.AuditLogger
	Metrics  *observability.Metrics
	Logger   *observability.Logger
}

// Assistant answers chat messages against the catalog.
type Assistant struct {
	catalog  *catalog.Index
	sessions session.Store
	limiter  ratelimit.Limiter
	guard    Validator
	llm      Completer
	parser   *retrieval.Parser
	filter   *retrieval.Filter
	composer *prompt.Composer
	enforcer *enforce.Enforcer
	audit    *monitoring.AuditLogger
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// New builds an Assistant from its dependencies.
func New(d Deps) (*Assistant, error) {
	switch {
	case d.Catalog == nil:
		return nil, domain.ConfigError("assistant requires a catalog", nil)
	case d.Sessions == nil:
		return nil, domain.ConfigError("assistant requires a session store", nil)
	case d.Limiter == nil:
		return nil, domain.ConfigError("assistant requires a rate limiter", nil)
	case d.Guard == nil:
		return nil, domain.ConfigError("assistant requires an input guard", nil)
	case d.LLM == nil:
		return nil, domain.ConfigError("assistant requires a completion service", nil)
	}

	logger := d.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Assistant{
		catalog:  d.Catalog,
		sessions: d.Sessions,
		limiter:  d.Limiter,
		guard:    d.Guard,
		llm:      d.LLM,
		parser:   retrieval.NewParser(d.Catalog),
		filter:   retrieval.NewFilter(d.Catalog),
		composer: prompt.NewComposer(),
		enforcer: enforce.New(d.Catalog.All()),
		audit:    d.Audit,
		metrics:  d.Metrics,
		logger:   logger.WithOperation("chat"),
	}, nil
}

// exchange accumulates what the audit log needs while a request runs.
type exchange struct {
	start     time.Time
	id        string
	message   string
	outcome   string
	status    int
	response  string
	intent    domain.Intent
	found     int
	mentioned []string
}

// Chat runs one message through the pipeline. Errors are *domain.DomainError
// for validation, rate limit and completion failures, or the context error
// when the caller went away after the completion call.
func (a *Assistant) Chat(ctx context.Context, req Request) (*Reply, error) {
	ex := &exchange{start: time.Now(), id: req.ConversationID, message: req.Message, status: 200}
	if ex.id == "" {
		ex.id = domain.DefaultConversationID
	}
	defer a.finish(ctx, ex)

	reply, err := a.chat(ctx, ex)
	if reply != nil {
		ex.response = reply.Response
	}
	return reply, err
}

func (a *Assistant) chat(ctx context.Context, ex *exchange) (*Reply, error) {
	logger := a.logger.WithContext(ctx).WithConversation(ex.id)

	message := strings.TrimSpace(ex.message)
	if message == "" {
		ex.outcome, ex.status = OutcomeInvalid, 400
		return nil, domain.ValidationError(MsgMessageRequired, nil)
	}

	if err := a.limiter.Check(ctx, ex.id); err != nil {
		ex.outcome, ex.status = OutcomeRateLimited, 429
		a.metrics.RateLimited()
		logger.Warn().Err(err).Msg("Rate limit exceeded")
		return nil, err
	}

	decision := a.guard.Validate(ctx, message)
	if !decision.Valid {
		ex.outcome = OutcomeRejected
		logger.Info().Str("source", string(decision.Source)).Msg("Message rejected by input guard")
		return &Reply{Response: decision.Reason, IsDBQuery: false, Allowed: boolPtr(false)}, nil
	}

	conv, err := a.sessions.Get(ctx, ex.id)
	if err != nil {
		logger.Warn().Err(err).Msg("Session lookup failed, continuing with empty context")
		conv = domain.NewConversation(ex.id)
	}

	intent := a.parser.Parse(message, conv)
	ex.intent = intent

	phones := a.filter.Apply(intent)
	ex.found = len(phones)
	a.metrics.ObserveCandidates(len(phones))
	if len(phones) == 0 {
		ex.outcome = OutcomeNoMatch
		return &Reply{Response: MsgNoPhones, IsDBQuery: true, DatabaseResults: boolPtr(false)}, nil
	}

	promptText := a.composer.Compose(message, intent, conv, phones)

	started := time.Now()
	raw, err := a.llm.Complete(ctx, promptText, llm.CompletionOptions)
	a.metrics.ObserveCompletion("complete", time.Since(started), err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		ex.outcome, ex.status = OutcomeCancelled, 499
		logger.Info().Err(ctxErr).Msg("Request cancelled during completion, session left untouched")
		return nil, ctxErr
	}
	if err != nil {
		ex.outcome, ex.status = OutcomeFailed, 500
		logger.Error().Err(err).Msg("Completion failed")
		if !domain.IsType(err, domain.ErrorTypeUpstreamCompletion) {
			err = domain.UpstreamCompletionError(MsgQueryFailed, err)
		}
		return nil, err
	}

	result := a.enforcer.Enforce(raw, phones)
	a.metrics.EnforcerRemovals(result.TruthRemovals, result.ToneRemovals)

	mentioned := enforce.ExtractMentioned(result.Text, phones)
	ex.mentioned = mentioned

	updated := true
	// LastQuery keeps the message as sent, surrounding whitespace included.
	if err := a.sessions.Update(ctx, ex.id, mentioned, ex.message, intent); err != nil {
		updated = false
		logger.Warn().Err(err).Msg("Session update failed")
	}

	ex.outcome = OutcomeAnswered
	logger.Debug().
		Int("phones_found", len(phones)).
		Strs("mentioned", mentioned).
		Int("truth_removals", result.TruthRemovals).
		Int("tone_removals", result.ToneRemovals).
		Msg("Chat answered")

	return &Reply{
		Response:        result.Text,
		IsDBQuery:       true,
		HasTable:        boolPtr(enforce.HasTable(result.Text)),
		ContextUpdated:  boolPtr(len(mentioned) > 0 && updated),
		DatabaseResults: boolPtr(true),
		PhonesFound:     intPtr(len(phones)),
	}, nil
}

func (a *Assistant) finish(ctx context.Context, ex *exchange) {
	if ex.outcome == "" {
		ex.outcome = OutcomeFailed
	}
	a.metrics.ChatOutcome(ex.outcome)
	// Persistence failures are already logged by the audit logger.
	_ = a.audit.LogEvent(ctx, monitoring.AuditEvent{
		ConversationID: ex.id,
		Message:        ex.message,
		Outcome:        ex.outcome,
		StatusCode:     ex.status,
		Response:       ex.response,
		Intent:         ex.intent,
		PhonesFound:    ex.found,
		Mentioned:      ex.mentioned,
		Latency:        time.Since(ex.start),
	})
}

// Health reports catalog size, brands and the size of both in-process maps.
func (a *Assistant) Health(ctx context.Context) (Health, error) {
	memorySize, err := a.sessions.Len(ctx)
	if err != nil {
		return Health{}, err
	}
	rateLimitSize, err := a.limiter.Len(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{
		Status:          "healthy",
		DatabaseSize:    a.catalog.Len(),
		SupportedBrands: a.catalog.Brands(),
		MemorySize:      memorySize,
		RateLimitSize:   rateLimitSize,
	}, nil
}

// Context returns the stored conversation for id, or an empty one.
func (a *Assistant) Context(ctx context.Context, id string) (domain.Conversation, error) {
	if id == "" {
		id = domain.DefaultConversationID
	}
	return a.sessions.Get(ctx, id)
}

// Clear forgets the conversation and its rate window.
func (a *Assistant) Clear(ctx context.Context, id string) (ClearResult, error) {
	if id == "" {
		id = domain.DefaultConversationID
	}
	err := errors.Join(a.sessions.Clear(ctx, id), a.limiter.Reset(ctx, id))
	if err != nil {
		return ClearResult{}, err
	}
	a.logger.WithConversation(id).Info().Msg("Conversation context cleared")
	return ClearResult{Success: true, Message: MsgContextCleared}, nil
}

// Catalog exposes the index for read-only callers such as the CLI.
func (a *Assistant) Catalog() *catalog.Index {
	return a.catalog
}

// ParseIntent reads a message against a stored conversation without side
// effects.
func (a *Assistant) ParseIntent(ctx context.Context, id, message string) (domain.Intent, []catalog.Entry, error) {
	conv, err := a.Context(ctx, id)
	if err != nil {
		return domain.Intent{}, nil, err
	}
	intent := a.parser.Parse(strings.TrimSpace(message), conv)
	return intent, a.filter.Apply(intent), nil
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
