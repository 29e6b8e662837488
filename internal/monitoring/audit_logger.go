// Package monitoring records chat exchanges to the log and the audit store.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/storage"
)

// ExchangeWriter persists exchanges. *storage.ExchangeRepository satisfies it.
type ExchangeWriter interface {
	Insert(ctx context.Context, ex *storage.Exchange) error
}

// AuditLogger logs every exchange and, when a writer is configured, stores it.
type AuditLogger struct {
	logger *observability.Logger
	writer ExchangeWriter
}

// AuditEvent describes one finished chat request.
type AuditEvent struct {
	ID             uuid.UUID
	ConversationID string
	Message        string
	Outcome        string
	StatusCode     int
	Response       string
	Intent         domain.Intent
	PhonesFound    int
	Mentioned      []string
	Latency        time.Duration
	OccurredAt     time.Time
}

// NewAuditLogger creates a new audit logger. writer may be nil.
func NewAuditLogger(logger *observability.Logger, writer ExchangeWriter) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		writer: writer,
	}
}

// LogEvent records an audit event. Persistence failures are returned but the
// log line is always written.
func (a *AuditLogger) LogEvent(ctx context.Context, event AuditEvent) error {
	if a == nil {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	a.logger.WithContext(ctx).Info().
		Str("event_id", event.ID.String()).
		Str("conversation_id", event.ConversationID).
		Str("outcome", event.Outcome).
		Int("status", event.StatusCode).
		Int("phones_found", event.PhonesFound).
		Strs("mentioned", event.Mentioned).
		Dur("latency", event.Latency).
		Msg("Chat exchange")

	if a.writer == nil {
		return nil
	}

	// The request context may already be cancelled; the audit row still lands.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	err := a.writer.Insert(writeCtx, &storage.Exchange{
		ID:             event.ID,
		ConversationID: event.ConversationID,
		Message:        event.Message,
		Outcome:        event.Outcome,
		StatusCode:     event.StatusCode,
		Response:       event.Response,
		Brand:          event.Intent.Brand,
		Budget:         event.Intent.Budget,
		Priority:       string(event.Intent.Priority),
		Comparison:     event.Intent.Comparison,
		PhonesFound:    event.PhonesFound,
		Mentioned:      event.Mentioned,
		LatencyMs:      event.Latency.Milliseconds(),
		CreatedAt:      event.OccurredAt,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("Failed to persist audit event")
	}
	return err
}
