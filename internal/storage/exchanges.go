package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exchange is one audited chat request and its outcome.
type Exchange struct {
	ID             uuid.UUID
	ConversationID string
	Message        string
	Outcome        string
	StatusCode     int
	Response       string
	Brand          string
	Budget         int
	Priority       string
	Comparison     bool
	PhonesFound    int
	Mentioned      []string
	LatencyMs      int64
	CreatedAt      time.Time
}

// ExchangeRepository handles exchange persistence.
type ExchangeRepository struct {
	db DB
}

// NewExchangeRepository creates a new exchange repository.
func NewExchangeRepository(db DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Insert stores an exchange, assigning an ID and timestamp when unset.
func (r *ExchangeRepository) Insert(ctx context.Context, ex *Exchange) error {
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	if ex.Mentioned == nil {
		ex.Mentioned = []string{}
	}

	mentioned, err := json.Marshal(ex.Mentioned)
	if err != nil {
		return fmt.Errorf("marshal mentioned phones: %w", err)
	}

	query := `
		INSERT INTO exchanges (id, conversation_id, message, outcome, status_code, response,
			brand, budget, priority, comparison, phones_found, mentioned, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		ex.ID.String(), ex.ConversationID, ex.Message, ex.Outcome, ex.StatusCode, ex.Response,
		ex.Brand, ex.Budget, ex.Priority, ex.Comparison, ex.PhonesFound, string(mentioned),
		ex.LatencyMs, ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

const selectColumns = `id, conversation_id, message, outcome, status_code, response,
	brand, budget, priority, comparison, phones_found, mentioned, latency_ms, created_at`

// GetByID retrieves one exchange.
func (r *ExchangeRepository) GetByID(ctx context.Context, id uuid.UUID) (*Exchange, error) {
	query := `SELECT ` + selectColumns + ` FROM exchanges WHERE id = $1`
	ex, err := scanExchange(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ex, err
}

// ListByConversation returns a conversation's exchanges, oldest first.
func (r *ExchangeRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*Exchange, error) {
	query := `SELECT ` + selectColumns + ` FROM exchanges WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, conversationID, normalizeLimit(limit))
}

// Recent returns the latest exchanges across conversations, newest first.
func (r *ExchangeRepository) Recent(ctx context.Context, limit int) ([]*Exchange, error) {
	query := `SELECT ` + selectColumns + ` FROM exchanges ORDER BY created_at DESC LIMIT $1`
	return r.list(ctx, query, normalizeLimit(limit))
}

// CountByOutcome returns how many exchanges ended in each outcome.
func (r *ExchangeRepository) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM exchanges GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count exchanges: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (r *ExchangeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*Exchange, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []*Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExchange(s scanner) (*Exchange, error) {
	var (
		ex        Exchange
		id        string
		mentioned string
	)
	err := s.Scan(
		&id, &ex.ConversationID, &ex.Message, &ex.Outcome, &ex.StatusCode, &ex.Response,
		&ex.Brand, &ex.Budget, &ex.Priority, &ex.Comparison, &ex.PhonesFound, &mentioned,
		&ex.LatencyMs, &ex.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ex.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse exchange id: %w", err)
	}
	if err := json.Unmarshal([]byte(mentioned), &ex.Mentioned); err != nil {
		return nil, fmt.Errorf("unmarshal mentioned phones: %w", err)
	}
	return &ex, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
