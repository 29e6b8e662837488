// Package handlers provides HTTP handlers for the chat API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

const maxBodyBytes = 64 << 10

// ChatService is the slice of the assistant the handlers call.
type ChatService interface {
	Chat(ctx context.Context, req assistant.Request) (*assistant.Reply, error)
	Health(ctx context.Context) (assistant.Health, error)
	Context(ctx context.Context, id string) (domain.Conversation, error)
	Clear(ctx context.Context, id string) (assistant.ClearResult, error)
}

// ChatHandler serves /api/chat.
type ChatHandler struct {
	logger  *observability.Logger
	service ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, service ChatService) *ChatHandler {
	return &ChatHandler{
		logger:  logger,
		service: service,
	}
}

// ChatRequestDTO is the POST /api/chat body.
type ChatRequestDTO struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO ChatRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&reqDTO); err != nil {
		h.logger.WithContext(ctx).Debug().Err(err).Msg("Undecodable chat request body")
		h.writeError(w, http.StatusBadRequest, assistant.MsgMessageRequired)
		return
	}

	reply, err := h.service.Chat(ctx, assistant.Request{
		Message:        reqDTO.Message,
		ConversationID: reqDTO.ConversationID,
	})
	if err != nil {
		h.handleChatError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client is gone or the timeout middleware answers with 504.
		return
	case domain.IsType(err, domain.ErrorTypeValidation):
		h.writeError(w, http.StatusBadRequest, assistant.MsgMessageRequired)
	case domain.IsType(err, domain.ErrorTypeRateLimit):
		h.writeError(w, http.StatusTooManyRequests, assistant.MsgTooManyRequests)
	default:
		h.logger.Error().Err(err).Msg("Chat request failed")
		h.writeError(w, http.StatusInternalServerError, assistant.MsgQueryFailed)
	}
}

// Health handles GET /api/chat.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.service.Health(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed")
		h.writeError(w, http.StatusServiceUnavailable, "Health check failed")
		return
	}
	h.writeJSON(w, http.StatusOK, health)
}

// GetContext handles GET /api/chat/context/{conversationId}.
func (h *ChatHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Context(r.Context(), chi.URLParam(r, "conversationId"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Context lookup failed")
		h.writeError(w, http.StatusInternalServerError, "Context lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, conv)
}

// ClearContext handles DELETE /api/chat/context/{conversationId}.
func (h *ChatHandler) ClearContext(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Clear(r.Context(), chi.URLParam(r, "conversationId"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Context clear failed")
		h.writeError(w, http.StatusInternalServerError, "Context clear failed")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// MethodNotAllowed answers every unsupported method.
func (h *ChatHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
