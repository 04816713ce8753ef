package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hongminglow/chat-be/internal/chat"
	"github.com/hongminglow/chat-be/internal/http/respond"
	"github.com/hongminglow/chat-be/internal/middleware"
	"github.com/hongminglow/chat-be/internal/models/dto"
	"github.com/hongminglow/chat-be/internal/ratelimit"
)

// MessageHandler exposes the request/response side of messaging. It never
// pushes to live connections.
type MessageHandler struct {
	messages *chat.Messages
	limiter  ratelimit.Limiter
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(messages *chat.Messages, limiter ratelimit.Limiter) *MessageHandler {
	return &MessageHandler{messages: messages, limiter: limiter}
}

// Register attaches message routes; all of them require authentication.
func (h *MessageHandler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("GET /api/conversations", authn(http.HandlerFunc(h.handleConversations)))
	mux.Handle("POST /api/messages", authn(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /api/messages/{user_id}", authn(http.HandlerFunc(h.handleConversation)))
	mux.Handle("PUT /api/messages/{id}/read", authn(http.HandlerFunc(h.handleMarkRead)))
}

func (h *MessageHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.UserIDFromContext(r.Context())
	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(r.Context(), fmt.Sprintf("user:%d", senderID)) {
		respond.FromError(w, chat.ErrRateLimited)
		return
	}
	msg, err := h.messages.Create(r.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "message sent", msg)
}

func (h *MessageHandler) handleConversation(w http.ResponseWriter, r *http.Request) {
	other, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	msgs, err := h.messages.Conversation(r.Context(), middleware.UserIDFromContext(r.Context()), other)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", msgs)
}

func (h *MessageHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	msg, err := h.messages.MarkRead(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "message marked as read", msg)
}

func (h *MessageHandler) handleConversations(w http.ResponseWriter, r *http.Request) {
	convos, err := h.messages.Conversations(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", convos)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}
