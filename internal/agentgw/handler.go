// ABOUTME: HTTP API for the agent console: chats, replies, assignment, release
// ABOUTME: chi router with JSON responses; WebSocket endpoint lives in ws.go

package agentgw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/solvencia/chatdesk/internal/assign"
	"github.com/solvencia/chatdesk/internal/messaging"
	"github.com/solvencia/chatdesk/internal/notify"
	"github.com/solvencia/chatdesk/internal/presence"
	"github.com/solvencia/chatdesk/internal/store"
)

// Store is the slice of the repository the agent gateway needs
type Store interface {
	FindChatByID(ctx context.Context, id string) (*store.Chat, error)
	ListChatsByStatus(ctx context.Context, status string) ([]*store.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]*store.Message, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ResetUnread(ctx context.Context, chatID string) error
	FindAgentByID(ctx context.Context, id string) (*store.Agent, error)
}

// Handler serves the agent-facing HTTP and WebSocket API
type Handler struct {
	chats       Store
	registry    *presence.Registry
	scheduler   *assign.Scheduler
	broadcaster *notify.Broadcaster
	messenger   messaging.Sender
	logger      *slog.Logger
}

// Options bundles the gateway's collaborators
type Options struct {
	Chats       Store
	Registry    *presence.Registry
	Scheduler   *assign.Scheduler
	Broadcaster *notify.Broadcaster
	Messenger   messaging.Sender
	Logger      *slog.Logger
}

// New creates an agent gateway handler. Pass nil Logger for the default.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chats:       opts.Chats,
		registry:    opts.Registry,
		scheduler:   opts.Scheduler,
		broadcaster: opts.Broadcaster,
		messenger:   opts.Messenger,
		logger:      logger.With("component", "agentgw"),
	}
}

// Routes builds the chi router for the agent gateway
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/ws", h.serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", h.listAgents)
		r.Get("/chats", h.listChats)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/messages", h.listMessages)
			r.Post("/assign", h.assignChat)
			r.Post("/reply", h.replyChat)
			r.Post("/release", h.releaseChat)
		})
	})
	return r
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"channel_ready":    h.messenger.Ready(),
		"agents_connected": len(h.registry.Connected()),
	})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	type connectedAgent struct {
		AgentID string `json:"agent_id"`
		Name    string `json:"name"`
		Role    string `json:"role"`
	}
	out := []connectedAgent{}
	for _, info := range h.registry.Connected() {
		out = append(out, connectedAgent{AgentID: info.AgentID, Name: info.Name, Role: info.Role})
	}
	JSON(w, http.StatusOK, out)
}

func (h *Handler) listChats(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = store.StatusPendingAssignment
	}
	chats, err := h.chats.ListChatsByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("listing chats", "status", status, "error", err)
		Error(w, http.StatusInternalServerError, "listing chats failed")
		return
	}
	JSON(w, http.StatusOK, chats)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	msgs, err := h.chats.ListMessages(r.Context(), chatID, 200)
	if err != nil {
		h.logger.Error("listing messages", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "listing messages failed")
		return
	}
	JSON(w, http.StatusOK, msgs)
}

type assignRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *Handler) assignChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		Error(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	err := h.scheduler.Assign(r.Context(), chatID, req.AgentID, false)
	switch {
	case errors.Is(err, assign.ErrChatNotFound):
		Error(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, assign.ErrAgentNotFound):
		Error(w, http.StatusNotFound, "agent not found")
	case errors.Is(err, assign.ErrAgentOffline):
		Error(w, http.StatusConflict, "agent is not connected")
	case err != nil:
		h.logger.Error("manual assignment failed", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "assignment failed")
	default:
		JSON(w, http.StatusOK, map[string]string{"status": "assigned"})
	}
}

type replyRequest struct {
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

// replyChat delivers an agent's reply to the contact. A successful reply
// cancels the response clock and clears the unread counter.
func (h *Handler) replyChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" || req.Text == "" {
		Error(w, http.StatusBadRequest, "agent_id and text are required")
		return
	}

	chat, err := h.chats.FindChatByID(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		h.logger.Error("loading chat", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "loading chat failed")
		return
	}
	if chat.Status != store.StatusActive || chat.AgentID != req.AgentID {
		Error(w, http.StatusConflict, "chat is not assigned to this agent")
		return
	}

	if err := h.messenger.Send(r.Context(), chat.ContactID, req.Text); err != nil {
		h.logger.Error("sending agent reply", "chat_id", chatID, "error", err)
		Error(w, http.StatusBadGateway, "delivery failed")
		return
	}

	if err := h.chats.SaveMessage(r.Context(), &store.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Direction: store.DirectionOutbound,
		Sender:    req.AgentID,
		Content:   req.Text,
		CreatedAt: time.Now(),
	}); err != nil {
		h.logger.Error("persisting agent reply", "chat_id", chatID, "error", err)
	}
	if err := h.chats.ResetUnread(r.Context(), chatID); err != nil {
		h.logger.Error("resetting unread", "chat_id", chatID, "error", err)
	}
	h.scheduler.CancelResponseTimer(chatID)

	JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) releaseChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	err := h.scheduler.Release(r.Context(), chatID)
	switch {
	case errors.Is(err, assign.ErrChatNotFound):
		Error(w, http.StatusNotFound, "chat not found")
	case err != nil:
		h.logger.Error("releasing chat", "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "release failed")
	default:
		JSON(w, http.StatusOK, map[string]string{"status": "released"})
	}
}
