// ABOUTME: WebSocket endpoint for agent consoles
// ABOUTME: Registers presence, streams routing events, drains the wait queue

package agentgw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/solvencia/chatdesk/internal/presence"
	"github.com/solvencia/chatdesk/internal/store"
)

// serveWS upgrades an agent console connection. The agent is online for
// assignment purposes exactly as long as this handler runs: presence is
// registered after the upgrade and unregistered on any exit path.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		Error(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	agent, err := h.chats.FindAgentByID(r.Context(), agentID)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		h.logger.Error("loading agent", "agent_id", agentID, "error", err)
		Error(w, http.StatusInternalServerError, "loading agent failed")
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "agent_id", agentID, "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	connID := uuid.New().String()
	if err := h.registry.Register(&presence.AgentInfo{
		ConnID:  connID,
		AgentID: agent.ID,
		Name:    agent.Name,
		Role:    agent.Role,
	}); err != nil {
		h.logger.Error("registering presence", "agent_id", agentID, "error", err)
		ws.Close(websocket.StatusInternalError, "registration failed")
		return
	}
	defer h.registry.Unregister(connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, subID := h.broadcaster.Subscribe(ctx)
	defer h.broadcaster.Unsubscribe(subID)

	// A newly connected agent picks up the oldest waiting chat
	h.scheduler.OnAgentConnected(ctx, agent.ID)

	// Inbound frames are ignored; the read loop only detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encoding event", "error", err)
				continue
			}
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				h.logger.Debug("websocket write failed, closing", "agent_id", agentID, "error", err)
				return
			}
		}
	}
}
