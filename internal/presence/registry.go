// ABOUTME: Process-local registry of currently connected agents
// ABOUTME: Rebuilt on connect, emptied on disconnect, never persisted

package presence

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyConnected indicates a connection with the same id is already registered
var ErrAlreadyConnected = errors.New("connection already registered")

// AgentInfo describes one live agent connection
type AgentInfo struct {
	ConnID  string
	AgentID string
	Name    string
	Role    string
}

// Registry tracks the agents connected to this gateway instance. It is
// intentionally instance-local: an agent's connection lives and dies with
// the process that accepted it. Iteration order is connect order, which
// the scheduler relies on for deterministic tie-breaking.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*AgentInfo
	order  []string // conn ids in connect order
	logger *slog.Logger
}

// NewRegistry creates an empty presence registry. Pass nil logger for the default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byConn: make(map[string]*AgentInfo),
		logger: logger.With("component", "presence"),
	}
}

// Register adds a new agent connection.
// Returns ErrAlreadyConnected if the connection id is already present.
func (r *Registry) Register(info *AgentInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[info.ConnID]; exists {
		return ErrAlreadyConnected
	}

	r.byConn[info.ConnID] = info
	r.order = append(r.order, info.ConnID)
	r.logger.Info("agent connected",
		"conn_id", info.ConnID,
		"agent_id", info.AgentID,
		"role", info.Role,
		"total_connected", len(r.byConn),
	)
	return nil
}

// Unregister removes an agent connection. Unknown ids are ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.byConn[connID]
	if !exists {
		return
	}

	delete(r.byConn, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("agent disconnected",
		"conn_id", connID,
		"agent_id", info.AgentID,
		"total_connected", len(r.byConn),
	)
}

// Connected returns all live connections in connect order
func (r *Registry) Connected() []*AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*AgentInfo, 0, len(r.order))
	for _, connID := range r.order {
		out = append(out, r.byConn[connID])
	}
	return out
}

// ConnectedWithRole returns live connections holding the given role,
// in connect order
func (r *Registry) ConnectedWithRole(role string) []*AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*AgentInfo
	for _, connID := range r.order {
		if info := r.byConn[connID]; info.Role == role {
			out = append(out, info)
		}
	}
	return out
}

// IsConnected reports whether any live connection belongs to the agent
func (r *Registry) IsConnected(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, info := range r.byConn {
		if info.AgentID == agentID {
			return true
		}
	}
	return false
}
