// ABOUTME: Fire-and-forget notification events pushed to observers
// ABOUTME: The core never waits for delivery acknowledgment

package notify

import "time"

// Event types emitted by the routing core
const (
	EventChatCreated      = "chat_created"
	EventChatQueued       = "chat_queued"
	EventChatAssigned     = "chat_assigned"
	EventChatReleased     = "chat_released"
	EventAgentAssignment  = "agent_assignment" // addressed to one agent
	EventStateInvalidated = "state_invalidated"
)

// Event is a notification pushed to observers (agent consoles, dashboards)
type Event struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	ContactID string    `json:"contact_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier is the collaborator the router and scheduler publish through.
// Implementations must not block the caller.
type Notifier interface {
	Publish(event Event)
}

// Discard is a Notifier that drops everything. Useful in tests.
type Discard struct{}

func (Discard) Publish(Event) {}
