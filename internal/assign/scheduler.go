// ABOUTME: Assignment scheduler: load-balanced agent selection, wait queue and timeouts
// ABOUTME: All chat status/assignment writes funnel through one mutex

package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solvencia/chatdesk/internal/dialogue"
	"github.com/solvencia/chatdesk/internal/messaging"
	"github.com/solvencia/chatdesk/internal/notify"
	"github.com/solvencia/chatdesk/internal/presence"
	"github.com/solvencia/chatdesk/internal/store"
	"github.com/solvencia/chatdesk/internal/timers"
	"github.com/solvencia/chatdesk/internal/waitqueue"
)

// ErrChatNotFound indicates the chat to assign does not exist
var ErrChatNotFound = errors.New("chat not found")

// ErrAgentNotFound indicates the target agent account does not exist
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentOffline indicates a manual assignment targeted a disconnected agent
var ErrAgentOffline = errors.New("agent is offline")

// ChatStore is the slice of the repository the scheduler needs
type ChatStore interface {
	FindChatByID(ctx context.Context, id string) (*store.Chat, error)
	SaveChat(ctx context.Context, chat *store.Chat) error
	CountActiveChatsByAgent(ctx context.Context, agentID string) (int, error)
	FindAgentByID(ctx context.Context, id string) (*store.Agent, error)
}

// Scheduler selects agents for escalated chats, parks chats on the wait
// queue when nobody is connected, and drives the response and inactivity
// timeout callbacks.
//
// Status and assignment writes to chats are a critical section: the
// contact lease only covers message ingestion, so the scheduler serializes
// its own writes behind mu. Timer callbacks re-check chat state after
// taking the lock, which makes stale timers harmless.
type Scheduler struct {
	chats           ChatStore
	registry        *presence.Registry
	queue           *waitqueue.Queue
	timers          *timers.Registry
	states          *dialogue.StateStore
	messenger       messaging.Sender
	notifier        notify.Notifier
	responseTimeout time.Duration
	logger          *slog.Logger

	mu sync.Mutex
}

// Options bundles the scheduler's collaborators
type Options struct {
	Chats           ChatStore
	Registry        *presence.Registry
	Queue           *waitqueue.Queue
	Timers          *timers.Registry
	States          *dialogue.StateStore
	Messenger       messaging.Sender
	Notifier        notify.Notifier
	ResponseTimeout time.Duration
	Logger          *slog.Logger
}

// New creates a scheduler. A nil Notifier defaults to notify.Discard; a nil
// Logger defaults to slog.Default.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Scheduler{
		chats:           opts.Chats,
		registry:        opts.Registry,
		queue:           opts.Queue,
		timers:          opts.Timers,
		states:          opts.States,
		messenger:       opts.Messenger,
		notifier:        notifier,
		responseTimeout: opts.ResponseTimeout,
		logger:          logger.With("component", "scheduler"),
	}
}

// AutoAssign routes an escalated chat to the least-loaded connected agent,
// or parks it on the wait queue when no agent is connected.
func (s *Scheduler) AutoAssign(ctx context.Context, chat *store.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoAssignLocked(ctx, chat, "")
}

func (s *Scheduler) autoAssignLocked(ctx context.Context, chat *store.Chat, excludeAgentID string) error {
	var candidates []*presence.AgentInfo
	for _, info := range s.registry.ConnectedWithRole(store.RoleAgent) {
		if info.AgentID != excludeAgentID {
			candidates = append(candidates, info)
		}
	}

	if len(candidates) == 0 {
		chat.Status = store.StatusPendingAssignment
		chat.AgentID = ""
		if err := s.chats.SaveChat(ctx, chat); err != nil {
			return fmt.Errorf("parking chat %s: %w", chat.ID, err)
		}
		if err := s.queue.Push(ctx, chat.ID); err != nil {
			return fmt.Errorf("queueing chat %s: %w", chat.ID, err)
		}
		s.notifier.Publish(notify.Event{
			Type:      notify.EventChatQueued,
			ChatID:    chat.ID,
			ContactID: chat.ContactID,
		})
		s.logger.Info("no agent connected, chat queued", "chat_id", chat.ID)
		return nil
	}

	// Least currently-ACTIVE chats wins; ties break by connect order
	best := candidates[0]
	bestLoad, err := s.chats.CountActiveChatsByAgent(ctx, best.AgentID)
	if err != nil {
		return fmt.Errorf("counting load for %s: %w", best.AgentID, err)
	}
	for _, info := range candidates[1:] {
		load, err := s.chats.CountActiveChatsByAgent(ctx, info.AgentID)
		if err != nil {
			return fmt.Errorf("counting load for %s: %w", info.AgentID, err)
		}
		if load < bestLoad {
			best, bestLoad = info, load
		}
	}

	return s.assignLocked(ctx, chat, best.AgentID)
}

// Assign assigns a chat to a specific agent. Manual assignments (isAuto
// false) additionally require the agent to be connected right now.
func (s *Scheduler) Assign(ctx context.Context, chatID, agentID string, isAuto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChatNotFound
	}
	if err != nil {
		return fmt.Errorf("loading chat %s: %w", chatID, err)
	}

	if _, err := s.chats.FindAgentByID(ctx, agentID); errors.Is(err, store.ErrNotFound) {
		return ErrAgentNotFound
	} else if err != nil {
		return fmt.Errorf("loading agent %s: %w", agentID, err)
	}

	if !isAuto && !s.registry.IsConnected(agentID) {
		return ErrAgentOffline
	}

	return s.assignLocked(ctx, chat, agentID)
}

// assignLocked writes the assignment and arms the response timer. Starting
// the timer replaces any live response timer for the chat, so a manual
// reassignment invalidates the previous agent's clock.
func (s *Scheduler) assignLocked(ctx context.Context, chat *store.Chat, agentID string) error {
	chat.Status = store.StatusActive
	chat.AgentID = agentID
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("assigning chat %s: %w", chat.ID, err)
	}

	s.notifier.Publish(notify.Event{
		Type:      notify.EventChatAssigned,
		ChatID:    chat.ID,
		ContactID: chat.ContactID,
		AgentID:   agentID,
	})
	s.notifier.Publish(notify.Event{
		Type:    notify.EventAgentAssignment,
		ChatID:  chat.ID,
		AgentID: agentID,
	})

	chatID := chat.ID
	s.timers.Start(chatID, timers.KindResponse, s.responseTimeout, func() {
		s.onResponseTimeout(chatID, agentID)
	})

	s.logger.Info("chat assigned", "chat_id", chat.ID, "agent_id", agentID)
	return nil
}

// OnAgentConnected drains one entry from the wait queue and assigns it to
// the agent that just connected.
func (s *Scheduler) OnAgentConnected(ctx context.Context, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatID, ok, err := s.queue.Pop(ctx)
	if err != nil {
		s.logger.Error("draining wait queue", "error", err)
		return
	}
	if !ok {
		return
	}

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if err != nil {
		s.logger.Error("loading queued chat", "chat_id", chatID, "error", err)
		return
	}

	if err := s.assignLocked(ctx, chat, agentID); err != nil {
		s.logger.Error("assigning queued chat", "chat_id", chatID, "agent_id", agentID, "error", err)
	}
}

// Release returns a chat to the auto responder and cancels its response timer
func (s *Scheduler) Release(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChatNotFound
	}
	if err != nil {
		return fmt.Errorf("loading chat %s: %w", chatID, err)
	}

	return s.releaseLocked(ctx, chat)
}

func (s *Scheduler) releaseLocked(ctx context.Context, chat *store.Chat) error {
	chat.Status = store.StatusAutoResponder
	chat.AgentID = ""
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("releasing chat %s: %w", chat.ID, err)
	}

	s.timers.Cancel(chat.ID, timers.KindResponse)
	s.notifier.Publish(notify.Event{
		Type:      notify.EventChatReleased,
		ChatID:    chat.ID,
		ContactID: chat.ContactID,
	})
	s.logger.Info("chat released", "chat_id", chat.ID)
	return nil
}

// CancelResponseTimer stops the response clock for a chat. Called when the
// assigned agent replies.
func (s *Scheduler) CancelResponseTimer(chatID string) {
	s.timers.Cancel(chatID, timers.KindResponse)
}

// onResponseTimeout fires when the assigned agent stayed silent for the
// full response window. The chat is reassigned to another agent, or
// released back to the auto responder when nobody else is connected. No
// survey is sent either way.
func (s *Scheduler) onResponseTimeout(chatID, agentID string) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if err != nil {
		s.logger.Error("response timeout: loading chat", "chat_id", chatID, "error", err)
		return
	}

	// Stale timer: the chat moved on since this clock was armed
	if chat.Status != store.StatusActive || chat.AgentID != agentID {
		return
	}

	s.logger.Warn("agent response timeout", "chat_id", chatID, "agent_id", agentID)

	if err := s.reassignExcludingLocked(ctx, chat, agentID); err != nil {
		s.logger.Error("response timeout: reassigning", "chat_id", chatID, "error", err)
	}
}

// reassignExcludingLocked hands the chat to another connected agent, or
// releases it when the excluded agent was the only one available.
func (s *Scheduler) reassignExcludingLocked(ctx context.Context, chat *store.Chat, excludeAgentID string) error {
	available := false
	for _, info := range s.registry.ConnectedWithRole(store.RoleAgent) {
		if info.AgentID != excludeAgentID {
			available = true
			break
		}
	}
	if !available {
		return s.releaseLocked(ctx, chat)
	}
	return s.autoAssignLocked(ctx, chat, excludeAgentID)
}

// OnInactivityTimeout fires when an automated session saw no traffic for
// the full inactivity window. Untouched sessions (still on START) and
// chats handled by a human are left alone.
func (s *Scheduler) OnInactivityTimeout(chatID string) {
	ctx := context.Background()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if err != nil {
		s.logger.Error("inactivity timeout: loading chat", "chat_id", chatID, "error", err)
		return
	}

	if chat.Status != store.StatusAutoResponder {
		return
	}

	st, err := s.states.Get(ctx, chat.ContactID)
	if err != nil {
		s.logger.Error("inactivity timeout: loading state", "chat_id", chatID, "error", err)
		return
	}
	if st.Step == dialogue.StepStart {
		return
	}

	if err := s.messenger.Send(ctx, chat.ContactID, dialogue.SessionExpiredText); err != nil {
		s.logger.Error("inactivity timeout: sending notice", "chat_id", chatID, "error", err)
	}
	if err := s.states.Reset(ctx, chat.ContactID); err != nil {
		s.logger.Error("inactivity timeout: resetting state", "chat_id", chatID, "error", err)
		return
	}

	s.notifier.Publish(notify.Event{
		Type:      notify.EventStateInvalidated,
		ChatID:    chat.ID,
		ContactID: chat.ContactID,
	})
	s.logger.Info("idle session expired", "chat_id", chatID)
}
