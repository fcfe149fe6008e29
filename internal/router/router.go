// ABOUTME: Inbound message orchestrator: lease, persistence, engine, dispatch
// ABOUTME: One HandleInbound call covers a contact message end to end

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solvencia/chatdesk/internal/assign"
	"github.com/solvencia/chatdesk/internal/dialogue"
	"github.com/solvencia/chatdesk/internal/lease"
	"github.com/solvencia/chatdesk/internal/messaging"
	"github.com/solvencia/chatdesk/internal/notify"
	"github.com/solvencia/chatdesk/internal/store"
	"github.com/solvencia/chatdesk/internal/timers"
)

// Store is the slice of the repository the router needs
type Store interface {
	FindChatByContact(ctx context.Context, contactID string) (*store.Chat, error)
	CreateChat(ctx context.Context, chat *store.Chat) error
	SaveChat(ctx context.Context, chat *store.Chat) error
	IncrementUnread(ctx context.Context, chatID string) error
	SaveMessage(ctx context.Context, msg *store.Message) error
	SaveSurvey(ctx context.Context, resp *store.SurveyResponse) error
}

// Router processes inbound contact messages. It takes the per-contact
// lease, persists the message, runs the dialogue engine when the chat is
// in automated mode, and hands escalations to the scheduler.
type Router struct {
	chats             Store
	leases            *lease.Manager
	states            *dialogue.StateStore
	engine            *dialogue.Engine
	scheduler         *assign.Scheduler
	messenger         messaging.Sender
	timers            *timers.Registry
	notifier          notify.Notifier
	inactivityTimeout time.Duration
	logger            *slog.Logger
}

// Options bundles the router's collaborators
type Options struct {
	Chats             Store
	Leases            *lease.Manager
	States            *dialogue.StateStore
	Engine            *dialogue.Engine
	Scheduler         *assign.Scheduler
	Messenger         messaging.Sender
	Timers            *timers.Registry
	Notifier          notify.Notifier
	InactivityTimeout time.Duration
	Logger            *slog.Logger
}

// New creates a router. A nil Notifier defaults to notify.Discard; a nil
// Logger defaults to slog.Default.
func New(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Router{
		chats:             opts.Chats,
		leases:            opts.Leases,
		states:            opts.States,
		engine:            opts.Engine,
		scheduler:         opts.Scheduler,
		messenger:         opts.Messenger,
		timers:            opts.Timers,
		notifier:          notifier,
		inactivityTimeout: opts.InactivityTimeout,
		logger:            logger.With("component", "router"),
	}
}

// HandleInbound processes one contact message. Concurrent messages from
// the same contact contend on the lease; the loser is dropped, not
// queued, because the contact will simply send again.
func (r *Router) HandleInbound(ctx context.Context, msg messaging.Inbound) error {
	acquired, err := r.leases.Acquire(ctx, msg.ContactID)
	if err != nil {
		return fmt.Errorf("acquiring lease for %s: %w", msg.ContactID, err)
	}
	if !acquired {
		r.logger.Debug("lease held, message dropped", "contact_id", msg.ContactID)
		return nil
	}
	defer func() {
		if err := r.leases.Release(context.WithoutCancel(ctx), msg.ContactID); err != nil {
			r.logger.Error("releasing lease", "contact_id", msg.ContactID, "error", err)
		}
	}()

	chat, err := r.loadOrCreateChat(ctx, msg.ContactID)
	if err != nil {
		return err
	}

	if err := r.recordMessage(ctx, chat.ID, store.DirectionInbound, msg.ContactID, msg.Text, msg.HasMedia); err != nil {
		return err
	}

	// A human owns the conversation; count the message for their console
	// badge and keep the automated dialogue out
	if chat.Status != store.StatusAutoResponder {
		if err := r.chats.IncrementUnread(ctx, chat.ID); err != nil {
			r.logger.Error("incrementing unread", "chat_id", chat.ID, "error", err)
		}
		return nil
	}

	if !r.messenger.Ready() {
		r.logger.Warn("messenger not ready, reply skipped", "contact_id", msg.ContactID)
		return nil
	}

	return r.respond(ctx, chat, msg)
}

func (r *Router) loadOrCreateChat(ctx context.Context, contactID string) (*store.Chat, error) {
	chat, err := r.chats.FindChatByContact(ctx, contactID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading chat for %s: %w", contactID, err)
	}

	now := time.Now()
	chat = &store.Chat{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Status:    store.StatusAutoResponder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.chats.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("creating chat for %s: %w", contactID, err)
	}

	r.notifier.Publish(notify.Event{
		Type:      notify.EventChatCreated,
		ChatID:    chat.ID,
		ContactID: contactID,
	})
	r.logger.Info("chat created", "chat_id", chat.ID, "contact_id", contactID)
	return chat, nil
}

// respond runs the dialogue engine and acts on its outcome. Engine panics
// and errors both degrade to an apology plus forced escalation so the
// contact is never left without an answer.
func (r *Router) respond(ctx context.Context, chat *store.Chat, msg messaging.Inbound) error {
	if err := r.messenger.SendTyping(ctx, msg.ContactID, 2*time.Second); err != nil {
		r.logger.Debug("typing indicator failed", "contact_id", msg.ContactID, "error", err)
	}

	st, err := r.states.Get(ctx, msg.ContactID)
	if err != nil {
		return fmt.Errorf("loading dialogue state for %s: %w", msg.ContactID, err)
	}

	outcome, err := r.evaluate(ctx, st, chat.CustomerName, msg.Text)
	if err != nil {
		r.logger.Error("dialogue engine failed, escalating", "contact_id", msg.ContactID, "error", err)
		return r.failover(ctx, chat)
	}

	if err := r.applyOutcome(ctx, chat, msg.ContactID, outcome); err != nil {
		return err
	}

	switch outcome.Kind {
	case dialogue.OutcomeEscalate:
		r.timers.Cancel(chat.ID, timers.KindInactivity)
		if err := r.sendReply(ctx, chat, dialogue.HoldingText); err != nil {
			return err
		}
		return r.scheduler.AutoAssign(ctx, chat)
	default:
		return r.sendReply(ctx, chat, outcome.Text)
	}
}

// evaluate shields the router from engine panics
func (r *Router) evaluate(ctx context.Context, st dialogue.State, customerName, text string) (outcome dialogue.Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dialogue engine panic: %v", rec)
		}
	}()
	return r.engine.Handle(ctx, st, customerName, text)
}

// applyOutcome persists everything the engine decided: the next dialogue
// state, a captured customer name, and a completed survey answer. The
// inactivity clock restarts on every handled message and stops when the
// session ended.
func (r *Router) applyOutcome(ctx context.Context, chat *store.Chat, contactID string, outcome dialogue.Outcome) error {
	if outcome.ResetState {
		if err := r.states.Reset(ctx, contactID); err != nil {
			return fmt.Errorf("resetting state for %s: %w", contactID, err)
		}
		r.timers.Cancel(chat.ID, timers.KindInactivity)
	} else {
		if err := r.states.Set(ctx, contactID, outcome.State); err != nil {
			return fmt.Errorf("saving state for %s: %w", contactID, err)
		}
		chatID := chat.ID
		r.timers.Start(chatID, timers.KindInactivity, r.inactivityTimeout, func() {
			r.scheduler.OnInactivityTimeout(chatID)
		})
	}

	if outcome.CapturedName != "" {
		chat.CustomerName = outcome.CapturedName
		if err := r.chats.SaveChat(ctx, chat); err != nil {
			return fmt.Errorf("saving customer name: %w", err)
		}
	}

	if outcome.Survey != nil {
		resp := &store.SurveyResponse{
			ID:        uuid.New().String(),
			ContactID: contactID,
			Rating:    outcome.Survey.Rating,
			Comment:   outcome.Survey.Comment,
			CreatedAt: time.Now(),
		}
		if err := r.chats.SaveSurvey(ctx, resp); err != nil {
			return fmt.Errorf("saving survey: %w", err)
		}
	}
	return nil
}

// failover apologizes and forces the chat to a human after an engine failure
func (r *Router) failover(ctx context.Context, chat *store.Chat) error {
	r.timers.Cancel(chat.ID, timers.KindInactivity)
	if err := r.states.Reset(ctx, chat.ContactID); err != nil {
		r.logger.Error("resetting state after failure", "contact_id", chat.ContactID, "error", err)
	}
	if err := r.sendReply(ctx, chat, dialogue.ApologyText); err != nil {
		r.logger.Error("sending apology", "contact_id", chat.ContactID, "error", err)
	}
	return r.scheduler.AutoAssign(ctx, chat)
}

func (r *Router) sendReply(ctx context.Context, chat *store.Chat, text string) error {
	if err := r.messenger.Send(ctx, chat.ContactID, text); err != nil {
		return fmt.Errorf("sending reply to %s: %w", chat.ContactID, err)
	}
	return r.recordMessage(ctx, chat.ID, store.DirectionOutbound, "bot", text, false)
}

func (r *Router) recordMessage(ctx context.Context, chatID, direction, sender, content string, hasMedia bool) error {
	err := r.chats.SaveMessage(ctx, &store.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Direction: direction,
		Sender:    sender,
		Content:   content,
		HasMedia:  hasMedia,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("recording %s message: %w", direction, err)
	}
	return nil
}
