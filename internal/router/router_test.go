// ABOUTME: Tests for the inbound message router
// ABOUTME: Covers chat creation, lease contention, escalation and survey capture

package router

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvencia/chatdesk/internal/assign"
	"github.com/solvencia/chatdesk/internal/dialogue"
	"github.com/solvencia/chatdesk/internal/lease"
	"github.com/solvencia/chatdesk/internal/messaging"
	"github.com/solvencia/chatdesk/internal/presence"
	"github.com/solvencia/chatdesk/internal/store"
	"github.com/solvencia/chatdesk/internal/timers"
	"github.com/solvencia/chatdesk/internal/waitqueue"
)

type mockSender struct {
	mu    sync.Mutex
	sent  []string
	ready bool
}

func (m *mockSender) Send(ctx context.Context, contactID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockSender) SendTyping(ctx context.Context, contactID string, hint time.Duration) error {
	return nil
}

func (m *mockSender) Ready() bool { return m.ready }

func (m *mockSender) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type fixture struct {
	router *Router
	chats  *store.SQLiteStore
	leases *lease.Manager
	states *dialogue.StateStore
	queue  *waitqueue.Queue
	timers *timers.Registry
	sender *mockSender
}

func setup(t *testing.T) *fixture {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &fixture{
		chats:  s,
		leases: lease.NewManager(rdb, 30*time.Second),
		states: dialogue.NewStateStore(rdb, time.Hour, nil),
		queue:  waitqueue.New(rdb),
		timers: timers.NewRegistry(nil),
		sender: &mockSender{ready: true},
	}
	t.Cleanup(f.timers.StopAll)

	sched := assign.New(assign.Options{
		Chats:           s,
		Registry:        presence.NewRegistry(nil),
		Queue:           f.queue,
		Timers:          f.timers,
		States:          f.states,
		Messenger:       f.sender,
		ResponseTimeout: time.Hour,
	})

	f.router = New(Options{
		Chats:             s,
		Leases:            f.leases,
		States:            f.states,
		Engine:            dialogue.NewEngine(s, nil),
		Scheduler:         sched,
		Messenger:         f.sender,
		Timers:            f.timers,
		InactivityTimeout: time.Hour,
	})
	return f
}

func inbound(contactID, text string) messaging.Inbound {
	return messaging.Inbound{ContactID: contactID, Text: text, ReceivedAt: time.Now()}
}

func TestHandleInbound_FirstMessageCreatesChat(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))

	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAutoResponder, chat.Status)
	assert.Zero(t, chat.Unread, "bot-handled traffic is not unread for anyone")

	// inbound persisted, greeting sent and persisted
	msgs, err := f.chats.ListMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Len(t, f.sender.sentTexts(), 1)

	st, err := f.states.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepAskForName, st.Step)
	assert.True(t, f.timers.Active(chat.ID, timers.KindInactivity))
}

func TestHandleInbound_LeaseContentionDropsMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	acquired, err := f.leases.Acquire(ctx, "c1")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))

	_, err = f.chats.FindChatByContact(ctx, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.sender.sentTexts())
}

func TestHandleInbound_LeaseReleasedAfterHandling(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))

	held, err := f.leases.Held(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestHandleInbound_HumanHandledChatSkipsEngine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))
	f.sender.mu.Lock()
	f.sender.sent = nil
	f.sender.mu.Unlock()

	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	chat.Status = store.StatusActive
	chat.AgentID = "maria"
	require.NoError(t, f.chats.SaveChat(ctx, chat))

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "necesito ayuda")))

	assert.Empty(t, f.sender.sentTexts(), "no automated reply while a human handles the chat")

	reloaded, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Unread, "inbound counted for the agent's badge")

	msgs, err := f.chats.ListMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 3, "message still persisted for history")
}

func TestHandleInbound_MessengerNotReadySkipsReply(t *testing.T) {
	f := setup(t)
	f.sender.ready = false
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))

	assert.Empty(t, f.sender.sentTexts())
	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	msgs, err := f.chats.ListMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "message persisted even without a reply")
}

func TestHandleInbound_NameCapturePersistsToChat(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))
	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "carlos")))

	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Carlos", chat.CustomerName)

	st, err := f.states.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepMainMenu, st.Step)
}

func TestHandleInbound_EscalationQueuesWithNoAgents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))
	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "carlos")))
	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "2")))

	texts := f.sender.sentTexts()
	require.NotEmpty(t, texts)
	assert.Equal(t, dialogue.HoldingText, texts[len(texts)-1])

	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPendingAssignment, chat.Status)
	assert.Empty(t, chat.AgentID)

	head, ok, err := f.queue.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, chat.ID, head)

	assert.False(t, f.timers.Active(chat.ID, timers.KindInactivity),
		"inactivity clock stops once a human is on the hook")
}

func TestHandleInbound_SurveyAnswerPersistsAndEndsSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))
	require.NoError(t, f.states.Set(ctx, "c1", dialogue.State{
		Step:          dialogue.StepSurvey,
		TermsAccepted: true,
	}))

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "3")))

	surveys, err := f.chats.ListSurveysByContact(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, store.RatingExcellent, surveys[0].Rating)

	st, err := f.states.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, dialogue.DefaultState(), st)

	chat, err := f.chats.FindChatByContact(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, f.timers.Active(chat.ID, timers.KindInactivity))
}

func TestHandleInbound_FarewellStartsSurvey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "hola")))
	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "carlos")))
	require.NoError(t, f.router.HandleInbound(ctx, inbound("c1", "adios")))

	st, err := f.states.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, dialogue.StepSurvey, st.Step)
}
