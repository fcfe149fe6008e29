// ABOUTME: Tests for the SQLite store
// ABOUTME: Verifies chat lifecycle, unread counters, debt lookups and surveys

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestChat(contactID string) *Chat {
	now := time.Now()
	return &Chat{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Status:    StatusAutoResponder,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateChat_AndFindByContact(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chat := newTestChat("573001112233")
	require.NoError(t, s.CreateChat(ctx, chat))

	found, err := s.FindChatByContact(ctx, "573001112233")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)
	assert.Equal(t, StatusAutoResponder, found.Status)
	assert.Empty(t, found.AgentID)
	assert.Zero(t, found.Unread)
}

func TestCreateChat_DuplicateContact(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateChat(ctx, newTestChat("c1")))
	err := s.CreateChat(ctx, newTestChat("c1"))
	assert.ErrorIs(t, err, ErrDuplicateChat)
}

func TestFindChatByID_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FindChatByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveChat_UpdatesFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chat := newTestChat("c1")
	require.NoError(t, s.CreateChat(ctx, chat))

	chat.CustomerName = "Juan"
	chat.Status = StatusActive
	chat.AgentID = "agent-1"
	require.NoError(t, s.SaveChat(ctx, chat))

	found, err := s.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan", found.CustomerName)
	assert.Equal(t, StatusActive, found.Status)
	assert.Equal(t, "agent-1", found.AgentID)
}

func TestSaveChat_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.SaveChat(context.Background(), newTestChat("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnreadCounters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chat := newTestChat("c1")
	require.NoError(t, s.CreateChat(ctx, chat))

	require.NoError(t, s.IncrementUnread(ctx, chat.ID))
	require.NoError(t, s.IncrementUnread(ctx, chat.ID))

	found, err := s.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Unread)

	require.NoError(t, s.ResetUnread(ctx, chat.ID))
	found, err = s.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Zero(t, found.Unread)
}

func TestCountActiveChatsByAgent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, contact := range []string{"c1", "c2", "c3"} {
		chat := newTestChat(contact)
		if i < 2 {
			chat.Status = StatusActive
			chat.AgentID = "agent-1"
		}
		require.NoError(t, s.CreateChat(ctx, chat))
	}

	count, err := s.CountActiveChatsByAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.CountActiveChatsByAgent(ctx, "agent-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMessages_SaveAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chat := newTestChat("c1")
	require.NoError(t, s.CreateChat(ctx, chat))

	base := time.Now()
	for i, content := range []string{"hola", "buenas", "adios"} {
		require.NoError(t, s.SaveMessage(ctx, &Message{
			ID:        uuid.New().String(),
			ChatID:    chat.ID,
			Direction: DirectionInbound,
			Sender:    "c1",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := s.ListMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hola", msgs[0].Content)
	assert.Equal(t, "adios", msgs[2].Content)
}

func TestAgents_SaveAndFind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAgent(ctx, &Agent{
		ID:        "agent-1",
		Name:      "Maria",
		Role:      RoleAgent,
		CreatedAt: time.Now(),
	}))

	agent, err := s.FindAgentByID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "Maria", agent.Name)
	assert.Equal(t, RoleAgent, agent.Role)

	_, err = s.FindAgentByID(ctx, "agent-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDebtLookups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveClient(ctx, &Client{ID: "1033456789", FullName: "Juan Perez"}))
	require.NoError(t, s.SaveDebtContract(ctx, &DebtContract{
		ID: "ct-1", ClientID: "1033456789", Portfolio: "CLARO MOVIL", SelfOwned: false,
	}))
	require.NoError(t, s.SaveDebtContract(ctx, &DebtContract{
		ID: "ct-2", ClientID: "1033456789", Portfolio: "CARTERA PROPIA", SelfOwned: true,
	}))
	require.NoError(t, s.SaveDebtDetail(ctx, &DebtDetail{
		ContractID: "ct-1", Balance: 250000, CutoffDate: "2026-07-31",
	}))
	require.NoError(t, s.SaveDebtDetail(ctx, &DebtDetail{
		ContractID: "ct-2", Total: 1200000, Settlement: 800000,
	}))

	client, err := s.FindClientByID(ctx, "1033456789")
	require.NoError(t, err)
	assert.Equal(t, "Juan Perez", client.FullName)

	contracts, err := s.FindDebtContractsForClient(ctx, "1033456789")
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	detail, err := s.FindDebtDetail(ctx, "ct-2", true)
	require.NoError(t, err)
	assert.Equal(t, float64(1200000), detail.Total)
	assert.Equal(t, float64(800000), detail.Settlement)

	_, err = s.FindClientByID(ctx, "000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSurveys_SaveAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSurvey(ctx, &SurveyResponse{
		ID:        uuid.New().String(),
		ContactID: "c1",
		Rating:    RatingExcellent,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, s.SaveSurvey(ctx, &SurveyResponse{
		ID:        uuid.New().String(),
		ContactID: "c1",
		Comment:   "todo bien pero lento",
		CreatedAt: time.Now().Add(time.Second),
	}))

	responses, err := s.ListSurveysByContact(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "todo bien pero lento", responses[0].Comment)
	assert.Equal(t, RatingExcellent, responses[1].Rating)
}
