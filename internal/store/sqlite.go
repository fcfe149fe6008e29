// ABOUTME: SQLite implementation of chatdesk persistence using modernc.org/sqlite
// ABOUTME: Provides chat/message/agent/debt persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements chatdesk persistence using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			contact_id TEXT NOT NULL UNIQUE,
			customer_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			agent_id TEXT NOT NULL DEFAULT '',
			unread INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (status IN ('AUTO_RESPONDER', 'PENDING_ASSIGNMENT', 'ACTIVE'))
		);

		CREATE INDEX IF NOT EXISTS idx_chats_status ON chats(status);
		CREATE INDEX IF NOT EXISTS idx_chats_agent ON chats(agent_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			has_media INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,

			FOREIGN KEY (chat_id) REFERENCES chats(id),
			CHECK (direction IN ('inbound', 'outbound'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_chat_created
			ON messages(chat_id, created_at);

		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (role IN ('agent', 'supervisor'))
		);

		CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS debt_contracts (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			portfolio TEXT NOT NULL,
			self_owned INTEGER NOT NULL DEFAULT 0,

			FOREIGN KEY (client_id) REFERENCES clients(id)
		);

		CREATE INDEX IF NOT EXISTS idx_debt_contracts_client
			ON debt_contracts(client_id);

		CREATE TABLE IF NOT EXISTS debt_details (
			contract_id TEXT PRIMARY KEY,
			total REAL NOT NULL DEFAULT 0,
			settlement REAL NOT NULL DEFAULT 0,
			balance REAL NOT NULL DEFAULT 0,
			cutoff_date TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (contract_id) REFERENCES debt_contracts(id)
		);

		CREATE TABLE IF NOT EXISTS survey_responses (
			id TEXT PRIMARY KEY,
			contact_id TEXT NOT NULL,
			rating TEXT NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_survey_contact
			ON survey_responses(contact_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// CreateChat inserts a new chat record. Returns ErrDuplicateChat if the
// contact already has one.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	query := `
		INSERT INTO chats (id, contact_id, customer_name, status, agent_id, unread, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		chat.ID,
		chat.ContactID,
		chat.CustomerName,
		chat.Status,
		chat.AgentID,
		chat.Unread,
		chat.CreatedAt.UTC().Format(time.RFC3339),
		chat.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateChat
		}
		return fmt.Errorf("inserting chat: %w", err)
	}

	s.logger.Debug("created chat", "id", chat.ID, "contact_id", chat.ContactID)
	return nil
}

// scanChat reads a chat row from the given scanner
func scanChat(row *sql.Row) (*Chat, error) {
	var chat Chat
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&chat.ID,
		&chat.ContactID,
		&chat.CustomerName,
		&chat.Status,
		&chat.AgentID,
		&chat.Unread,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chat: %w", err)
	}

	chat.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	chat.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &chat, nil
}

const chatColumns = `id, contact_id, customer_name, status, agent_id, unread, created_at, updated_at`

// FindChatByID retrieves a chat by its identifier
func (s *SQLiteStore) FindChatByID(ctx context.Context, id string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE id = ?`, id)
	return scanChat(row)
}

// FindChatByContact retrieves the chat owned by the given contact
func (s *SQLiteStore) FindChatByContact(ctx context.Context, contactID string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE contact_id = ?`, contactID)
	return scanChat(row)
}

// SaveChat updates the mutable fields of an existing chat
func (s *SQLiteStore) SaveChat(ctx context.Context, chat *Chat) error {
	chat.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET customer_name = ?, status = ?, agent_id = ?, unread = ?, updated_at = ?
		WHERE id = ?
	`,
		chat.CustomerName,
		chat.Status,
		chat.AgentID,
		chat.Unread,
		chat.UpdatedAt.UTC().Format(time.RFC3339),
		chat.ID,
	)
	if err != nil {
		return fmt.Errorf("updating chat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementUnread bumps the unread counter for a chat
func (s *SQLiteStore) IncrementUnread(ctx context.Context, chatID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET unread = unread + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), chatID)
	if err != nil {
		return fmt.Errorf("incrementing unread: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetUnread zeroes the unread counter for a chat
func (s *SQLiteStore) ResetUnread(ctx context.Context, chatID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET unread = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), chatID)
	if err != nil {
		return fmt.Errorf("resetting unread: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveChatsByAgent returns the number of ACTIVE chats assigned to the agent
func (s *SQLiteStore) CountActiveChatsByAgent(ctx context.Context, agentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chats WHERE status = ? AND agent_id = ?`,
		StatusActive, agentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active chats: %w", err)
	}
	return count, nil
}

// ListChatsByStatus returns chats in the given status, most recently updated first
func (s *SQLiteStore) ListChatsByStatus(ctx context.Context, status string) ([]*Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE status = ? ORDER BY updated_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var chat Chat
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(
			&chat.ID,
			&chat.ContactID,
			&chat.CustomerName,
			&chat.Status,
			&chat.AgentID,
			&chat.Unread,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chat.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		chat.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
		chats = append(chats, &chat)
	}
	return chats, rows.Err()
}

// SaveMessage appends a message to a chat's history
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	hasMedia := 0
	if msg.HasMedia {
		hasMedia = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, direction, sender, content, has_media, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ChatID,
		msg.Direction,
		msg.Sender,
		msg.Content,
		hasMedia,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages for a chat, oldest first
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, direction, sender, content, has_media, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		var hasMedia int
		var createdAtStr string
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Direction,
			&msg.Sender,
			&msg.Content,
			&hasMedia,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.HasMedia = hasMedia != 0
		msg.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// SaveAgent inserts or replaces an agent account
func (s *SQLiteStore) SaveAgent(ctx context.Context, agent *Agent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role
	`,
		agent.ID,
		agent.Name,
		agent.Role,
		agent.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving agent: %w", err)
	}
	return nil
}

// FindAgentByID retrieves an agent account by id
func (s *SQLiteStore) FindAgentByID(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	var createdAtStr string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, created_at FROM agents WHERE id = ?`, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Role,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	agent.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	return &agent, nil
}

// FindClientByID retrieves a client record by national id
func (s *SQLiteStore) FindClientByID(ctx context.Context, id string) (*Client, error) {
	var client Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, full_name FROM clients WHERE id = ?`, id).Scan(
		&client.ID,
		&client.FullName,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	return &client, nil
}

// FindDebtContractsForClient returns all debt contracts held by a client
func (s *SQLiteStore) FindDebtContractsForClient(ctx context.Context, clientID string) ([]*DebtContract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, portfolio, self_owned FROM debt_contracts WHERE client_id = ? ORDER BY id`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("querying debt contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*DebtContract
	for rows.Next() {
		var c DebtContract
		var selfOwned int
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Portfolio, &selfOwned); err != nil {
			return nil, fmt.Errorf("scanning debt contract: %w", err)
		}
		c.SelfOwned = selfOwned != 0
		contracts = append(contracts, &c)
	}
	return contracts, rows.Err()
}

// FindDebtDetail returns the amount detail for a contract. The selfOwned flag
// selects which figures are meaningful; both sets live in the same table.
func (s *SQLiteStore) FindDebtDetail(ctx context.Context, contractID string, selfOwned bool) (*DebtDetail, error) {
	var d DebtDetail
	err := s.db.QueryRowContext(ctx,
		`SELECT contract_id, total, settlement, balance, cutoff_date FROM debt_details WHERE contract_id = ?`,
		contractID).Scan(
		&d.ContractID,
		&d.Total,
		&d.Settlement,
		&d.Balance,
		&d.CutoffDate,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying debt detail: %w", err)
	}
	return &d, nil
}

// SaveClient inserts or replaces a client record. Used by seeding and tests.
func (s *SQLiteStore) SaveClient(ctx context.Context, client *Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, full_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name
	`, client.ID, client.FullName)
	if err != nil {
		return fmt.Errorf("saving client: %w", err)
	}
	return nil
}

// SaveDebtContract inserts or replaces a debt contract. Used by seeding and tests.
func (s *SQLiteStore) SaveDebtContract(ctx context.Context, contract *DebtContract) error {
	selfOwned := 0
	if contract.SelfOwned {
		selfOwned = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debt_contracts (id, client_id, portfolio, self_owned) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET portfolio = excluded.portfolio, self_owned = excluded.self_owned
	`, contract.ID, contract.ClientID, contract.Portfolio, selfOwned)
	if err != nil {
		return fmt.Errorf("saving debt contract: %w", err)
	}
	return nil
}

// SaveDebtDetail inserts or replaces a contract's amount detail. Used by seeding and tests.
func (s *SQLiteStore) SaveDebtDetail(ctx context.Context, detail *DebtDetail) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debt_details (contract_id, total, settlement, balance, cutoff_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contract_id) DO UPDATE SET
			total = excluded.total,
			settlement = excluded.settlement,
			balance = excluded.balance,
			cutoff_date = excluded.cutoff_date
	`, detail.ContractID, detail.Total, detail.Settlement, detail.Balance, detail.CutoffDate)
	if err != nil {
		return fmt.Errorf("saving debt detail: %w", err)
	}
	return nil
}

// SaveSurvey records a contact's end-of-session survey response
func (s *SQLiteStore) SaveSurvey(ctx context.Context, resp *SurveyResponse) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO survey_responses (id, contact_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		resp.ID,
		resp.ContactID,
		resp.Rating,
		resp.Comment,
		resp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting survey response: %w", err)
	}
	return nil
}

// ListSurveysByContact returns a contact's survey responses, newest first
func (s *SQLiteStore) ListSurveysByContact(ctx context.Context, contactID string) ([]*SurveyResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, rating, comment, created_at
		FROM survey_responses
		WHERE contact_id = ?
		ORDER BY created_at DESC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("querying survey responses: %w", err)
	}
	defer rows.Close()

	var out []*SurveyResponse
	for rows.Next() {
		var r SurveyResponse
		var createdAtStr string
		if err := rows.Scan(&r.ID, &r.ContactID, &r.Rating, &r.Comment, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning survey response: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		out = append(out, &r)
	}
	return out, rows.Err()
}
