// ABOUTME: Record types and errors for chatdesk persistence
// ABOUTME: Defines Chat, Message, Agent and debt-domain records backed by SQLite

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateChat is returned when trying to create a chat for a contact
// that already has one
var ErrDuplicateChat = errors.New("chat already exists for contact")

// Chat status values. ACTIVE requires a non-empty AgentID; the other two
// require an empty one.
const (
	StatusAutoResponder     = "AUTO_RESPONDER"
	StatusPendingAssignment = "PENDING_ASSIGNMENT"
	StatusActive            = "ACTIVE"
)

// Chat represents the persistent record of a support interaction with a contact
type Chat struct {
	ID           string
	ContactID    string
	CustomerName string // empty until captured by the dialogue engine
	Status       string
	AgentID      string // empty unless Status is ACTIVE
	Unread       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message direction values
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message represents a single message within a chat for audit/history purposes
type Message struct {
	ID        string
	ChatID    string
	Direction string
	Sender    string // contact id, agent id, or "bot"
	Content   string
	HasMedia  bool
	CreatedAt time.Time
}

// Agent roles
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
)

// Agent represents a human agent account. Connectivity is tracked in the
// presence registry only, never here.
type Agent struct {
	ID        string
	Name      string
	Role      string
	CreatedAt time.Time
}

// Client is a customer record looked up by national id during consultation
type Client struct {
	ID       string // national id (cedula)
	FullName string
}

// DebtContract links a client to a creditor portfolio
type DebtContract struct {
	ID        string
	ClientID  string
	Portfolio string // raw provider descriptor, canonicalized at render time
	SelfOwned bool   // self-owned portfolios expose settlement figures
}

// DebtDetail holds the amounts for a contract. Self-owned contracts populate
// Total and Settlement; third-party contracts populate Balance and CutoffDate.
type DebtDetail struct {
	ContractID string
	Total      float64
	Settlement float64
	Balance    float64
	CutoffDate string
}

// Survey ratings
const (
	RatingBad       = "BAD"
	RatingRegular   = "REGULAR"
	RatingExcellent = "EXCELLENT"
)

// SurveyResponse stores a contact's end-of-session rating. Unclassifiable
// input lands in Comment with an empty Rating.
type SurveyResponse struct {
	ID        string
	ContactID string
	Rating    string
	Comment   string
	CreatedAt time.Time
}
