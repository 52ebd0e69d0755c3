package store

import (
	"context"
	"time"
)

// Message direction and status values.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"

	StatusPending   = "pending"
	StatusReceived  = "received"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Contact is one external peer, keyed by phone (or channel handle).
type Contact struct {
	ID              int64
	Phone           string
	Name            string
	CreatedAt       time.Time
	LastInteraction time.Time
}

// Conversation groups messages with one contact.
type Conversation struct {
	ID            int64
	ContactID     int64
	Status        string // active, closed, archived
	StartedAt     time.Time
	LastMessageAt time.Time
}

// MessageRecord is one stored inbound or outbound message.
type MessageRecord struct {
	ID             int64
	ConversationID int64
	ContactID      int64
	MessageID      string // provider message ID, when known
	Direction      string
	Text           string
	Status         string
	CreatedAt      time.Time
}

// AgentLog records one agent action for auditing.
type AgentLog struct {
	ID             int64
	ConversationID int64
	Action         string
	Input          string
	Output         string
	Status         string // success, error
	ErrorMessage   string
	ExecutionMS    int64
	CreatedAt      time.Time
}

// ConversationStore is the persistence contract the pipeline needs.
type ConversationStore interface {
	// GetOrCreateConversation resolves the active conversation for a phone,
	// creating contact and conversation rows as needed. displayName updates
	// the contact name when non-empty.
	GetOrCreateConversation(ctx context.Context, phone, displayName string) (*Conversation, error)

	// AppendMessage stores a message and returns its row ID.
	AppendMessage(ctx context.Context, rec *MessageRecord) (int64, error)

	// RecentMessages returns up to limit most recent messages of a
	// conversation, oldest first.
	RecentMessages(ctx context.Context, conversationID int64, limit int) ([]MessageRecord, error)

	// UpdateMessageStatus sets the status of a stored message.
	UpdateMessageStatus(ctx context.Context, messageRowID int64, status string) error

	// UpdateStatusByMessageID sets the status of a message by its provider
	// message ID, as delivery receipts identify messages that way.
	UpdateStatusByMessageID(ctx context.Context, messageID, status string) error

	// LogAgentAction records an agent run or failure.
	LogAgentAction(ctx context.Context, log *AgentLog) error

	Close() error
}
