package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/grupovorp/adpilot/internal/store"
)

// OpenDB opens a pgx-backed database/sql pool.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PGConversationStore implements store.ConversationStore backed by Postgres.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

// New opens the pool and returns the store (managed mode).
func New(dsn string) (*PGConversationStore, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	return NewPGConversationStore(db), nil
}

func (s *PGConversationStore) Close() error { return s.db.Close() }

func (s *PGConversationStore) GetOrCreateConversation(ctx context.Context, phone, displayName string) (*store.Conversation, error) {
	now := time.Now()

	var contactID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (phone, name, created_at, last_interaction)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (phone) DO UPDATE SET
		   name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
		   last_interaction = EXCLUDED.last_interaction
		 RETURNING id`,
		phone, displayName, now,
	).Scan(&contactID)
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	conv := &store.Conversation{ContactID: contactID, Status: "active"}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, started_at, last_message_at FROM conversations
		 WHERE contact_id = $1 AND status = 'active'
		 ORDER BY started_at DESC LIMIT 1`,
		contactID,
	).Scan(&conv.ID, &conv.StartedAt, &conv.LastMessageAt)
	if err == sql.ErrNoRows {
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO conversations (contact_id, status, started_at, last_message_at)
			 VALUES ($1, 'active', $2, $2) RETURNING id`,
			contactID, now,
		).Scan(&conv.ID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conv.StartedAt = now
		conv.LastMessageAt = now
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *PGConversationStore) AppendMessage(ctx context.Context, rec *store.MessageRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, contact_id, message_id, direction, text, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.ConversationID, rec.ContactID, rec.MessageID, rec.Direction, rec.Text, rec.Status, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`,
		rec.CreatedAt, rec.ConversationID,
	)
	if err != nil {
		return id, fmt.Errorf("touch conversation: %w", err)
	}
	return id, nil
}

func (s *PGConversationStore) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]store.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, contact_id, message_id, direction, text, status, created_at
		 FROM (
		   SELECT id, conversation_id, contact_id, message_id, direction, text, status, created_at
		   FROM messages WHERE conversation_id = $1
		   ORDER BY created_at DESC, id DESC LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []store.MessageRecord
	for rows.Next() {
		var m store.MessageRecord
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ContactID, &m.MessageID, &m.Direction, &m.Text, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *PGConversationStore) UpdateMessageStatus(ctx context.Context, messageRowID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = $1 WHERE id = $2`,
		status, messageRowID,
	)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

func (s *PGConversationStore) UpdateStatusByMessageID(ctx context.Context, messageID, status string) error {
	if messageID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = $1 WHERE message_id = $2`,
		status, messageID,
	)
	if err != nil {
		return fmt.Errorf("update message status by provider id: %w", err)
	}
	return nil
}

func (s *PGConversationStore) LogAgentAction(ctx context.Context, log *store.AgentLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (conversation_id, action, input_data, output_data, status, error_message, execution_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ConversationID, log.Action, log.Input, log.Output, log.Status, log.ErrorMessage, log.ExecutionMS, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}
