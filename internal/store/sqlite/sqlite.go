package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grupovorp/adpilot/internal/store"
)

// SQLiteConversationStore implements store.ConversationStore on a local
// SQLite file (standalone mode, no Postgres required).
type SQLiteConversationStore struct {
	db *sql.DB
}

func New(path string) (*SQLiteConversationStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteConversationStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteConversationStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		last_interaction TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contact_id INTEGER NOT NULL REFERENCES contacts(id),
		status TEXT NOT NULL DEFAULT 'active',
		started_at TIMESTAMP NOT NULL,
		last_message_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL REFERENCES conversations(id),
		contact_id INTEGER NOT NULL REFERENCES contacts(id),
		message_id TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE TABLE IF NOT EXISTS agent_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		input_data TEXT NOT NULL DEFAULT '',
		output_data TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		execution_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteConversationStore) Close() error { return s.db.Close() }

func (s *SQLiteConversationStore) GetOrCreateConversation(ctx context.Context, phone, displayName string) (*store.Conversation, error) {
	now := time.Now()

	var contactID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (phone, name, created_at, last_interaction)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(phone) DO UPDATE SET
		   name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
		   last_interaction = excluded.last_interaction
		 RETURNING id`,
		phone, displayName, now, now,
	).Scan(&contactID)
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	conv := &store.Conversation{ContactID: contactID, Status: "active"}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, started_at, last_message_at FROM conversations
		 WHERE contact_id = ? AND status = 'active'
		 ORDER BY started_at DESC LIMIT 1`,
		contactID,
	).Scan(&conv.ID, &conv.StartedAt, &conv.LastMessageAt)
	if err == sql.ErrNoRows {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO conversations (contact_id, status, started_at, last_message_at)
			 VALUES (?, 'active', ?, ?)`,
			contactID, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conv.ID, _ = res.LastInsertId()
		conv.StartedAt = now
		conv.LastMessageAt = now
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteConversationStore) AppendMessage(ctx context.Context, rec *store.MessageRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, contact_id, message_id, direction, text, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ConversationID, rec.ContactID, rec.MessageID, rec.Direction, rec.Text, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, _ := res.LastInsertId()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		rec.CreatedAt, rec.ConversationID,
	); err != nil {
		return id, fmt.Errorf("touch conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteConversationStore) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]store.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, contact_id, message_id, direction, text, status, created_at
		 FROM (
		   SELECT id, conversation_id, contact_id, message_id, direction, text, status, created_at
		   FROM messages WHERE conversation_id = ?
		   ORDER BY created_at DESC, id DESC LIMIT ?
		 )
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

func (s *SQLiteConversationStore) UpdateMessageStatus(ctx context.Context, messageRowID int64, status string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ?`,
		status, messageRowID,
	); err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

func (s *SQLiteConversationStore) UpdateStatusByMessageID(ctx context.Context, messageID, status string) error {
	if messageID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE message_id = ?`,
		status, messageID,
	); err != nil {
		return fmt.Errorf("update message status by provider id: %w", err)
	}
	return nil
}

func (s *SQLiteConversationStore) LogAgentAction(ctx context.Context, log *store.AgentLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (conversation_id, action, input_data, output_data, status, error_message, execution_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ConversationID, log.Action, log.Input, log.Output, log.Status, log.ErrorMessage, log.ExecutionMS, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}
