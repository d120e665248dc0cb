package cache

import (
	"fmt"

	"github.com/dmelo/parley/internal/model"
)

// ReplaceMessages atomically replaces the cached messages of one conversation.
func (db *DB) ReplaceMessages(conversationID int64, msgs []model.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	for i, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, id, sender_id, content, content_type, timestamp, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conversationID, m.ID, m.SenderID, m.Content, m.ContentType, m.Timestamp, i); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendMessage adds one message at the end of a conversation's cached list
// (idempotent on conversation_id + id).
func (db *DB) AppendMessage(m model.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, id, sender_id, content, content_type, timestamp, position)
		VALUES (?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM messages WHERE conversation_id = ?))
		ON CONFLICT(conversation_id, id) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			timestamp = excluded.timestamp`,
		m.ConversationID, m.ID, m.SenderID, m.Content, m.ContentType, m.Timestamp, m.ConversationID)
	return err
}

// Messages returns the cached messages of a conversation in stored order.
func (db *DB) Messages(conversationID int64) ([]model.Message, error) {
	rows, err := db.Query(`
		SELECT conversation_id, id, sender_id, content, content_type, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.Content, &m.ContentType, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
