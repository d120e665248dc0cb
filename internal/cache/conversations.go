package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmelo/parley/internal/model"
)

// ReplaceConversations atomically replaces the cached conversation list.
// Position preserves server order; the cache never re-sorts.
func (db *DB) ReplaceConversations(convs []model.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, c := range convs {
		participants, err := json.Marshal(c.Participants)
		if err != nil {
			return fmt.Errorf("marshal participants: %w", err)
		}
		var lastMessage any
		if c.LastMessage != nil {
			b, err := json.Marshal(c.LastMessage)
			if err != nil {
				return fmt.Errorf("marshal last message: %w", err)
			}
			lastMessage = string(b)
		}
		if _, err := tx.Exec(`
			INSERT INTO conversations (id, name, is_group, position, participants_json, last_message_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.IsGroup, i, string(participants), lastMessage, now); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Conversations returns the cached conversation list in stored order.
func (db *DB) Conversations() ([]model.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, name, is_group, participants_json, last_message_json
		FROM conversations
		ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var participants string
		var lastMessage *string
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &participants, &lastMessage); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(participants), &c.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
		if lastMessage != nil {
			var m model.Message
			if err := json.Unmarshal([]byte(*lastMessage), &m); err != nil {
				return nil, fmt.Errorf("unmarshal last message: %w", err)
			}
			c.LastMessage = &m
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Purge drops everything cached. Called on logout.
func (db *DB) Purge() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return tx.Commit()
}
