package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"branddos/internal/models"
)

// ChatStore appends to and reads the per-user chat log.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore creates a new ChatStore.
func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

// Append writes one message to the user's log.
func (s *ChatStore) Append(userID uuid.UUID, role models.ChatRole, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (user_id, role, content) VALUES ($1, $2, $3)
	`, userID, string(role), content)
	if err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

// ListByUser returns the user's messages in the order they were written.
func (s *ChatStore) ListByUser(userID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
