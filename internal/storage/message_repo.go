package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"docuchat/internal/models"
)

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendTurn records one chat turn: the user message followed by the
// assistant message, inside a single transaction. History replay depends on
// every turn contributing exactly this pair in this order.
func (r *MessageRepo) AppendTurn(ctx context.Context, sessionID uuid.UUID, userText, assistantText string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx append turn: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
INSERT INTO chat_messages (session_id, sender, content) VALUES ($1, 'user', $2)`,
		sessionID, userText)
	if err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO chat_messages (session_id, sender, content) VALUES ($1, 'assistant', $2)`,
		sessionID, assistantText)
	if err != nil {
		return fmt.Errorf("insert assistant message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit turn tx: %w", err)
	}
	return nil
}

// ListRecentMessages returns the last n messages in chronological order.
func (r *MessageRepo) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, session_id, sender, content, created_at
FROM (
  SELECT id, session_id, sender, content, created_at
  FROM chat_messages
  WHERE session_id=$1
  ORDER BY id DESC
  LIMIT $2
) recent
ORDER BY id ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()
	out := make([]models.ChatMessage, 0, n)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (r *MessageRepo) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, session_id, sender, content, created_at
FROM chat_messages
WHERE session_id=$1
ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	out := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
