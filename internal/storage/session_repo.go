package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docuchat/internal/models"
)

var ErrSessionNotFound = errors.New("chat session not found")

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) CreateSession(ctx context.Context, metadata map[string]any) (models.ChatSession, error) {
	id := uuid.New()
	var s models.ChatSession
	s.Metadata = metadata
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO chat_sessions (id, metadata)
VALUES ($1, COALESCE($2, '{}'::jsonb))
RETURNING id, created_at`, id, metadata).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (models.ChatSession, error) {
	var s models.ChatSession
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, metadata, created_at FROM chat_sessions WHERE id=$1`, id).
		Scan(&s.ID, &s.Metadata, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
