package chat

import (
	"context"

	"github.com/google/uuid"

	"docuchat/internal/models"
	"docuchat/internal/vector"
)

// SessionStore and MessageStore are satisfied by the storage repos; tests
// plug in in-memory fakes.
type SessionStore interface {
	CreateSession(ctx context.Context, metadata map[string]any) (models.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (models.ChatSession, error)
}

type MessageStore interface {
	AppendTurn(ctx context.Context, sessionID uuid.UUID, userText, assistantText string) error
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatMessage, error)
}

// ChunkSearcher is satisfied by *vector.Searcher.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVec []float32, topK int, filters vector.SearchFilters) ([]models.RetrievedChunk, error)
}
