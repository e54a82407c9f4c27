package models

import (
	"time"

	"github.com/google/uuid"
)

// Document processing statuses. A worker claims pending -> processing before
// doing any work; completed documents ignore redelivered ingest triggers.
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// Message sender roles. The chat_messages table enforces this set.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderSystem    = "system"
)

type Document struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	Status      string    `json:"status"`
	FailReason  string    `json:"fail_reason,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type Chunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatSession struct {
	ID        uuid.UUID      `json:"id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RetrievedChunk is a per-turn search hit. It is never persisted; it only
// feeds the generation prompt for the turn that produced it.
type RetrievedChunk struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
