package storage

import (
	"context"
	"fmt"

	"docuchat/internal/models"
)

type ChunkRecord struct {
	DocumentID int64
	ChunkIndex int
	Content    string
	Embedding  string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks swaps a document's chunk set for the given records in one
// transaction: indices beyond the new count are deleted (the text shrank),
// the rest are upserted on (document_id, chunk_index). Re-ingesting the same
// document therefore converges on the same rows instead of appending.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, documentID int64, records []ChunkRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1 AND chunk_index >= $2`,
		documentID, len(records))
	if err != nil {
		return fmt.Errorf("trim stale chunks: %w", err)
	}

	for _, c := range records {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (document_id, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (document_id, chunk_index)
DO UPDATE SET
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding`,
			documentID, c.ChunkIndex, c.Content, c.Embedding,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %d/%d: %w", documentID, c.ChunkIndex, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByDocument(ctx context.Context, documentID int64) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, document_id, chunk_index, content, created_at
FROM chunks
WHERE document_id=$1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepo) CountChunks(ctx context.Context, documentID int64) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id=$1`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
