package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"docuchat/internal/models"
)

type SearchFilters struct {
	DocumentIDs []int64
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks returns the topK chunks nearest to queryVec by cosine
// similarity (score = 1 - distance), ordered descending with ties broken by
// lower chunk id. The IVFFlat index makes this approximate at scale.
func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, topK int, filters SearchFilters) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 6
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{vecLiteral, topK}

	filterSQL := ""
	if len(filters.DocumentIDs) > 0 {
		filterSQL = " AND c.document_id = ANY($3)"
		args = append(args, filters.DocumentIDs)
	}

	query := `
SELECT c.id,
       c.document_id,
       c.chunk_index,
       c.content,
       1 - (c.embedding <=> $1::vector) AS score
FROM chunks c
WHERE c.embedding IS NOT NULL` + filterSQL + `
ORDER BY c.embedding <=> $1::vector, c.id ASC
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.RetrievedChunk, 0, topK)
	for rows.Next() {
		var r models.RetrievedChunk
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
