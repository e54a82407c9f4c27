package vector

import (
	"sort"

	"docuchat/internal/models"
)

// MergeRanked combines search results retrieved for multiple query phrasings.
// A chunk retrieved by more than one phrasing keeps its highest score; the
// merged set is re-ranked by score descending, ties by lower chunk id, and
// truncated to topK.
func MergeRanked(groups [][]models.RetrievedChunk, topK int) []models.RetrievedChunk {
	if topK <= 0 {
		topK = 6
	}
	best := make(map[int64]models.RetrievedChunk)
	for _, group := range groups {
		for _, r := range group {
			cur, ok := best[r.ChunkID]
			if !ok || r.Score > cur.Score {
				best[r.ChunkID] = r
			}
		}
	}
	merged := make([]models.RetrievedChunk, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
