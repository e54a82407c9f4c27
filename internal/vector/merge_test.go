package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"docuchat/internal/models"
)

func TestMergeRankedKeepsHighestScorePerChunk(t *testing.T) {
	groups := [][]models.RetrievedChunk{
		{
			{ChunkID: 1, Score: 0.5},
			{ChunkID: 2, Score: 0.9},
		},
		{
			{ChunkID: 1, Score: 0.8},
			{ChunkID: 3, Score: 0.7},
		},
	}
	merged := MergeRanked(groups, 10)
	require.Len(t, merged, 3)
	require.Equal(t, int64(2), merged[0].ChunkID)
	require.Equal(t, int64(1), merged[1].ChunkID)
	require.InDelta(t, 0.8, merged[1].Score, 1e-9)
	require.Equal(t, int64(3), merged[2].ChunkID)
}

func TestMergeRankedTieBreaksByLowerChunkID(t *testing.T) {
	groups := [][]models.RetrievedChunk{
		{
			{ChunkID: 9, Score: 0.6},
			{ChunkID: 4, Score: 0.6},
		},
	}
	merged := MergeRanked(groups, 10)
	require.Equal(t, int64(4), merged[0].ChunkID)
	require.Equal(t, int64(9), merged[1].ChunkID)
}

func TestMergeRankedTruncatesToTopK(t *testing.T) {
	groups := [][]models.RetrievedChunk{
		{
			{ChunkID: 1, Score: 0.9},
			{ChunkID: 2, Score: 0.8},
			{ChunkID: 3, Score: 0.7},
		},
	}
	merged := MergeRanked(groups, 2)
	require.Len(t, merged, 2)
	require.Equal(t, int64(1), merged[0].ChunkID)
}

func TestToLiteral(t *testing.T) {
	lit := ToLiteral([]float32{0.5, -1})
	require.Equal(t, "[0.500000,-1.000000]", lit)
}
