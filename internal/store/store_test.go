package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwell/law-search/internal/search"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, search.DefaultWeights(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecords() []Record {
	return []Record{
		{
			LawID:         "M32HO089",
			ArticleNumber: "第1条",
			Content:       "所得税、納税義務。",
			Vector:        []float32{1, 0, 0},
			Category:      "税法",
			ModelName:     "test-model",
			Metadata:      map[string]any{"xml_element": "Article"},
		},
		{
			LawID:         "M32HO089",
			ArticleNumber: "第2条",
			Content:       "居住者、非居住者。",
			Vector:        []float32{0, 1, 0},
			Category:      "税法",
			ModelName:     "test-model",
		},
		{
			LawID:         "M40HO034",
			ArticleNumber: "第1条",
			Content:       "法人、事業年度。",
			Vector:        []float32{0.9, 0.1, 0},
			Category:      "税法",
			ModelName:     "test-model",
		},
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for _, k := range keys {
		assert.Len(t, k, 26, "storage keys are ULIDs")
	}

	rec, err := s.GetByKey(ctx, keys[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "M32HO089", rec.LawID)
	assert.Equal(t, "第1条", rec.ArticleNumber)
	assert.Equal(t, []float32{1, 0, 0}, rec.Vector)
	assert.Equal(t, "Article", rec.Metadata["xml_element"])
	assert.False(t, rec.InsertedAt.IsZero())

	missing, err := s.GetByKey(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byLaw, err := s.GetByLawID(ctx, "M32HO089")
	require.NoError(t, err)
	require.Len(t, byLaw, 2)
	assert.Equal(t, "第1条", byLaw[0].ArticleNumber)
}

func TestStore_InsertBatch_SkipsFailedRecord(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	recs := testRecords()
	recs[0].Key = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	recs[1].Key = recs[0].Key // duplicate key, violates the primary key

	keys, err := s.InsertBatch(ctx, recs)
	require.NoError(t, err)
	require.Len(t, keys, 2, "the duplicate is skipped, not fatal")
	assert.Equal(t, recs[0].Key, keys[0])

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Documents)
	assert.Equal(t, 2, stats.VectorCount)
}

func TestStore_SearchFullText(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)

	hits, err := s.SearchFullText(ctx, "所得税", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, keys[0], hits[0].Key)
	assert.Greater(t, hits[0].Score, 0.0, "scores are negated bm25, higher is better")

	empty, err := s.SearchFullText(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	none, err := s.SearchFullText(ctx, "存在しない用語", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_SearchVector(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)

	hits, err := s.SearchVector(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, keys[0], hits[0].Key, "identical vector ranks first")
	assert.Equal(t, keys[2], hits[1].Key, "near vector ranks second")
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestStore_SearchHybrid(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)

	results, err := s.SearchHybrid(ctx, "所得税", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, keys[0], results[0].Record.Key,
		"candidate matching both channels ranks first")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestStore_SearchHybrid_VectorOnly(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)

	// fulltext finds nothing, fusion proceeds on the vector channel
	results, err := s.SearchHybrid(ctx, "存在しない用語", []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, keys[1], results[0].Record.Key)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lawsearch.db")
	ctx := context.Background()

	s := openTestStore(t, path)
	keys, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	rec, err := reopened.GetByKey(ctx, keys[0])
	require.NoError(t, err)
	require.NotNil(t, rec)

	hits, err := reopened.SearchVector(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1, "vector index is rebuilt from stored rows")
	assert.Equal(t, keys[0], hits[0].Key)
}

func TestStore_Stats(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, testRecords())
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Documents)
	assert.Equal(t, 3, stats.VectorCount)
	assert.GreaterOrEqual(t, stats.IndexCount, 3)
}

func TestStore_CleanupOlderThan(t *testing.T) {
	s := openTestStore(t, "")
	ctx := context.Background()

	recs := testRecords()
	recs[0].InsertedAt = time.Now().UTC().AddDate(0, 0, -60)
	keys, err := s.InsertBatch(ctx, recs)
	require.NoError(t, err)

	removed, err := s.CleanupOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := s.GetByKey(ctx, keys[0])
	require.NoError(t, err)
	assert.Nil(t, gone)

	hits, err := s.SearchFullText(ctx, "所得税", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "cleanup removes fulltext entries too")
	assert.Equal(t, 2, s.vectors.Len())
}

func TestStore_Ping(t *testing.T) {
	s := openTestStore(t, "")
	assert.NoError(t, s.Ping(context.Background()))
}
