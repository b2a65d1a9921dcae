package knowledge

import (
	"context"
	"errors"
	"testing"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Generate(_ context.Context, text string, _ string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: f.vectors[text]}}, nil
}

type failingIndex struct{}

func (failingIndex) Query(context.Context, string, []float32, int, float64) ([]vectorindex.Candidate, error) {
	return nil, errors.New("connection refused")
}

func seededIndex(t *testing.T) *vectorindex.MemoryIndex {
	idx := vectorindex.NewMemoryIndex()
	for _, r := range []vectorindex.Record{
		{ID: "refunds", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"content": "Refunds within 30 days.", "source_url": "/help/refunds", "source_title": "Refund policy"}},
		{ID: "shipping", Vector: []float32{0.8, 0.6, 0}, Payload: map[string]interface{}{"content": "Ships in 2 days.", "source_url": "/help/shipping", "source_title": "Shipping"}},
		{ID: "careers", Vector: []float32{0, 0, 1}, Payload: map[string]interface{}{"content": "We are hiring.", "source_url": "/careers", "source_title": "Careers"}},
	} {
		require.NoError(t, idx.Upsert(vectorindex.CollectionPassages, r))
	}
	return idx
}

func TestSearch_OrderedAndFloored(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"refund": {1, 0, 0}}}
	r := NewRetriever(emb, seededIndex(t), logger.NewNop(), 0)

	got := r.Search(context.Background(), "refund", DefaultLimit, DefaultMinSimilarity)

	require.Len(t, got, 2)
	assert.Equal(t, "refunds", got[0].Id)
	assert.Equal(t, "Refund policy", got[0].SourceTitle)
	assert.Equal(t, "/help/refunds", got[0].SourceUrl)
	assert.Equal(t, "shipping", got[1].Id)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
}

func TestSearch_StandaloneFloorIsStricter(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {0.6, 0, 0.8}}}
	r := NewRetriever(emb, seededIndex(t), logger.NewNop(), 0)

	conversational := r.Search(context.Background(), "q", DefaultLimit, DefaultMinSimilarity)
	standalone := r.Search(context.Background(), "q", DefaultLimit, SearchMinSimilarity)

	// careers 0.8, refunds 0.6, shipping 0.48
	assert.Len(t, conversational, 3)
	assert.Len(t, standalone, 2)
}

func TestSearch_LimitDefaults(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"refund": {1, 0, 0}}}
	r := NewRetriever(emb, seededIndex(t), logger.NewNop(), 0)

	assert.Len(t, r.Search(context.Background(), "refund", 1, 0), 1)
	assert.Len(t, r.Search(context.Background(), "refund", 0, 0), 3)
}

func TestSearch_FailuresYieldEmpty(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("quota")}, seededIndex(t), logger.NewNop(), 0)
	got := r.Search(context.Background(), "refund", 5, 0.3)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	r = NewRetriever(&fakeEmbedder{vectors: map[string][]float32{"x": {1}}}, failingIndex{}, logger.NewNop(), 0)
	assert.Empty(t, r.Search(context.Background(), "x", 5, 0.3))
}

func TestFormatForPrompt(t *testing.T) {
	out := FormatForPrompt([]entity.KnowledgePassage{
		{SourceTitle: "Refund policy", SourceUrl: "/help/refunds", Content: " Refunds within 30 days. ", Similarity: 0.823},
		{Content: "Ships in 2 days.", Similarity: 0.5},
	})

	assert.Contains(t, out, "1. Refund policy\n   Source: /help/refunds\n   Refunds within 30 days.\n   (Relevance: 82%)")
	assert.Contains(t, out, "2. Untitled\n   Ships in 2 days.\n   (Relevance: 50%)")
}

func TestFormatForPrompt_Empty(t *testing.T) {
	assert.Equal(t, NoResultsSentinel, FormatForPrompt(nil))
	assert.Equal(t, NoResultsSentinel, FormatForPrompt([]entity.KnowledgePassage{}))
}
