// Package knowledge retrieves grounding passages for the assistant.
package knowledge

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/vectorindex"
)

const (
	DefaultLimit         = 5
	DefaultMinSimilarity = 0.3
	SearchMinSimilarity  = 0.5
)

type Retriever struct {
	embedder embedding.EmbeddingProvider
	index    vectorindex.SimilarityIndex
	logger   logger.ILogger
	timeout  time.Duration
}

func NewRetriever(embedder embedding.EmbeddingProvider, index vectorindex.SimilarityIndex, log logger.ILogger, timeout time.Duration) *Retriever {
	return &Retriever{embedder: embedder, index: index, logger: log, timeout: timeout}
}

// Search returns passages ordered by descending similarity. Failures are
// logged and produce an empty result.
func (r *Retriever) Search(ctx context.Context, query string, limit int, minSimilarity float64) []entity.KnowledgePassage {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		r.logger.Warn("Retriever", "query embedding failed", map[string]interface{}{"error": err.Error()})
		return []entity.KnowledgePassage{}
	}

	candidates, err := r.index.Query(ctx, vectorindex.CollectionPassages, res.Embedding.Values, limit, minSimilarity)
	if err != nil {
		r.logger.Warn("Retriever", "passage lookup failed", map[string]interface{}{"error": err.Error()})
		return []entity.KnowledgePassage{}
	}

	passages := make([]entity.KnowledgePassage, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity < minSimilarity {
			continue
		}
		passages = append(passages, entity.KnowledgePassage{
			Id:          c.ID,
			Content:     c.String("content"),
			SourceUrl:   c.String("source_url"),
			SourceTitle: c.String("source_title"),
			Similarity:  c.Similarity,
		})
	}

	r.logger.Debug("Retriever", "passages retrieved", map[string]interface{}{
		"query": query,
		"count": len(passages),
		"floor": minSimilarity,
	})
	return passages
}
