package seed

import (
	"context"
	"fmt"
	"strconv"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/utils"
	"ai-assistant-be/pkg/vectorindex"
)

// BuildIndex embeds a seed file into an in-memory index so resolve and
// search can be tried without a database. Payload keys match the pgvector
// index.
func BuildIndex(ctx context.Context, embedder embedding.EmbeddingProvider, f *File) (*vectorindex.MemoryIndex, error) {
	idx := vectorindex.NewMemoryIndex()

	embed := func(text string) ([]float32, error) {
		res, err := embedder.Generate(ctx, text, embedding.TaskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		return res.Embedding.Values, nil
	}

	pageTitles := map[string]string{}
	for _, p := range f.Pages {
		tier, _ := tierOrGuest(p.RequiredTier)
		page := entity.PageDestination{Title: p.Title, Description: p.Description}
		vec, err := embed(page.Document())
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", p.Url, err)
		}
		pageTitles[p.Url] = p.Title
		if err := idx.Upsert(vectorindex.CollectionPages, vectorindex.Record{
			ID:       p.Url,
			Vector:   vec,
			Priority: p.Priority,
			Payload: map[string]interface{}{
				"url":           p.Url,
				"title":         p.Title,
				"required_tier": int(tier),
			},
		}); err != nil {
			return nil, err
		}
	}

	for _, s := range f.Sections {
		tier, _ := tierOrGuest(s.RequiredTier)
		section := entity.SectionDestination{Title: s.Title, Description: s.Description, PageTitle: pageTitles[s.PageUrl]}
		vec, err := embed(section.Document())
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.ElementId, err)
		}
		if err := idx.Upsert(vectorindex.CollectionSections, vectorindex.Record{
			ID:     s.PageUrl + "#" + s.ElementId,
			Vector: vec,
			Payload: map[string]interface{}{
				"element_id":    s.ElementId,
				"title":         s.Title,
				"page_url":      s.PageUrl,
				"page_title":    section.PageTitle,
				"required_tier": int(tier),
			},
		}); err != nil {
			return nil, err
		}
	}

	for _, src := range f.Sources {
		for i, chunk := range utils.SplitText(src.Content, service.PassageChunkSize, service.PassageChunkOverlap) {
			vec, err := embed(chunk)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", src.Url, err)
			}
			if err := idx.Upsert(vectorindex.CollectionPassages, vectorindex.Record{
				ID:     src.Url + ":" + strconv.Itoa(i),
				Vector: vec,
				Payload: map[string]interface{}{
					"content":      chunk,
					"source_url":   src.Url,
					"source_title": src.Title,
				},
			}); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}
