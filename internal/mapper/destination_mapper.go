package mapper

import (
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type DestinationMapper struct{}

func NewDestinationMapper() *DestinationMapper {
	return &DestinationMapper{}
}

func (m *DestinationMapper) PageToEntity(p *model.PageDestination) *entity.PageDestination {
	if p == nil {
		return nil
	}
	return &entity.PageDestination{
		Id:             p.Id,
		Url:            p.Url,
		Title:          p.Title,
		Description:    p.Description,
		RequiredTier:   entity.Tier(p.RequiredTier),
		Priority:       p.Priority,
		EmbeddingValue: vectorToSlice(p.EmbeddingValue),
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      nonZero(p.UpdatedAt),
	}
}

func (m *DestinationMapper) PageToModel(p *entity.PageDestination) *model.PageDestination {
	if p == nil {
		return nil
	}
	return &model.PageDestination{
		Id:             p.Id,
		Url:            p.Url,
		Title:          p.Title,
		Description:    p.Description,
		RequiredTier:   int(p.RequiredTier),
		Priority:       p.Priority,
		EmbeddingValue: sliceToVector(p.EmbeddingValue),
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
	}
}

func (m *DestinationMapper) SectionToEntity(s *model.SectionDestination) *entity.SectionDestination {
	if s == nil {
		return nil
	}
	return &entity.SectionDestination{
		Id:             s.Id,
		ElementId:      s.ElementId,
		Title:          s.Title,
		Description:    s.Description,
		PageUrl:        s.PageUrl,
		PageTitle:      s.PageTitle,
		RequiredTier:   entity.Tier(s.RequiredTier),
		EmbeddingValue: vectorToSlice(s.EmbeddingValue),
		IsActive:       s.IsActive,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      nonZero(s.UpdatedAt),
	}
}

func (m *DestinationMapper) SectionToModel(s *entity.SectionDestination) *model.SectionDestination {
	if s == nil {
		return nil
	}
	return &model.SectionDestination{
		Id:             s.Id,
		ElementId:      s.ElementId,
		Title:          s.Title,
		Description:    s.Description,
		PageUrl:        s.PageUrl,
		PageTitle:      s.PageTitle,
		RequiredTier:   int(s.RequiredTier),
		EmbeddingValue: sliceToVector(s.EmbeddingValue),
		IsActive:       s.IsActive,
		CreatedAt:      s.CreatedAt,
	}
}

func (m *DestinationMapper) PassageToEntity(p *model.KnowledgePassage) *entity.KnowledgeChunk {
	if p == nil {
		return nil
	}
	return &entity.KnowledgeChunk{
		Id:             p.Id,
		SourceUrl:      p.SourceUrl,
		SourceTitle:    p.SourceTitle,
		Content:        p.Content,
		ChunkIndex:     p.ChunkIndex,
		EmbeddingValue: vectorToSlice(p.EmbeddingValue),
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      nonZero(p.UpdatedAt),
	}
}

func (m *DestinationMapper) PassageToModel(c *entity.KnowledgeChunk) *model.KnowledgePassage {
	if c == nil {
		return nil
	}
	return &model.KnowledgePassage{
		Id:             c.Id,
		SourceUrl:      c.SourceUrl,
		SourceTitle:    c.SourceTitle,
		Content:        c.Content,
		ChunkIndex:     c.ChunkIndex,
		EmbeddingValue: sliceToVector(c.EmbeddingValue),
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
	}
}

func vectorToSlice(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func sliceToVector(s []float32) *pgvector.Vector {
	if len(s) == 0 {
		return nil
	}
	v := pgvector.NewVector(s)
	return &v
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
