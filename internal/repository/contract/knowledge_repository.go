package contract

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type KnowledgeRepository interface {
	Create(ctx context.Context, chunk *entity.KnowledgeChunk) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeChunk, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
	DeleteBySourceUrl(ctx context.Context, sourceUrl string) error
	ClearEmbeddings(ctx context.Context) error
}
