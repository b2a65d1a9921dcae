package contract

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

// DestinationRepository stores navigable pages and sections. Embeddings are
// written separately by the indexer.
type DestinationRepository interface {
	UpsertPage(ctx context.Context, page *entity.PageDestination) error
	UpsertSection(ctx context.Context, section *entity.SectionDestination) error
	FindAllPages(ctx context.Context, specs ...specification.Specification) ([]*entity.PageDestination, error)
	FindAllSections(ctx context.Context, specs ...specification.Specification) ([]*entity.SectionDestination, error)
	UpdatePageEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
	UpdateSectionEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
	ClearEmbeddings(ctx context.Context) error
}
