package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// CatalogRepository reads the model catalog and persona overrides. The
// upserts exist for seeding.
type CatalogRepository interface {
	FindModelByKey(ctx context.Context, key string) (*entity.ModelDescriptor, error)
	FindModelById(ctx context.Context, id uuid.UUID) (*entity.ModelDescriptor, error)
	FindActiveModels(ctx context.Context) ([]*entity.ModelDescriptor, error)
	FindPersonaByKey(ctx context.Context, key string) (*entity.Persona, error)

	UpsertProvider(ctx context.Context, key, name string, enabled bool) (uuid.UUID, error)
	UpsertModel(ctx context.Context, providerId uuid.UUID, descriptor *entity.ModelDescriptor) error
	UpsertPersona(ctx context.Context, persona *entity.Persona) error
}
