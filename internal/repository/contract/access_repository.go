package contract

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type AccessStateRepository interface {
	// FindByUserId returns nil when the user has no row yet.
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserAccessState, error)
	Upsert(ctx context.Context, state *entity.UserAccessState) error
	ConsumePremium(ctx context.Context, userId uuid.UUID, limit int, now time.Time) (entity.QuotaResult, error)
	PremiumUsage(ctx context.Context, userId uuid.UUID) (int, *time.Time, error)
}
