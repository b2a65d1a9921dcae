package implementation

import (
	"context"
	"errors"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccessStateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CatalogMapper
}

func NewAccessStateRepository(db *gorm.DB) contract.AccessStateRepository {
	return &AccessStateRepositoryImpl{
		db:     db,
		mapper: mapper.NewCatalogMapper(),
	}
}

func (r *AccessStateRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserAccessState, error) {
	var m model.UserAccessState
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.AccessToEntity(&m), nil
}

// Upsert writes the tier. The premium counter is only changed through
// ConsumePremium.
func (r *AccessStateRepositoryImpl) Upsert(ctx context.Context, state *entity.UserAccessState) error {
	m := r.mapper.AccessToModel(state)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "updated_at"}),
	}).Create(m).Error
}

// ConsumePremium is one conditional UPDATE, so concurrent requests for the
// same user serialise on the row lock. A row is created on first use.
func (r *AccessStateRepositoryImpl) ConsumePremium(ctx context.Context, userId uuid.UUID, limit int, now time.Time) (entity.QuotaResult, error) {
	db := r.db.WithContext(ctx)
	nextReset := nextUTCMidnight(now)

	seed := model.UserAccessState{UserId: userId, Tier: int(entity.TierOne)}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return entity.QuotaResult{}, err
	}

	// A NULL reset time only needs one; it does not clear the counter.
	const lapsed = "premium_usage_reset_at < ?"
	var updated model.UserAccessState
	tx := db.Model(&updated).
		Clauses(clause.Returning{}).
		Where("user_id = ?", userId).
		Where("("+lapsed+" OR premium_usage_today < ?)", now, limit).
		Updates(map[string]interface{}{
			"premium_usage_today":    gorm.Expr("CASE WHEN "+lapsed+" THEN 1 ELSE premium_usage_today + 1 END", now),
			"premium_usage_reset_at": gorm.Expr("CASE WHEN premium_usage_reset_at IS NULL OR "+lapsed+" THEN ? ELSE premium_usage_reset_at END", now, nextReset),
			"updated_at":             now,
		})
	if tx.Error != nil {
		return entity.QuotaResult{}, tx.Error
	}

	if tx.RowsAffected == 0 {
		usage, resetAt, err := r.PremiumUsage(ctx, userId)
		if err != nil {
			return entity.QuotaResult{}, err
		}
		return entity.QuotaResult{Admitted: false, Usage: usage, ResetAt: resetAt}, nil
	}
	return entity.QuotaResult{Admitted: true, Usage: updated.PremiumUsageToday, ResetAt: updated.PremiumUsageResetAt}, nil
}

func (r *AccessStateRepositoryImpl) PremiumUsage(ctx context.Context, userId uuid.UUID) (int, *time.Time, error) {
	state, err := r.FindByUserId(ctx, userId)
	if err != nil || state == nil {
		return 0, nil, err
	}
	return state.PremiumUsageToday, state.PremiumUsageResetAt, nil
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}
