package model

import (
	"time"

	"github.com/google/uuid"
)

type UserAccessState struct {
	UserId              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tier                int       `gorm:"not null;default:1"`
	PremiumUsageToday   int       `gorm:"not null;default:0"`
	PremiumUsageResetAt *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (UserAccessState) TableName() string {
	return "user_access_states"
}
