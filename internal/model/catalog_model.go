package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AiProvider struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Key       string         `gorm:"type:varchar(50);uniqueIndex;not null"` // "ollama", "gemini"
	Name      string         `gorm:"type:varchar(100);not null"`
	IsEnabled bool           `gorm:"default:true"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (AiProvider) TableName() string {
	return "ai_providers"
}

type AiModel struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Key         string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName string         `gorm:"type:varchar(200);not null"`
	ProviderId  uuid.UUID      `gorm:"type:uuid;not null;index"`
	Provider    AiProvider     `gorm:"foreignKey:ProviderId"`
	MinTier     int            `gorm:"not null;default:0"`
	IsPremium   bool           `gorm:"default:false"`
	IsActive    bool           `gorm:"default:true;index"`
	SortOrder   int            `gorm:"default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (AiModel) TableName() string {
	return "ai_models"
}

// AiPersona stores a prompt override for an intent key.
type AiPersona struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Key           string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name          string         `gorm:"type:varchar(200);not null"`
	SystemPrompt  string         `gorm:"type:text;not null"`
	ModelOverride *string        `gorm:"type:varchar(100)"`
	IsActive      bool           `gorm:"default:true;index"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (AiPersona) TableName() string {
	return "ai_personas"
}
