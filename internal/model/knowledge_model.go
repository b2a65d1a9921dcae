package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgePassage struct {
	Id             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceUrl      string           `gorm:"type:varchar(500);not null;index"`
	SourceTitle    string           `gorm:"type:varchar(255)"`
	Content        string           `gorm:"type:text;not null"`
	ChunkIndex     int              `gorm:"default:0"` // 0-based order within the source
	EmbeddingValue *pgvector.Vector `gorm:"type:vector(768)"`
	IsActive       bool             `gorm:"default:true;index"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt   `gorm:"index"`
}

func (KnowledgePassage) TableName() string {
	return "knowledge_passages"
}
