package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type PageDestination struct {
	Id             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Url            string           `gorm:"type:varchar(500);uniqueIndex;not null"`
	Title          string           `gorm:"type:varchar(255);not null"`
	Description    string           `gorm:"type:text"`
	RequiredTier   int              `gorm:"not null;default:0"`
	Priority       int              `gorm:"not null;default:0"`
	EmbeddingValue *pgvector.Vector `gorm:"type:vector(768)"` // nil until indexed
	IsActive       bool             `gorm:"default:true;index"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt   `gorm:"index"`
}

func (PageDestination) TableName() string {
	return "page_destinations"
}

type SectionDestination struct {
	Id             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ElementId      string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_section_page_element"`
	Title          string           `gorm:"type:varchar(255);not null"`
	Description    string           `gorm:"type:text"`
	PageUrl        string           `gorm:"type:varchar(500);not null;index;uniqueIndex:idx_section_page_element"`
	PageTitle      string           `gorm:"type:varchar(255)"`
	RequiredTier   int              `gorm:"not null;default:0"`
	EmbeddingValue *pgvector.Vector `gorm:"type:vector(768)"`
	IsActive       bool             `gorm:"default:true;index"`
	CreatedAt      time.Time        `gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt   `gorm:"index"`
}

func (SectionDestination) TableName() string {
	return "section_destinations"
}
