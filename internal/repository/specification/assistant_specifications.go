package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Active keeps rows with is_active = true.
type Active struct{}

func (s Active) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// MissingEmbedding selects rows the indexer has not embedded yet.
type MissingEmbedding struct{}

func (s MissingEmbedding) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("embedding_value IS NULL")
}

type BySourceUrl struct {
	SourceUrl string
}

func (s BySourceUrl) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_url = ?", s.SourceUrl)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByKey struct {
	Key string
}

func (s ByKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("key = ?", s.Key)
}
