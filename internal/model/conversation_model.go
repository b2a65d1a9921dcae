package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Conversation struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserId    *uuid.UUID `gorm:"type:uuid;index"`
	Context   string     `gorm:"type:varchar(20);not null;default:'widget'"`
	Title     string     `gorm:"type:varchar(255)"`
	ModelKey  string     `gorm:"type:varchar(100)"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationMessage rows are only ever inserted.
type ConversationMessage struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_sequence"`
	Sequence       int            `gorm:"not null;uniqueIndex:idx_conversation_sequence"`
	Role           string         `gorm:"type:varchar(20);not null"`
	Content        string         `gorm:"type:text"`
	Parts          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

type ConversationCheckpoint struct {
	Id                   uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId       uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	TurnId               uuid.UUID  `gorm:"type:uuid;not null"`
	UserId               *uuid.UUID `gorm:"type:uuid;index"`
	AccumulatedText      string     `gorm:"type:text;not null;default:''"`
	LastCheckpointLength int        `gorm:"not null;default:0"`
	SelectedModelKey     string     `gorm:"type:varchar(100)"`
	Status               string     `gorm:"type:varchar(20);not null;default:'streaming'"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime"`
}

func (ConversationCheckpoint) TableName() string {
	return "conversation_checkpoints"
}
