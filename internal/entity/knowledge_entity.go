package entity

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeChunk is a stored, embedded piece of source content.
type KnowledgeChunk struct {
	Id             uuid.UUID
	SourceUrl      string
	SourceTitle    string
	Content        string
	ChunkIndex     int
	EmbeddingValue []float32
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// KnowledgePassage is a retrieval result.
type KnowledgePassage struct {
	Id          string  `json:"id"`
	Content     string  `json:"content"`
	SourceUrl   string  `json:"source_url"`
	SourceTitle string  `json:"source_title"`
	Similarity  float64 `json:"similarity"`
}
