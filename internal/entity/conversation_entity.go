package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatContext string

const (
	ChatContextWidget   ChatContext = "widget"
	ChatContextFullPage ChatContext = "full-page"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// MessagePart is one element of a multi-part message. Only text parts
// take part in classification.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Url  string `json:"url,omitempty"`
}

type ChatMessage struct {
	Role    string
	Content string
	Parts   []MessagePart
}

// Text returns the text-only projection of the message.
func (m ChatMessage) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	text := ""
	for _, p := range m.Parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += p.Text
	}
	if text == "" {
		return m.Content
	}
	return text
}

type Conversation struct {
	Id        uuid.UUID
	UserId    *uuid.UUID
	Context   ChatContext
	Title     string
	ModelKey  string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// OwnedBy reports whether userId owns the conversation. Guest
// conversations are owned by the nil user only.
func (c *Conversation) OwnedBy(userId *uuid.UUID) bool {
	if c.UserId == nil || userId == nil {
		return c.UserId == nil && userId == nil
	}
	return *c.UserId == *userId
}

type ConversationMessage struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Sequence       int
	Role           string
	Content        string
	Parts          []MessagePart
	CreatedAt      time.Time
}

type CheckpointStatus string

const (
	CheckpointStatusStreaming CheckpointStatus = "streaming"
	CheckpointStatusFinalized CheckpointStatus = "finalized"
)

// ConversationCheckpoint is the partial assistant output for the current turn.
type ConversationCheckpoint struct {
	ConversationId       uuid.UUID
	TurnId               uuid.UUID
	UserId               *uuid.UUID
	AccumulatedText      string
	LastCheckpointLength int
	SelectedModelKey     string
	Status               CheckpointStatus
	UpdatedAt            time.Time
}
