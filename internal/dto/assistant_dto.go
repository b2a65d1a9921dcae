package dto

import (
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type ChatMessagePartDTO struct {
	Type string `json:"type" validate:"required,oneof=text image file"`
	Text string `json:"text,omitempty"`
	Url  string `json:"url,omitempty"`
}

type ChatMessageDTO struct {
	Role    string               `json:"role" validate:"required,oneof=user assistant system"`
	Content string               `json:"content"`
	Parts   []ChatMessagePartDTO `json:"parts,omitempty" validate:"dive"`
}

type ChatRequest struct {
	Messages       []ChatMessageDTO `json:"messages" validate:"required,min=1,max=100,dive"`
	ModelId        string           `json:"model_id,omitempty" validate:"max=100"`
	ConversationId *uuid.UUID       `json:"conversation_id,omitempty"`
	Context        string           `json:"context" validate:"required,oneof=widget full-page"`
	CurrentPath    string           `json:"current_path,omitempty" validate:"max=500"`
}

// ToEntities projects the request messages onto domain messages.
func (r ChatRequest) ToEntities() []entity.ChatMessage {
	out := make([]entity.ChatMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		msg := entity.ChatMessage{Role: m.Role, Content: m.Content}
		for _, p := range m.Parts {
			msg.Parts = append(msg.Parts, entity.MessagePart{Type: p.Type, Text: p.Text, Url: p.Url})
		}
		out = append(out, msg)
	}
	return out
}

type ChatEventType string

const (
	ChatEventMeta       ChatEventType = "meta"
	ChatEventToken      ChatEventType = "token"
	ChatEventTool       ChatEventType = "tool"
	ChatEventNavigation ChatEventType = "navigation"
	ChatEventDone       ChatEventType = "done"
	ChatEventError      ChatEventType = "error"
)

// ChatEvent is one frame of a streamed turn.
type ChatEvent struct {
	Type ChatEventType `json:"type"`
	Data interface{}   `json:"data"`
}

type ChatMetaPayload struct {
	ConversationId   uuid.UUID           `json:"conversation_id"`
	TurnId           uuid.UUID           `json:"turn_id"`
	ModelId          string              `json:"model_id"`
	RequestedModelId string              `json:"requested_model_id,omitempty"`
	FallbackReason   string              `json:"fallback_reason,omitempty"`
	Intent           string              `json:"intent"`
	IntentSource     entity.IntentSource `json:"intent_source"`
}

type ChatTokenPayload struct {
	Text string `json:"text"`
}

type ChatToolPayload struct {
	CallId string `json:"call_id"`
	Name   string `json:"name"`
	Status string `json:"status"` // "started", "completed", "failed"
}

type ChatDonePayload struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	TurnId         uuid.UUID `json:"turn_id"`
	FinishReason   string    `json:"finish_reason"`
	Steps          int       `json:"steps"`
	Characters     int       `json:"characters"`
}

type ChatErrorPayload struct {
	Message string `json:"message"`
}

type ResolveRequest struct {
	Query       string `json:"query" validate:"required,max=500"`
	CurrentPath string `json:"current_path,omitempty" validate:"max=500"`
}

type ResolveResponse struct {
	Match *entity.DestinationMatch `json:"match"`
}

type SearchResponse struct {
	Query    string                    `json:"query"`
	Passages []entity.KnowledgePassage `json:"passages"`
}

type AccessStatusResponse struct {
	Tier     string     `json:"tier"`
	ModelId  string     `json:"model_id"`
	Admitted bool       `json:"admitted"`
	Reason   string     `json:"reason,omitempty"`
	Metered  bool       `json:"metered"`
	Limit    int        `json:"limit"`
	Used     int        `json:"used"`
	ResetAt  *time.Time `json:"reset_at,omitempty"`
}

type CheckpointResponse struct {
	ConversationId       uuid.UUID `json:"conversation_id"`
	TurnId               uuid.UUID `json:"turn_id"`
	Text                 string    `json:"text"`
	LastCheckpointLength int       `json:"last_checkpoint_length"`
	ModelId              string    `json:"model_id"`
	Status               string    `json:"status"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type RefreshIndexRequest struct {
	Full bool `json:"full"`
}
