package mapper

import (
	"encoding/json"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	return &entity.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Context:   entity.ChatContext(c.Context),
		Title:     c.Title,
		ModelKey:  c.ModelKey,
		CreatedAt: c.CreatedAt,
		UpdatedAt: nonZero(c.UpdatedAt),
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}
	return &model.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Context:   string(c.Context),
		Title:     c.Title,
		ModelKey:  c.ModelKey,
		CreatedAt: c.CreatedAt,
	}
}

func (m *ConversationMapper) MessageToEntity(msg *model.ConversationMessage) *entity.ConversationMessage {
	if msg == nil {
		return nil
	}
	var parts []entity.MessagePart
	if len(msg.Parts) > 0 {
		// unreadable parts degrade to content-only
		_ = json.Unmarshal(msg.Parts, &parts)
	}
	return &entity.ConversationMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Sequence:       msg.Sequence,
		Role:           msg.Role,
		Content:        msg.Content,
		Parts:          parts,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ConversationMapper) MessageToModel(msg *entity.ConversationMessage) (*model.ConversationMessage, error) {
	if msg == nil {
		return nil, nil
	}
	out := &model.ConversationMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Sequence:       msg.Sequence,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if len(msg.Parts) > 0 {
		raw, err := json.Marshal(msg.Parts)
		if err != nil {
			return nil, err
		}
		out.Parts = datatypes.JSON(raw)
	}
	return out, nil
}

func (m *ConversationMapper) CheckpointToEntity(c *model.ConversationCheckpoint) *entity.ConversationCheckpoint {
	if c == nil {
		return nil
	}
	return &entity.ConversationCheckpoint{
		ConversationId:       c.ConversationId,
		TurnId:               c.TurnId,
		UserId:               c.UserId,
		AccumulatedText:      c.AccumulatedText,
		LastCheckpointLength: c.LastCheckpointLength,
		SelectedModelKey:     c.SelectedModelKey,
		Status:               entity.CheckpointStatus(c.Status),
		UpdatedAt:            c.UpdatedAt,
	}
}

func (m *ConversationMapper) CheckpointToModel(c *entity.ConversationCheckpoint) *model.ConversationCheckpoint {
	if c == nil {
		return nil
	}
	return &model.ConversationCheckpoint{
		ConversationId:       c.ConversationId,
		TurnId:               c.TurnId,
		UserId:               c.UserId,
		AccumulatedText:      c.AccumulatedText,
		LastCheckpointLength: c.LastCheckpointLength,
		SelectedModelKey:     c.SelectedModelKey,
		Status:               string(c.Status),
	}
}
