package implementation

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	var m model.Conversation
	if err := r.db.WithContext(ctx).Scopes(specification.ByID{ID: id}.Apply).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ConversationToEntity(&m), nil
}

func (r *ConversationRepositoryImpl) Ensure(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.Id == uuid.Nil {
		conversation.Id = uuid.New()
	}
	m := r.mapper.ConversationToModel(conversation)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"model_key", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "conversations.user_id IS NOT DISTINCT FROM excluded.user_id"},
		}},
	}).Create(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrConversationOwner
	}
	return nil
}

func (r *ConversationRepositoryImpl) CountMessages(ctx context.Context, conversationId uuid.UUID) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ConversationMessage{}).
		Scopes(specification.ByConversationID{ConversationID: conversationId}.Apply).
		Count(&n).Error
	return int(n), err
}

func (r *ConversationRepositoryImpl) AppendMessages(ctx context.Context, messages []*entity.ConversationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	models := make([]*model.ConversationMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Id == uuid.Nil {
			msg.Id = uuid.New()
		}
		m, err := r.mapper.MessageToModel(msg)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *ConversationRepositoryImpl) FindMessages(ctx context.Context, conversationId uuid.UUID) ([]*entity.ConversationMessage, error) {
	var models []model.ConversationMessage
	if err := r.db.WithContext(ctx).
		Scopes(
			specification.ByConversationID{ConversationID: conversationId}.Apply,
			specification.OrderBy{Field: "sequence"}.Apply,
		).
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.ConversationMessage, len(models))
	for i := range models {
		out[i] = r.mapper.MessageToEntity(&models[i])
	}
	return out, nil
}

// UpsertCheckpoint keeps one row per conversation. Within a turn a streaming
// row only moves forward and a finalized row is never overwritten; a new
// turn of the same owner replaces the row.
func (r *ConversationRepositoryImpl) UpsertCheckpoint(ctx context.Context, checkpoint entity.ConversationCheckpoint) error {
	m := r.mapper.CheckpointToModel(&checkpoint)
	m.Id = uuid.New()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"turn_id", "accumulated_text", "last_checkpoint_length",
			"selected_model_key", "status", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "conversation_checkpoints.user_id IS NOT DISTINCT FROM excluded.user_id AND (conversation_checkpoints.turn_id <> excluded.turn_id OR (conversation_checkpoints.status = ? AND conversation_checkpoints.last_checkpoint_length <= excluded.last_checkpoint_length))",
				Vars: []interface{}{string(entity.CheckpointStatusStreaming)}},
		}},
	}).Create(m).Error
}

func (r *ConversationRepositoryImpl) FindCheckpoint(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationCheckpoint, error) {
	var m model.ConversationCheckpoint
	if err := r.db.WithContext(ctx).Scopes(specification.ByConversationID{ConversationID: conversationId}.Apply).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.CheckpointToEntity(&m), nil
}
