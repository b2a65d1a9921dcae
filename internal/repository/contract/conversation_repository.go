package contract

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ErrConversationOwner is returned when a write targets a conversation that
// belongs to someone else.
var ErrConversationOwner = errors.New("conversation belongs to another user")

type ConversationRepository interface {
	FindById(ctx context.Context, id uuid.UUID) (*entity.Conversation, error)
	// Ensure creates the conversation if it does not exist yet. It fails with
	// ErrConversationOwner when the stored owner differs.
	Ensure(ctx context.Context, conversation *entity.Conversation) error
	CountMessages(ctx context.Context, conversationId uuid.UUID) (int, error)
	AppendMessages(ctx context.Context, messages []*entity.ConversationMessage) error
	FindMessages(ctx context.Context, conversationId uuid.UUID) ([]*entity.ConversationMessage, error)

	// UpsertCheckpoint never touches a row owned by another user.
	UpsertCheckpoint(ctx context.Context, checkpoint entity.ConversationCheckpoint) error
	FindCheckpoint(ctx context.Context, conversationId uuid.UUID) (*entity.ConversationCheckpoint, error)
}
