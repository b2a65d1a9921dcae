package service

import (
	"context"
	"fmt"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/rag/checkpoint"

	"github.com/google/uuid"
)

// ModelCatalog is the read side of the model catalog used by a turn.
type ModelCatalog interface {
	// FindModel accepts a catalog id or a model key.
	FindModel(ctx context.Context, idOrKey string) (*entity.ModelDescriptor, error)
	FindPersona(ctx context.Context, key string) (*entity.Persona, error)
}

// FinalizedTurn is everything written when a turn completes.
type FinalizedTurn struct {
	Conversation entity.Conversation
	Request      []entity.ChatMessage
	Reply        entity.ChatMessage
	Checkpoint   entity.ConversationCheckpoint
}

type TurnStore interface {
	checkpoint.Store
	// FindConversation returns nil when the conversation does not exist.
	FindConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error)
	FinalizeTurn(ctx context.Context, turn FinalizedTurn) error
}

type repositoryCatalog struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRepositoryCatalog(uowFactory unitofwork.RepositoryFactory) ModelCatalog {
	return &repositoryCatalog{uowFactory: uowFactory}
}

func (c *repositoryCatalog) FindModel(ctx context.Context, idOrKey string) (*entity.ModelDescriptor, error) {
	repo := c.uowFactory.NewUnitOfWork(ctx).CatalogRepository()
	if id, err := uuid.Parse(idOrKey); err == nil {
		return repo.FindModelById(ctx, id)
	}
	return repo.FindModelByKey(ctx, idOrKey)
}

func (c *repositoryCatalog) FindPersona(ctx context.Context, key string) (*entity.Persona, error) {
	return c.uowFactory.NewUnitOfWork(ctx).CatalogRepository().FindPersonaByKey(ctx, key)
}

type repositoryTurnStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRepositoryTurnStore(uowFactory unitofwork.RepositoryFactory) TurnStore {
	return &repositoryTurnStore{uowFactory: uowFactory}
}

func (s *repositoryTurnStore) UpsertCheckpoint(ctx context.Context, cp entity.ConversationCheckpoint) error {
	return s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().UpsertCheckpoint(ctx, cp)
}

func (s *repositoryTurnStore) FindConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindById(ctx, id)
}

// FinalizeTurn appends the request messages the conversation has not stored
// yet plus the reply, and finalizes the checkpoint, in one transaction.
func (s *repositoryTurnStore) FinalizeTurn(ctx context.Context, turn FinalizedTurn) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	repo := uow.ConversationRepository()
	conv := turn.Conversation
	if err := repo.Ensure(ctx, &conv); err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	stored, err := repo.CountMessages(ctx, conv.Id)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	fresh := newMessages(turn.Request, stored)
	fresh = append(fresh, turn.Reply)
	rows := make([]*entity.ConversationMessage, 0, len(fresh))
	for i, m := range fresh {
		rows = append(rows, &entity.ConversationMessage{
			Id:             uuid.New(),
			ConversationId: conv.Id,
			Sequence:       stored + i,
			Role:           m.Role,
			Content:        m.Text(),
			Parts:          m.Parts,
		})
	}
	if err := repo.AppendMessages(ctx, rows); err != nil {
		return fmt.Errorf("append messages: %w", err)
	}

	if err := repo.UpsertCheckpoint(ctx, turn.Checkpoint); err != nil {
		return fmt.Errorf("finalize checkpoint: %w", err)
	}
	return uow.Commit()
}

// newMessages returns the request messages past what is already stored. A
// client that resends a shorter history contributes only its last user
// message. System messages are never stored.
func newMessages(request []entity.ChatMessage, stored int) []entity.ChatMessage {
	var convo []entity.ChatMessage
	for _, m := range request {
		if m.Role == entity.RoleUser || m.Role == entity.RoleAssistant {
			convo = append(convo, m)
		}
	}
	// stored includes our previous replies, which the client echoes back
	if stored < len(convo) {
		return convo[stored:]
	}
	for i := len(convo) - 1; i >= 0; i-- {
		if convo[i].Role == entity.RoleUser {
			return []entity.ChatMessage{convo[i]}
		}
	}
	return nil
}
