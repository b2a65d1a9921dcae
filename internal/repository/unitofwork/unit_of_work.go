package unitofwork

import (
	"context"

	"ai-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DestinationRepository() contract.DestinationRepository
	KnowledgeRepository() contract.KnowledgeRepository
	CatalogRepository() contract.CatalogRepository
	AccessStateRepository() contract.AccessStateRepository
	ConversationRepository() contract.ConversationRepository
}
