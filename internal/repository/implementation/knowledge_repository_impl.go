package implementation

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DestinationMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewDestinationMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *KnowledgeRepositoryImpl) Create(ctx context.Context, chunk *entity.KnowledgeChunk) error {
	if chunk.Id == uuid.Nil {
		chunk.Id = uuid.New()
	}
	m := r.mapper.PassageToModel(chunk)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*chunk = *r.mapper.PassageToEntity(m)
	return nil
}

func (r *KnowledgeRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeChunk, error) {
	var models []model.KnowledgePassage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.KnowledgeChunk, len(models))
	for i := range models {
		out[i] = r.mapper.PassageToEntity(&models[i])
	}
	return out, nil
}

func (r *KnowledgeRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	return r.db.WithContext(ctx).Model(&model.KnowledgePassage{}).
		Scopes(specification.ByID{ID: id}.Apply).
		Update("embedding_value", pgvector.NewVector(vector)).Error
}

func (r *KnowledgeRepositoryImpl) DeleteBySourceUrl(ctx context.Context, sourceUrl string) error {
	query := r.applySpecifications(r.db.WithContext(ctx), specification.BySourceUrl{SourceUrl: sourceUrl})
	return query.Delete(&model.KnowledgePassage{}).Error
}

func (r *KnowledgeRepositoryImpl) ClearEmbeddings(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&model.KnowledgePassage{}).Update("embedding_value", nil).Error
}
