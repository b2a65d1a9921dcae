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
	"gorm.io/gorm/clause"
)

type DestinationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DestinationMapper
}

func NewDestinationRepository(db *gorm.DB) contract.DestinationRepository {
	return &DestinationRepositoryImpl{
		db:     db,
		mapper: mapper.NewDestinationMapper(),
	}
}

func (r *DestinationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// UpsertPage keys on url. A changed title or description clears the
// embedding so the indexer picks the page up again.
func (r *DestinationRepositoryImpl) UpsertPage(ctx context.Context, page *entity.PageDestination) error {
	if page.Id == uuid.Nil {
		page.Id = uuid.New()
	}
	m := r.mapper.PageToModel(page)
	m.EmbeddingValue = nil
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"title":           m.Title,
			"description":     m.Description,
			"required_tier":   m.RequiredTier,
			"priority":        m.Priority,
			"is_active":       m.IsActive,
			"embedding_value": gorm.Expr("CASE WHEN page_destinations.title = excluded.title AND page_destinations.description = excluded.description THEN page_destinations.embedding_value ELSE NULL END"),
			"deleted_at":      nil,
			"updated_at":      gorm.Expr("now()"),
		}),
	}).Create(m).Error
	return err
}

func (r *DestinationRepositoryImpl) UpsertSection(ctx context.Context, section *entity.SectionDestination) error {
	if section.Id == uuid.Nil {
		section.Id = uuid.New()
	}
	m := r.mapper.SectionToModel(section)
	m.EmbeddingValue = nil
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page_url"}, {Name: "element_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"title":           m.Title,
			"description":     m.Description,
			"page_title":      m.PageTitle,
			"required_tier":   m.RequiredTier,
			"is_active":       m.IsActive,
			"embedding_value": gorm.Expr("CASE WHEN section_destinations.title = excluded.title AND section_destinations.description = excluded.description THEN section_destinations.embedding_value ELSE NULL END"),
			"deleted_at":      nil,
			"updated_at":      gorm.Expr("now()"),
		}),
	}).Create(m).Error
}

func (r *DestinationRepositoryImpl) FindAllPages(ctx context.Context, specs ...specification.Specification) ([]*entity.PageDestination, error) {
	var models []model.PageDestination
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.PageDestination, len(models))
	for i := range models {
		out[i] = r.mapper.PageToEntity(&models[i])
	}
	return out, nil
}

func (r *DestinationRepositoryImpl) FindAllSections(ctx context.Context, specs ...specification.Specification) ([]*entity.SectionDestination, error) {
	var models []model.SectionDestination
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.SectionDestination, len(models))
	for i := range models {
		out[i] = r.mapper.SectionToEntity(&models[i])
	}
	return out, nil
}

func (r *DestinationRepositoryImpl) UpdatePageEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	return r.db.WithContext(ctx).Model(&model.PageDestination{}).
		Scopes(specification.ByID{ID: id}.Apply).
		Update("embedding_value", pgvector.NewVector(vector)).Error
}

func (r *DestinationRepositoryImpl) UpdateSectionEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	return r.db.WithContext(ctx).Model(&model.SectionDestination{}).
		Scopes(specification.ByID{ID: id}.Apply).
		Update("embedding_value", pgvector.NewVector(vector)).Error
}

// ClearEmbeddings forces a full re-index.
func (r *DestinationRepositoryImpl) ClearEmbeddings(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&model.PageDestination{}).Update("embedding_value", nil).Error; err != nil {
		return err
	}
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&model.SectionDestination{}).Update("embedding_value", nil).Error
}
