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

type CatalogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CatalogMapper
}

func NewCatalogRepository(db *gorm.DB) contract.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:     db,
		mapper: mapper.NewCatalogMapper(),
	}
}

// withProvider loads the provider even when it is soft-deleted so that the
// descriptor reports it as disabled instead of dropping the model.
func withProvider(db *gorm.DB) *gorm.DB {
	return db.Preload("Provider", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (r *CatalogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CatalogRepositoryImpl) findModel(ctx context.Context, specs ...specification.Specification) (*entity.ModelDescriptor, error) {
	var m model.AiModel
	query := r.applySpecifications(withProvider(r.db.WithContext(ctx)), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ModelToDescriptor(&m), nil
}

func (r *CatalogRepositoryImpl) FindModelByKey(ctx context.Context, key string) (*entity.ModelDescriptor, error) {
	return r.findModel(ctx, specification.ByKey{Key: key})
}

func (r *CatalogRepositoryImpl) FindModelById(ctx context.Context, id uuid.UUID) (*entity.ModelDescriptor, error) {
	return r.findModel(ctx, specification.ByID{ID: id})
}

func (r *CatalogRepositoryImpl) FindActiveModels(ctx context.Context) ([]*entity.ModelDescriptor, error) {
	var models []model.AiModel
	query := r.applySpecifications(withProvider(r.db.WithContext(ctx)),
		specification.Active{},
		specification.OrderBy{Field: "sort_order"},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.ModelDescriptor, len(models))
	for i := range models {
		out[i] = r.mapper.ModelToDescriptor(&models[i])
	}
	return out, nil
}

func (r *CatalogRepositoryImpl) FindPersonaByKey(ctx context.Context, key string) (*entity.Persona, error) {
	var p model.AiPersona
	query := r.applySpecifications(r.db.WithContext(ctx), specification.ByKey{Key: key}, specification.Active{})
	if err := query.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PersonaToEntity(&p), nil
}

func (r *CatalogRepositoryImpl) UpsertProvider(ctx context.Context, key, name string, enabled bool) (uuid.UUID, error) {
	p := model.AiProvider{Id: uuid.New(), Key: key, Name: name, IsEnabled: enabled}
	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "is_enabled", "updated_at"}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}}},
	).Create(&p).Error
	return p.Id, err
}

func (r *CatalogRepositoryImpl) UpsertModel(ctx context.Context, providerId uuid.UUID, d *entity.ModelDescriptor) error {
	if d.Id == uuid.Nil {
		d.Id = uuid.New()
	}
	m := model.AiModel{
		Id:          d.Id,
		Key:         d.Key,
		DisplayName: d.DisplayName,
		ProviderId:  providerId,
		MinTier:     int(d.MinTier),
		IsPremium:   d.IsPremium,
		IsActive:    d.IsActive,
	}
	return r.db.WithContext(ctx).Omit("Provider").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "provider_id", "min_tier", "is_premium", "is_active", "updated_at"}),
	}).Create(&m).Error
}

func (r *CatalogRepositoryImpl) UpsertPersona(ctx context.Context, persona *entity.Persona) error {
	if persona.Id == uuid.Nil {
		persona.Id = uuid.New()
	}
	m := r.mapper.PersonaToModel(persona)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "system_prompt", "model_override", "is_active", "updated_at"}),
	}).Create(m).Error
}
