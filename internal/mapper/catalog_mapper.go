package mapper

import (
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type CatalogMapper struct{}

func NewCatalogMapper() *CatalogMapper {
	return &CatalogMapper{}
}

// ModelToDescriptor expects Provider to be preloaded.
func (m *CatalogMapper) ModelToDescriptor(am *model.AiModel) *entity.ModelDescriptor {
	if am == nil {
		return nil
	}
	return &entity.ModelDescriptor{
		Id:              am.Id,
		Key:             am.Key,
		DisplayName:     am.DisplayName,
		ProviderKey:     am.Provider.Key,
		ProviderEnabled: am.Provider.IsEnabled && !am.Provider.DeletedAt.Valid,
		MinTier:         entity.Tier(am.MinTier),
		IsPremium:       am.IsPremium,
		IsActive:        am.IsActive,
	}
}

func (m *CatalogMapper) PersonaToEntity(p *model.AiPersona) *entity.Persona {
	if p == nil {
		return nil
	}
	return &entity.Persona{
		Id:            p.Id,
		Key:           p.Key,
		Name:          p.Name,
		SystemPrompt:  p.SystemPrompt,
		ModelOverride: p.ModelOverride,
		IsActive:      p.IsActive,
	}
}

func (m *CatalogMapper) PersonaToModel(p *entity.Persona) *model.AiPersona {
	if p == nil {
		return nil
	}
	return &model.AiPersona{
		Id:            p.Id,
		Key:           p.Key,
		Name:          p.Name,
		SystemPrompt:  p.SystemPrompt,
		ModelOverride: p.ModelOverride,
		IsActive:      p.IsActive,
	}
}

func (m *CatalogMapper) AccessToEntity(a *model.UserAccessState) *entity.UserAccessState {
	if a == nil {
		return nil
	}
	return &entity.UserAccessState{
		UserId:              a.UserId,
		Tier:                entity.Tier(a.Tier),
		PremiumUsageToday:   a.PremiumUsageToday,
		PremiumUsageResetAt: a.PremiumUsageResetAt,
		UpdatedAt:           nonZero(a.UpdatedAt),
	}
}

func (m *CatalogMapper) AccessToModel(a *entity.UserAccessState) *model.UserAccessState {
	if a == nil {
		return nil
	}
	return &model.UserAccessState{
		UserId:              a.UserId,
		Tier:                int(a.Tier),
		PremiumUsageToday:   a.PremiumUsageToday,
		PremiumUsageResetAt: a.PremiumUsageResetAt,
	}
}
