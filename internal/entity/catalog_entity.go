package entity

import "github.com/google/uuid"

// ModelDescriptor is a read-only catalog entry for a chat model.
type ModelDescriptor struct {
	Id              uuid.UUID
	Key             string
	DisplayName     string
	ProviderKey     string
	ProviderEnabled bool
	MinTier         Tier
	IsPremium       bool
	IsActive        bool
}

// Persona keys produced by the intent classifier.
const (
	PersonaDefault   = "default"
	PersonaTechnical = "technical"
	PersonaSales     = "sales"
	PersonaSupport   = "support"
)

// Persona is an optional stored prompt override for an intent.
type Persona struct {
	Id            uuid.UUID
	Key           string
	Name          string
	SystemPrompt  string
	ModelOverride *string
	IsActive      bool
}
