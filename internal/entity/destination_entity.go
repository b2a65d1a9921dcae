package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageDestination is a navigable page of the host site.
type PageDestination struct {
	Id             uuid.UUID
	Url            string
	Title          string
	Description    string
	RequiredTier   Tier
	Priority       int
	EmbeddingValue []float32
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Document is the text embedded for the page.
func (p *PageDestination) Document() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + "\n" + p.Description
}

// SectionDestination is an anchorable element within a page.
type SectionDestination struct {
	Id             uuid.UUID
	ElementId      string
	Title          string
	Description    string
	PageUrl        string
	PageTitle      string
	RequiredTier   Tier
	EmbeddingValue []float32
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func (s *SectionDestination) Document() string {
	var sb strings.Builder
	sb.WriteString(s.Title)
	if s.PageTitle != "" {
		sb.WriteString(" (on " + s.PageTitle + ")")
	}
	if s.Description != "" {
		sb.WriteString("\n" + s.Description)
	}
	return sb.String()
}

type MatchType string

const (
	MatchTypePage           MatchType = "page"
	MatchTypeSection        MatchType = "section"
	MatchTypePageAndSection MatchType = "page_and_section"
)

// DestinationMatch is the single navigation target picked for a query.
type DestinationMatch struct {
	Type              MatchType `json:"type"`
	Url               string    `json:"url"`
	Title             string    `json:"title"`
	ElementId         string    `json:"element_id,omitempty"`
	PageTitle         string    `json:"page_title,omitempty"`
	Similarity        float64   `json:"similarity"`
	RequiredTier      Tier      `json:"required_tier"`
	AlternativeExists bool      `json:"alternative_exists"`
	IsOnCurrentPage   bool      `json:"is_on_current_page"`
	// Locked is advisory: the caller decides how to handle it.
	Locked bool `json:"locked"`
}
