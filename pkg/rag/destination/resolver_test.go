package destination

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticEmbedder struct{ err error }

func (s staticEmbedder) Generate(context.Context, string, string) (*embedding.EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1}}}, nil
}

// stubIndex returns canned candidates and applies the floor like a real index.
type stubIndex struct {
	mu      sync.Mutex
	results map[string][]vectorindex.Candidate
	err     error
	failOn  map[string]error
	calls   map[string]int
}

func (s *stubIndex) Query(_ context.Context, collection string, _ []float32, topN int, minSimilarity float64) ([]vectorindex.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[collection]++
	if s.err != nil {
		return nil, s.err
	}
	if err := s.failOn[collection]; err != nil {
		return nil, err
	}
	var out []vectorindex.Candidate
	for _, c := range s.results[collection] {
		if c.Similarity >= minSimilarity && len(out) < topN {
			out = append(out, c)
		}
	}
	return out, nil
}

func page(url, title string, sim float64, tier entity.Tier) vectorindex.Candidate {
	return vectorindex.Candidate{ID: url, Similarity: sim, Payload: map[string]interface{}{
		"url": url, "title": title, "required_tier": int64(tier), "priority": int64(0),
	}}
}

func section(elementId, pageUrl string, sim float64, tier entity.Tier) vectorindex.Candidate {
	return vectorindex.Candidate{ID: elementId, Similarity: sim, Payload: map[string]interface{}{
		"element_id": elementId, "title": elementId + " section", "page_url": pageUrl,
		"page_title": "Page " + pageUrl, "required_tier": int64(tier),
	}}
}

func newResolver(idx vectorindex.SimilarityIndex) *Resolver {
	return NewResolver(staticEmbedder{}, idx, logger.NewNop(), DefaultOptions())
}

func TestResolve_Rules(t *testing.T) {
	tests := []struct {
		name            string
		query           string
		currentPath     string
		pages           []vectorindex.Candidate
		sections        []vectorindex.Candidate
		wantNil         bool
		wantType        entity.MatchType
		wantUrl         string
		wantElement     string
		wantAlternative bool
		wantOnPage      bool
	}{
		{
			name:        "same page section wins over slightly better page",
			query:       "show me pricing",
			currentPath: "/services",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.81, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("pricing", "/services", 0.78, entity.TierGuest)},
			wantType:    entity.MatchTypeSection, wantUrl: "/services", wantElement: "pricing",
			wantAlternative: true, wantOnPage: true,
		},
		{
			name:        "page keyword forces page",
			query:       "go to the pricing page",
			currentPath: "/services",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.81, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("pricing", "/services", 0.78, entity.TierGuest)},
			wantType:    entity.MatchTypePage, wantUrl: "/pricing", wantAlternative: true,
		},
		{
			name:        "section keyword forces section on another page",
			query:       "open the FAQ Section",
			currentPath: "/",
			pages:       []vectorindex.Candidate{page("/faq", "FAQ", 0.95, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("faq", "/help", 0.6, entity.TierGuest)},
			wantType:    entity.MatchTypePageAndSection, wantUrl: "/help", wantElement: "faq",
			wantAlternative: true,
		},
		{
			name:        "margin exactly 0.1 is not enough for the page",
			query:       "pricing",
			currentPath: "/",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.81, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("plans", "/services", 0.71, entity.TierGuest)},
			wantType:    entity.MatchTypePageAndSection, wantUrl: "/services", wantElement: "plans",
			wantAlternative: true,
		},
		{
			name:        "margin above 0.1 picks the page",
			query:       "pricing",
			currentPath: "/",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.9, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("plans", "/services", 0.7, entity.TierGuest)},
			wantType:    entity.MatchTypePage, wantUrl: "/pricing", wantAlternative: true,
		},
		{
			name:        "only a page",
			query:       "about us",
			currentPath: "/about",
			pages:       []vectorindex.Candidate{page("/about", "About", 0.7, entity.TierGuest)},
			wantType:    entity.MatchTypePage, wantUrl: "/about", wantOnPage: true,
		},
		{
			name:        "only a section elsewhere",
			query:       "contact form",
			currentPath: "/",
			sections:    []vectorindex.Candidate{section("contact-form", "/contact", 0.66, entity.TierGuest)},
			wantType:    entity.MatchTypePageAndSection, wantUrl: "/contact", wantElement: "contact-form",
		},
		{
			name:        "everything under the floor",
			query:       "weather in paris",
			currentPath: "/",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.39, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("plans", "/services", 0.2, entity.TierGuest)},
			wantNil:     true,
		},
		{
			name:        "section keyword with the section on the current page",
			query:       "jump to the pricing section",
			currentPath: "/services",
			pages:       []vectorindex.Candidate{page("/pricing", "Pricing", 0.95, entity.TierGuest)},
			sections:    []vectorindex.Candidate{section("pricing", "/services", 0.6, entity.TierGuest)},
			wantType:    entity.MatchTypeSection, wantUrl: "/services", wantElement: "pricing",
			wantAlternative: true, wantOnPage: true,
		},
		{
			name:        "page keyword without a page candidate falls through",
			query:       "homepage hero",
			currentPath: "/",
			sections:    []vectorindex.Candidate{section("hero", "/", 0.8, entity.TierGuest)},
			wantType:    entity.MatchTypeSection, wantUrl: "/", wantElement: "hero", wantOnPage: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &stubIndex{results: map[string][]vectorindex.Candidate{
				vectorindex.CollectionPages:    tt.pages,
				vectorindex.CollectionSections: tt.sections,
			}}

			got := newResolver(idx).Resolve(context.Background(), tt.query, tt.currentPath, entity.TierAdmin)

			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantUrl, got.Url)
			assert.Equal(t, tt.wantElement, got.ElementId)
			assert.Equal(t, tt.wantAlternative, got.AlternativeExists)
			assert.Equal(t, tt.wantOnPage, got.IsOnCurrentPage)
		})
	}
}

func TestResolve_TierIsReportedNotEnforced(t *testing.T) {
	idx := &stubIndex{results: map[string][]vectorindex.Candidate{
		vectorindex.CollectionPages: {page("/reports", "Reports", 0.9, entity.TierTwo)},
	}}
	r := newResolver(idx)

	guest := r.Resolve(context.Background(), "reports", "/", entity.TierGuest)
	require.NotNil(t, guest)
	assert.Equal(t, entity.TierTwo, guest.RequiredTier)
	assert.True(t, guest.Locked)

	paid := r.Resolve(context.Background(), "reports", "/", entity.TierThree)
	require.NotNil(t, paid)
	assert.False(t, paid.Locked)
}

func TestResolve_QueriesBothCollections(t *testing.T) {
	idx := &stubIndex{}
	newResolver(idx).Resolve(context.Background(), "anything", "/", entity.TierGuest)

	assert.Equal(t, 1, idx.calls[vectorindex.CollectionPages])
	assert.Equal(t, 1, idx.calls[vectorindex.CollectionSections])
}

func TestResolve_FailuresReturnNil(t *testing.T) {
	r := NewResolver(staticEmbedder{err: errors.New("quota")}, &stubIndex{}, logger.NewNop(), DefaultOptions())
	assert.Nil(t, r.Resolve(context.Background(), "pricing", "/", entity.TierGuest))

	r = newResolver(&stubIndex{err: errors.New("db down")})
	assert.Nil(t, r.Resolve(context.Background(), "pricing", "/", entity.TierGuest))

	assert.Nil(t, newResolver(&stubIndex{}).Resolve(context.Background(), "  ", "/", entity.TierGuest))
}

func TestResolve_OneFailedCollectionKeepsTheOther(t *testing.T) {
	idx := &stubIndex{
		results: map[string][]vectorindex.Candidate{
			vectorindex.CollectionPages:    {page("/pricing", "Pricing", 0.9, entity.TierGuest)},
			vectorindex.CollectionSections: {section("faq", "/help", 0.8, entity.TierGuest)},
		},
		failOn: map[string]error{vectorindex.CollectionSections: errors.New("timeout")},
	}
	got := newResolver(idx).Resolve(context.Background(), "pricing", "/", entity.TierGuest)
	require.NotNil(t, got)
	assert.Equal(t, entity.MatchTypePage, got.Type)
	assert.Equal(t, "/pricing", got.Url)
	assert.InDelta(t, 0.9, got.Similarity, 1e-9)
	assert.False(t, got.AlternativeExists)

	idx.failOn = map[string]error{vectorindex.CollectionPages: errors.New("timeout")}
	got = newResolver(idx).Resolve(context.Background(), "faq", "/", entity.TierGuest)
	require.NotNil(t, got)
	assert.Equal(t, entity.MatchTypePageAndSection, got.Type)
	assert.Equal(t, "faq", got.ElementId)
}
