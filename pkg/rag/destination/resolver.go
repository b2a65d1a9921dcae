// Package destination maps a free-text navigation request onto a single
// page or in-page section.
package destination

import (
	"context"
	"strings"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/vectorindex"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinSimilarity = 0.4
	DefaultTopN          = 3
	DefaultPageMargin    = 0.1

	// absorbs float noise so that a difference of exactly the margin is not "greater"
	marginEpsilon = 1e-9
)

type Options struct {
	MinSimilarity float64
	TopN          int
	PageMargin    float64
	Timeout       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MinSimilarity: DefaultMinSimilarity,
		TopN:          DefaultTopN,
		PageMargin:    DefaultPageMargin,
	}
}

type Resolver struct {
	embedder embedding.EmbeddingProvider
	index    vectorindex.SimilarityIndex
	logger   logger.ILogger
	opts     Options
}

func NewResolver(embedder embedding.EmbeddingProvider, index vectorindex.SimilarityIndex, log logger.ILogger, opts Options) *Resolver {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Resolver{embedder: embedder, index: index, logger: log, opts: opts}
}

type pageHit struct {
	url, title   string
	requiredTier entity.Tier
	similarity   float64
}

type sectionHit struct {
	elementId, title   string
	pageUrl, pageTitle string
	requiredTier       entity.Tier
	similarity         float64
}

// Resolve picks at most one destination. Tier is reported, not enforced.
func (r *Resolver) Resolve(ctx context.Context, query, currentPath string, userTier entity.Tier) *entity.DestinationMatch {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	res, err := r.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		r.logger.Warn("Resolver", "query embedding failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	vector := res.Embedding.Values

	// A failed collection counts as empty so the other can still match.
	var pages, sections []vectorindex.Candidate
	var g errgroup.Group
	g.Go(func() error {
		pages = r.query(ctx, vectorindex.CollectionPages, vector)
		return nil
	})
	g.Go(func() error {
		sections = r.query(ctx, vectorindex.CollectionSections, vector)
		return nil
	})
	_ = g.Wait()

	match := r.decide(query, currentPath, topPage(pages, r.opts.MinSimilarity), topSection(sections, r.opts.MinSimilarity))
	if match == nil {
		r.logger.Debug("Resolver", "no destination above floor", map[string]interface{}{"query": query})
		return nil
	}

	match.Locked = !userTier.AtLeast(match.RequiredTier)
	r.logger.Info("Resolver", "destination resolved", map[string]interface{}{
		"query":      query,
		"type":       match.Type,
		"url":        match.Url,
		"similarity": match.Similarity,
		"user_tier":  userTier.String(),
		"locked":     match.Locked,
	})
	return match
}

func (r *Resolver) query(ctx context.Context, collection string, vector []float32) []vectorindex.Candidate {
	candidates, err := r.index.Query(ctx, collection, vector, r.opts.TopN, r.opts.MinSimilarity)
	if err != nil {
		r.logger.Warn("Resolver", "destination lookup failed", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
		return nil
	}
	return candidates
}

// decide applies the ordered disambiguation rules; the first that fires wins.
func (r *Resolver) decide(query, currentPath string, page *pageHit, section *sectionHit) *entity.DestinationMatch {
	q := strings.ToLower(query)
	wantsPage := strings.Contains(q, "page")
	wantsSection := strings.Contains(q, "section")

	switch {
	case wantsPage && page != nil:
		m := pageMatch(page, currentPath)
		m.AlternativeExists = section != nil
		return m

	case wantsSection && section != nil:
		m := sectionMatch(section, currentPath)
		m.AlternativeExists = page != nil
		return m

	case section != nil && section.pageUrl == currentPath:
		m := sectionMatch(section, currentPath)
		m.AlternativeExists = page != nil && page.url != currentPath
		return m

	case page != nil && section != nil:
		if page.similarity-section.similarity > r.opts.PageMargin+marginEpsilon {
			m := pageMatch(page, currentPath)
			m.AlternativeExists = true
			return m
		}
		m := sectionMatch(section, currentPath)
		m.AlternativeExists = true
		return m

	case page != nil:
		return pageMatch(page, currentPath)

	case section != nil:
		return sectionMatch(section, currentPath)
	}
	return nil
}

func pageMatch(p *pageHit, currentPath string) *entity.DestinationMatch {
	return &entity.DestinationMatch{
		Type:            entity.MatchTypePage,
		Url:             p.url,
		Title:           p.title,
		Similarity:      p.similarity,
		RequiredTier:    p.requiredTier,
		IsOnCurrentPage: p.url == currentPath,
	}
}

// sectionMatch emits a page_and_section when the section lives elsewhere.
func sectionMatch(s *sectionHit, currentPath string) *entity.DestinationMatch {
	m := &entity.DestinationMatch{
		Type:            entity.MatchTypeSection,
		Url:             s.pageUrl,
		Title:           s.title,
		ElementId:       s.elementId,
		PageTitle:       s.pageTitle,
		Similarity:      s.similarity,
		RequiredTier:    s.requiredTier,
		IsOnCurrentPage: s.pageUrl == currentPath,
	}
	if !m.IsOnCurrentPage {
		m.Type = entity.MatchTypePageAndSection
	}
	return m
}

func topPage(cands []vectorindex.Candidate, floor float64) *pageHit {
	for _, c := range cands {
		if c.Similarity < floor {
			continue
		}
		return &pageHit{
			url:          c.String("url"),
			title:        c.String("title"),
			requiredTier: entity.Tier(c.Int("required_tier")),
			similarity:   c.Similarity,
		}
	}
	return nil
}

func topSection(cands []vectorindex.Candidate, floor float64) *sectionHit {
	for _, c := range cands {
		if c.Similarity < floor {
			continue
		}
		return &sectionHit{
			elementId:    c.String("element_id"),
			title:        c.String("title"),
			pageUrl:      c.String("page_url"),
			pageTitle:    c.String("page_title"),
			requiredTier: entity.Tier(c.Int("required_tier")),
			similarity:   c.Similarity,
		}
	}
	return nil
}
