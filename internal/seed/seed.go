// Package seed loads catalog, destinations and knowledge sources from a
// YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type File struct {
	Providers []Provider `yaml:"providers"`
	Models    []Model    `yaml:"models"`
	Personas  []Persona  `yaml:"personas"`
	Pages     []Page     `yaml:"pages"`
	Sections  []Section  `yaml:"sections"`
	Sources   []Source   `yaml:"sources"`
	Users     []User     `yaml:"users"`
}

type Provider struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
}

type Model struct {
	Key         string `yaml:"key"`
	DisplayName string `yaml:"display_name"`
	Provider    string `yaml:"provider"`
	MinTier     string `yaml:"min_tier"`
	Premium     bool   `yaml:"premium"`
	Active      *bool  `yaml:"active"`
}

type Persona struct {
	Key           string `yaml:"key"`
	Name          string `yaml:"name"`
	SystemPrompt  string `yaml:"system_prompt"`
	ModelOverride string `yaml:"model_override"`
	Active        *bool  `yaml:"active"`
}

type Page struct {
	Url          string `yaml:"url"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	RequiredTier string `yaml:"required_tier"`
	Priority     int    `yaml:"priority"`
}

type Section struct {
	ElementId    string `yaml:"element_id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	PageUrl      string `yaml:"page_url"`
	RequiredTier string `yaml:"required_tier"`
}

type Source struct {
	Url     string `yaml:"url"`
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// User grants a stored tier, which takes precedence over the token claim.
type User struct {
	Id   string `yaml:"id"`
	Tier string `yaml:"tier"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Providers int
	Models    int
	Personas  int
	Pages     int
	Sections  int
	Sources   int
	Passages  int
	Users     int
}

// Ingester chunks a knowledge source into passages.
type Ingester interface {
	IngestSource(ctx context.Context, sourceUrl, sourceTitle, content string) (int, error)
}

func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references and tier names before anything is written.
func (f *File) Validate() error {
	providers := map[string]bool{}
	for i, p := range f.Providers {
		if p.Key == "" {
			return fmt.Errorf("providers[%d]: key is required", i)
		}
		providers[p.Key] = true
	}
	for i, m := range f.Models {
		if m.Key == "" {
			return fmt.Errorf("models[%d]: key is required", i)
		}
		if !providers[m.Provider] {
			return fmt.Errorf("models[%d] %s: unknown provider %q", i, m.Key, m.Provider)
		}
		if _, err := tierOrGuest(m.MinTier); err != nil {
			return fmt.Errorf("models[%d] %s: %w", i, m.Key, err)
		}
	}
	for i, p := range f.Personas {
		if p.Key == "" || strings.TrimSpace(p.SystemPrompt) == "" {
			return fmt.Errorf("personas[%d]: key and system_prompt are required", i)
		}
	}
	pages := map[string]bool{}
	for i, p := range f.Pages {
		if p.Url == "" || p.Title == "" {
			return fmt.Errorf("pages[%d]: url and title are required", i)
		}
		if _, err := tierOrGuest(p.RequiredTier); err != nil {
			return fmt.Errorf("pages[%d] %s: %w", i, p.Url, err)
		}
		pages[p.Url] = true
	}
	for i, s := range f.Sections {
		if s.ElementId == "" || s.Title == "" {
			return fmt.Errorf("sections[%d]: element_id and title are required", i)
		}
		if !pages[s.PageUrl] {
			return fmt.Errorf("sections[%d] %s: unknown page %q", i, s.ElementId, s.PageUrl)
		}
		if _, err := tierOrGuest(s.RequiredTier); err != nil {
			return fmt.Errorf("sections[%d] %s: %w", i, s.ElementId, err)
		}
	}
	for i, s := range f.Sources {
		if s.Url == "" || strings.TrimSpace(s.Content) == "" {
			return fmt.Errorf("sources[%d]: url and content are required", i)
		}
	}
	for i, u := range f.Users {
		if _, err := uuid.Parse(u.Id); err != nil {
			return fmt.Errorf("users[%d]: invalid id %q", i, u.Id)
		}
		if _, err := entity.ParseTier(u.Tier); err != nil {
			return fmt.Errorf("users[%d] %s: %w", i, u.Id, err)
		}
	}
	return nil
}

func tierOrGuest(s string) (entity.Tier, error) {
	if s == "" {
		return entity.TierGuest, nil
	}
	return entity.ParseTier(s)
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// Apply writes catalog and destinations in one transaction, then ingests
// sources concurrently.
func Apply(ctx context.Context, uowFactory unitofwork.RepositoryFactory, ingester Ingester, f *File, concurrency int) (Summary, error) {
	var sum Summary

	uow := uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return sum, err
	}
	defer uow.Rollback()

	catalog := uow.CatalogRepository()
	providerIds := map[string]uuid.UUID{}
	for _, p := range f.Providers {
		id, err := catalog.UpsertProvider(ctx, p.Key, p.Name, boolOr(p.Enabled, true))
		if err != nil {
			return sum, fmt.Errorf("provider %s: %w", p.Key, err)
		}
		providerIds[p.Key] = id
		sum.Providers++
	}
	for _, m := range f.Models {
		minTier, _ := tierOrGuest(m.MinTier)
		desc := &entity.ModelDescriptor{
			Key:         m.Key,
			DisplayName: m.DisplayName,
			ProviderKey: m.Provider,
			MinTier:     minTier,
			IsPremium:   m.Premium,
			IsActive:    boolOr(m.Active, true),
		}
		if err := catalog.UpsertModel(ctx, providerIds[m.Provider], desc); err != nil {
			return sum, fmt.Errorf("model %s: %w", m.Key, err)
		}
		sum.Models++
	}
	for _, p := range f.Personas {
		persona := &entity.Persona{
			Key:          p.Key,
			Name:         p.Name,
			SystemPrompt: p.SystemPrompt,
			IsActive:     boolOr(p.Active, true),
		}
		if p.ModelOverride != "" {
			override := p.ModelOverride
			persona.ModelOverride = &override
		}
		if err := catalog.UpsertPersona(ctx, persona); err != nil {
			return sum, fmt.Errorf("persona %s: %w", p.Key, err)
		}
		sum.Personas++
	}

	destinations := uow.DestinationRepository()
	pageTitles := map[string]string{}
	for _, p := range f.Pages {
		tier, _ := tierOrGuest(p.RequiredTier)
		page := &entity.PageDestination{
			Url:          p.Url,
			Title:        p.Title,
			Description:  p.Description,
			RequiredTier: tier,
			Priority:     p.Priority,
			IsActive:     true,
		}
		if err := destinations.UpsertPage(ctx, page); err != nil {
			return sum, fmt.Errorf("page %s: %w", p.Url, err)
		}
		pageTitles[p.Url] = p.Title
		sum.Pages++
	}
	for _, s := range f.Sections {
		tier, _ := tierOrGuest(s.RequiredTier)
		section := &entity.SectionDestination{
			ElementId:    s.ElementId,
			Title:        s.Title,
			Description:  s.Description,
			PageUrl:      s.PageUrl,
			PageTitle:    pageTitles[s.PageUrl],
			RequiredTier: tier,
			IsActive:     true,
		}
		if err := destinations.UpsertSection(ctx, section); err != nil {
			return sum, fmt.Errorf("section %s: %w", s.ElementId, err)
		}
		sum.Sections++
	}

	states := uow.AccessStateRepository()
	for _, u := range f.Users {
		tier, _ := entity.ParseTier(u.Tier)
		state := &entity.UserAccessState{UserId: uuid.MustParse(u.Id), Tier: tier}
		if err := states.Upsert(ctx, state); err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Id, err)
		}
		sum.Users++
	}

	if err := uow.Commit(); err != nil {
		return sum, err
	}

	passages, err := ingestSources(ctx, ingester, f.Sources, concurrency)
	sum.Passages = passages
	if err != nil {
		return sum, err
	}
	sum.Sources = len(f.Sources)
	return sum, nil
}

func ingestSources(ctx context.Context, ingester Ingester, sources []Source, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	counts := make([]int, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range sources {
		g.Go(func() error {
			n, err := ingester.IngestSource(gctx, src.Url, src.Title, src.Content)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.Url, err)
			}
			counts[i] = n
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}
