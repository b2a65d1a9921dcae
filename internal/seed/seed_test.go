package seed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
providers:
  - key: ollama
    name: Ollama
models:
  - key: llama3.2
    display_name: Llama 3.2
    provider: ollama
  - key: gemini-2.5-pro
    display_name: Gemini Pro
    provider: ollama
    min_tier: tier1
    premium: true
personas:
  - key: sales
    name: Sales
    system_prompt: Talk about plans.
pages:
  - url: /pricing
    title: Pricing
    required_tier: guest
sections:
  - element_id: faq
    title: Pricing FAQ
    page_url: /pricing
sources:
  - url: /docs/start
    title: Getting started
    content: Create a workspace first.
users:
  - id: 6f1c2a4e-8d3b-4f5a-9c7e-2b1d0a9e8f76
    tier: tier2
`

func TestLoad_ParsesSample(t *testing.T) {
	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Len(t, f.Providers, 1)
	assert.Len(t, f.Models, 2)
	assert.True(t, f.Models[1].Premium)
	assert.Equal(t, "tier1", f.Models[1].MinTier)
	assert.Equal(t, "/pricing", f.Sections[0].PageUrl)
	assert.Len(t, f.Sources, 1)
	require.Len(t, f.Users, 1)
	assert.Equal(t, "tier2", f.Users[0].Tier)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown provider": "providers: [{key: a}]\nmodels: [{key: m, provider: b}]\n",
		"bad tier":         "providers: [{key: a}]\nmodels: [{key: m, provider: a, min_tier: gold}]\n",
		"orphan section":   "sections: [{element_id: x, title: X, page_url: /nowhere}]\n",
		"empty source":     "sources: [{url: /a, content: '  '}]\n",
		"unknown field":    "pages: [{url: /a, title: A, colour: red}]\n",
		"bad user id":      "users: [{id: alice, tier: TIER1}]\n",
		"bad user tier":    "users: [{id: 6f1c2a4e-8d3b-4f5a-9c7e-2b1d0a9e8f76, tier: gold}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyDocument(t *testing.T) {
	f, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Models)
}

type countingIngester struct {
	mu       sync.Mutex
	seen     []string
	inFlight int32
	peak     int32
	failOn   string
}

func (c *countingIngester) IngestSource(ctx context.Context, url, title, content string) (int, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	for {
		p := atomic.LoadInt32(&c.peak)
		if n <= p || atomic.CompareAndSwapInt32(&c.peak, p, n) {
			break
		}
	}

	c.mu.Lock()
	c.seen = append(c.seen, url)
	c.mu.Unlock()

	if url == c.failOn {
		return 0, errors.New("embed failed")
	}
	return len(content), nil
}

func TestIngestSources_SumsAndBoundsConcurrency(t *testing.T) {
	ing := &countingIngester{}
	sources := []Source{
		{Url: "/a", Content: "aa"},
		{Url: "/b", Content: "bbb"},
		{Url: "/c", Content: "c"},
		{Url: "/d", Content: "dddd"},
	}

	total, err := ingestSources(context.Background(), ing, sources, 2)
	require.NoError(t, err)

	assert.Equal(t, 10, total)
	assert.Len(t, ing.seen, 4)
	assert.LessOrEqual(t, atomic.LoadInt32(&ing.peak), int32(2))
}

func TestIngestSources_ReportsFailingSource(t *testing.T) {
	ing := &countingIngester{failOn: "/b"}
	sources := []Source{{Url: "/a", Content: "a"}, {Url: "/b", Content: "b"}}

	_, err := ingestSources(context.Background(), ing, sources, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/b")
}

// keywordEmbedder puts one dimension per keyword the text mentions.
type keywordEmbedder struct {
	keywords []string
	calls    int
}

func (k *keywordEmbedder) Generate(ctx context.Context, text, taskType string) (*embedding.EmbeddingResponse, error) {
	k.calls++
	lower := strings.ToLower(text)
	vec := make([]float32, len(k.keywords))
	for i, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: vec}}, nil
}

func TestBuildIndex_PayloadsMatchResolverKeys(t *testing.T) {
	f := &File{
		Pages: []Page{
			{Url: "/pricing", Title: "Pricing", Description: "Plans and prices", Priority: 10},
			{Url: "/settings/billing", Title: "Billing settings", RequiredTier: "TIER1"},
		},
		Sections: []Section{
			{ElementId: "invoices", Title: "Invoices", PageUrl: "/settings/billing", RequiredTier: "TIER1"},
		},
		Sources: []Source{
			{Url: "/docs/start", Title: "Getting started", Content: "To start, create a workspace."},
		},
	}
	emb := &keywordEmbedder{keywords: []string{"pricing", "billing", "start"}}

	idx, err := BuildIndex(context.Background(), emb, f)
	require.NoError(t, err)
	assert.Equal(t, 4, emb.calls)

	ctx := context.Background()
	pages, err := idx.Query(ctx, vectorindex.CollectionPages, []float32{1, 0, 0}, 3, 0.4)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "/pricing", pages[0].String("url"))
	assert.Equal(t, 0, pages[0].Int("required_tier"))

	sections, err := idx.Query(ctx, vectorindex.CollectionSections, []float32{0, 1, 0}, 3, 0.4)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Billing settings", sections[0].String("page_title"))
	assert.Equal(t, 1, sections[0].Int("required_tier"))

	passages, err := idx.Query(ctx, vectorindex.CollectionPassages, []float32{0, 0, 1}, 5, 0.3)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "/docs/start", passages[0].String("source_url"))
}
