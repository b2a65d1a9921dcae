package embedding

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedProvider memoises embeddings by task type and text.
type CachedProvider struct {
	inner EmbeddingProvider
	cache *cache.Cache
}

func NewCachedProvider(inner EmbeddingProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	key := taskType + "\x00" + text
	if x, found := p.cache.Get(key); found {
		return x.(*EmbeddingResponse), nil
	}

	res, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func (p *CachedProvider) Len() int {
	return p.cache.ItemCount()
}
