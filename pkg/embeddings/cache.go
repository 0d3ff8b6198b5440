package embeddings

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider wraps an embedding provider with an in-memory LRU cache.
// Query texts repeat a lot in an interview session, so this saves most
// embedding calls of the chat server.
type CachedProvider struct {
	provider Provider
	cache    *lru.Cache[string, []float32]
	maxSize  int
}

var _ Provider = &CachedProvider{}

// NewCachedProvider creates a new cached wrapper around an embedding provider
// maxSize determines how many embeddings to keep in cache (default 1000)
func NewCachedProvider(provider Provider, maxSize int) *CachedProvider {
	if maxSize <= 0 {
		maxSize = 1000
	}
	// lru.New only fails on a non-positive size
	cache, _ := lru.New[string, []float32](maxSize)
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		maxSize:  maxSize,
	}
}

func (c *CachedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok := c.cache.Get(text); ok {
		return embedding, nil
	}

	embedding, err := c.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, embedding)
	return embedding, nil
}

func (c *CachedProvider) GetModel() EmbeddingModel {
	return c.provider.GetModel()
}

func (c *CachedProvider) ClearCache() {
	c.cache.Purge()
}

func (c *CachedProvider) Size() int {
	return c.cache.Len()
}

func (c *CachedProvider) MaxSize() int {
	return c.maxSize
}
