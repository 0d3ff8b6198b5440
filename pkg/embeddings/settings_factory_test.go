package embeddings

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFactoryProviders(t *testing.T) {
	t.Run("hash without cache", func(t *testing.T) {
		f := NewSettingsFactory(&EmbeddingsConfig{Type: TypeHash, Dimensions: 4, CacheType: CacheNone})
		p, err := f.NewProvider()
		require.NoError(t, err)
		assert.IsType(t, &HashProvider{}, p)
		assert.Equal(t, 4, p.GetModel().Dimensions)
	})

	t.Run("memory cache", func(t *testing.T) {
		f := NewSettingsFactory(&EmbeddingsConfig{Type: TypeHash, CacheType: CacheMemory, CacheMaxEntries: 5})
		p, err := f.NewProvider()
		require.NoError(t, err)
		cached, ok := p.(*CachedProvider)
		require.True(t, ok)
		assert.Equal(t, 5, cached.MaxSize())
	})

	t.Run("disk cache", func(t *testing.T) {
		dir := t.TempDir()
		f := NewSettingsFactory(&EmbeddingsConfig{Type: TypeHash, Dimensions: 4, CacheType: CacheDisk, CacheDirectory: dir})
		p, err := f.NewProvider()
		require.NoError(t, err)
		disk, ok := p.(*DiskCacheProvider)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "hash-4"), disk.Directory())
	})

	t.Run("ollama", func(t *testing.T) {
		f := NewSettingsFactory(&EmbeddingsConfig{Type: TypeOllama, Engine: "nomic-embed-text", Dimensions: 768})
		p, err := f.NewProvider()
		require.NoError(t, err)
		assert.Equal(t, EmbeddingModel{Name: "nomic-embed-text", Dimensions: 768}, p.GetModel())
	})

	t.Run("options override config", func(t *testing.T) {
		f := NewSettingsFactory(&EmbeddingsConfig{Type: TypeOpenAI})
		p, err := f.NewProvider(WithType(TypeHash), WithDimensions(3))
		require.NoError(t, err)
		assert.Equal(t, 3, p.GetModel().Dimensions)
	})
}

func TestSettingsFactoryErrors(t *testing.T) {
	cases := map[string]*EmbeddingsConfig{
		"openai without key": {Type: TypeOpenAI},
		"unknown type":       {Type: "cohere"},
		"missing type":       {},
		"unknown cache":      {Type: TypeHash, CacheType: "redis"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSettingsFactory(cfg).NewProvider()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}

	_, err := NewSettingsFactory(nil).NewProvider()
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
