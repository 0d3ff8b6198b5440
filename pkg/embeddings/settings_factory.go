package embeddings

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	TypeOpenAI = "openai"
	TypeOllama = "ollama"
	TypeHash   = "hash"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheDisk   = "disk"
)

var ErrInvalidConfig = errors.New("invalid embeddings configuration")

// ProviderOption is a function that configures a provider
type ProviderOption func(*providerOptions)

type providerOptions struct {
	providerType string
	engine       string
	baseURL      string
	apiKey       string
	dimensions   int
	cacheType    string
}

func WithType(t string) ProviderOption {
	return func(o *providerOptions) {
		o.providerType = t
	}
}

func WithEngine(e string) ProviderOption {
	return func(o *providerOptions) {
		o.engine = e
	}
}

func WithBaseURL(url string) ProviderOption {
	return func(o *providerOptions) {
		o.baseURL = url
	}
}

func WithAPIKey(key string) ProviderOption {
	return func(o *providerOptions) {
		o.apiKey = key
	}
}

func WithDimensions(d int) ProviderOption {
	return func(o *providerOptions) {
		o.dimensions = d
	}
}

// WithCacheType overrides the configured cache (none, memory, disk).
func WithCacheType(t string) ProviderOption {
	return func(o *providerOptions) {
		o.cacheType = t
	}
}

// EmbeddingsConfig contains the configuration needed for embeddings. It is
// decoded from viper, see pkg/settings.
type EmbeddingsConfig struct {
	// Type is one of openai, ollama, hash
	Type   string `mapstructure:"type" yaml:"type"`
	Engine string `mapstructure:"engine" yaml:"engine"`
	// Dimensions defaults per provider when zero
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"`
	APIKey     string `mapstructure:"api-key" yaml:"api_key,omitempty"`
	BaseURL    string `mapstructure:"base-url" yaml:"base_url,omitempty"`

	CacheType       string `mapstructure:"cache-type" yaml:"cache_type"`
	CacheMaxEntries int    `mapstructure:"cache-max-entries" yaml:"cache_max_entries"`
	CacheMaxSize    int64  `mapstructure:"cache-max-size" yaml:"cache_max_size"`
	CacheDirectory  string `mapstructure:"cache-directory" yaml:"cache_directory,omitempty"`
}

func NewEmbeddingsConfig() *EmbeddingsConfig {
	return &EmbeddingsConfig{
		Type:            TypeOpenAI,
		Engine:          string(openai.SmallEmbedding3),
		CacheType:       CacheDisk,
		CacheMaxEntries: 10000,
		CacheMaxSize:    1 << 30,
	}
}

// SettingsFactory creates embedding providers based on configuration
type SettingsFactory struct {
	config *EmbeddingsConfig
}

func NewSettingsFactory(config *EmbeddingsConfig) *SettingsFactory {
	return &SettingsFactory{
		config: config,
	}
}

// NewProvider creates the configured provider, wrapped in the configured cache.
func (f *SettingsFactory) NewProvider(opts ...ProviderOption) (Provider, error) {
	if f.config == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no configuration provided")
	}

	options := &providerOptions{
		providerType: f.config.Type,
		engine:       f.config.Engine,
		baseURL:      f.config.BaseURL,
		apiKey:       f.config.APIKey,
		dimensions:   f.config.Dimensions,
		cacheType:    f.config.CacheType,
	}
	for _, opt := range opts {
		opt(options)
	}

	provider, err := f.newBaseProvider(options)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(options.cacheType) {
	case "", CacheNone:
		return provider, nil
	case CacheMemory:
		return NewCachedProvider(provider, f.config.CacheMaxEntries), nil
	case CacheDisk:
		diskOpts := []Option{WithDirectory(f.config.CacheDirectory)}
		if f.config.CacheMaxEntries > 0 {
			diskOpts = append(diskOpts, WithMaxEntries(f.config.CacheMaxEntries))
		}
		if f.config.CacheMaxSize > 0 {
			diskOpts = append(diskOpts, WithMaxSize(f.config.CacheMaxSize))
		}
		return NewDiskCacheProvider(provider, diskOpts...)
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported cache type %q", options.cacheType)
	}
}

func (f *SettingsFactory) newBaseProvider(options *providerOptions) (Provider, error) {
	switch strings.ToLower(options.providerType) {
	case TypeOllama:
		return NewOllamaProvider(options.baseURL, options.engine, options.dimensions), nil

	case TypeOpenAI:
		if options.apiKey == "" {
			return nil, errors.Wrap(ErrInvalidConfig, "no API key provided for OpenAI")
		}
		if options.baseURL != "" {
			config := openai.DefaultConfig(options.apiKey)
			config.BaseURL = options.baseURL
			return NewOpenAIProviderWithConfig(config, openai.EmbeddingModel(options.engine), options.dimensions), nil
		}
		return NewOpenAIProvider(options.apiKey, openai.EmbeddingModel(options.engine), options.dimensions), nil

	case TypeHash:
		return NewHashProvider(options.dimensions), nil

	case "":
		return nil, errors.Wrap(ErrInvalidConfig, "no embeddings type specified")

	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported provider type for embeddings: %s", options.providerType)
	}
}
