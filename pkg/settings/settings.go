// Package settings holds the typed configuration of rehearsal, decoded from
// viper (config file, REHEARSAL_* environment variables and bound flags).
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/rehearsal/pkg/embeddings"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "rehearsal"

	DefaultChatModel    = "gpt-3.5-turbo"
	DefaultListen       = ":8080"
	DefaultFollowUpDB   = "rehearsal.db"
	DefaultEmbedEngine  = "text-embedding-3-small"
	DefaultSearchCache  = 16
	DefaultChatMaxReply = 256
)

type ChatSettings struct {
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base-url" yaml:"base_url,omitempty"`

	// MaxContextTokens bounds the transcript sent per completion, 0 means unbounded
	MaxContextTokens  int     `mapstructure:"max-context-tokens" yaml:"max_context_tokens"`
	MaxResponseTokens int     `mapstructure:"max-response-tokens" yaml:"max_response_tokens"`
	Temperature       float32 `mapstructure:"temperature" yaml:"temperature"`
}

type ServerSettings struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	// Tree is the reply tree consulted when no stored follow-up matches
	Tree string `mapstructure:"tree" yaml:"tree,omitempty"`
}

type Settings struct {
	OpenAIAPIKey    string                      `mapstructure:"openai-api-key" yaml:"-"`
	Chat            ChatSettings                `mapstructure:"chat" yaml:"chat"`
	Embeddings      embeddings.EmbeddingsConfig `mapstructure:"embeddings" yaml:"embeddings"`
	Server          ServerSettings              `mapstructure:"server" yaml:"server"`
	FollowUpDB      string                      `mapstructure:"followup-db" yaml:"followup_db"`
	SearchCacheSize int                         `mapstructure:"search-cache-size" yaml:"search_cache_size"`
}

// SetDefaults registers every key, which also makes AutomaticEnv see the
// nested ones when unmarshalling.
func SetDefaults(v *viper.Viper) {
	e := embeddings.NewEmbeddingsConfig()

	v.SetDefault("openai-api-key", "")
	v.SetDefault("chat.model", DefaultChatModel)
	v.SetDefault("chat.base-url", "")
	v.SetDefault("chat.max-context-tokens", 0)
	v.SetDefault("chat.max-response-tokens", DefaultChatMaxReply)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("embeddings.type", e.Type)
	v.SetDefault("embeddings.engine", DefaultEmbedEngine)
	v.SetDefault("embeddings.dimensions", 0)
	v.SetDefault("embeddings.api-key", "")
	v.SetDefault("embeddings.base-url", "")
	v.SetDefault("embeddings.cache-type", e.CacheType)
	v.SetDefault("embeddings.cache-max-entries", e.CacheMaxEntries)
	v.SetDefault("embeddings.cache-max-size", e.CacheMaxSize)
	v.SetDefault("embeddings.cache-directory", "")
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.tree", "")
	v.SetDefault("followup-db", DefaultFollowUpDB)
	v.SetDefault("search-cache-size", DefaultSearchCache)
}

// ConfigureViper sets up env handling and config file lookup the same way
// for every command. A missing config file is not an error.
func ConfigureViper(v *viper.Viper, configPath string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// the plain variable is what people already have in their .env
	if err := v.BindEnv("openai-api-key", "REHEARSAL_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return err
	}
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rehearsal")
		v.AddConfigPath("/etc/rehearsal")
		if xdgConfigPath, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(xdgConfigPath, "rehearsal"))
		}
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	return nil
}

// Load decodes the settings. The OpenAI key doubles as the embeddings key
// unless one is configured explicitly.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}
	if s.Embeddings.APIKey == "" {
		s.Embeddings.APIKey = s.OpenAIAPIKey
	}
	if s.SearchCacheSize <= 0 {
		s.SearchCacheSize = DefaultSearchCache
	}
	return s, nil
}
