package cmds

import (
	"github.com/go-go-golems/rehearsal/pkg/chat"
	"github.com/go-go-golems/rehearsal/pkg/embeddings"
	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/go-go-golems/rehearsal/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bindFlags binds command flags to settings keys. It runs in PreRunE so that
// commands sharing a key do not overwrite each other's binding.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return errors.Wrapf(err, "binding --%s", flag)
		}
	}
	return nil
}

func loadSettings() (*settings.Settings, error) {
	return settings.Load(viper.GetViper())
}

// newEmbedder builds the embeddings provider. fake switches to the offline
// hash provider without cache.
func newEmbedder(s *settings.Settings, fake bool) (embeddings.Provider, error) {
	factory := embeddings.NewSettingsFactory(&s.Embeddings)
	if fake {
		return factory.NewProvider(
			embeddings.WithType(embeddings.TypeHash),
			embeddings.WithCacheType(embeddings.CacheNone),
		)
	}
	p, err := factory.NewProvider()
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("model", p.GetModel().Name).
		Int("dimensions", p.GetModel().Dimensions).
		Msg("Using embeddings provider")
	return p, nil
}

func newGenerator(s *settings.Settings, fake bool) (replytree.Generator, error) {
	if fake {
		return chat.DefaultScriptedGenerator(), nil
	}
	if s.OpenAIAPIKey == "" {
		return nil, errors.New("no OpenAI API key, set OPENAI_API_KEY or use --fake")
	}

	config := openai.DefaultConfig(s.OpenAIAPIKey)
	if s.Chat.BaseURL != "" {
		config.BaseURL = s.Chat.BaseURL
	}
	return chat.NewOpenAIGenerator(config,
		chat.WithModel(s.Chat.Model),
		chat.WithMaxContextTokens(s.Chat.MaxContextTokens),
		chat.WithMaxResponseTokens(s.Chat.MaxResponseTokens),
		chat.WithTemperature(s.Chat.Temperature),
	)
}
