package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT3Dot5Turbo

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoChoices       = errors.New("completion returned no choices")
)

const systemPromptTemplate = "現在新卒エンジニアの就職面接が行われています。あなたは%sです。次の会話を踏まえて、適切な返答をしてください。"

// SystemPrompt tells the model which side of the interview it plays.
func SystemPrompt(speaker replytree.Role) string {
	return fmt.Sprintf(systemPromptTemplate, speaker.Label())
}

// OpenAIGenerator produces replies with the chat completions API.
type OpenAIGenerator struct {
	client            *openai.Client
	model             string
	maxContextTokens  int
	maxResponseTokens int
	temperature       float32
	counter           TokenCounter
}

var _ replytree.Generator = &OpenAIGenerator{}

type GeneratorOption func(*OpenAIGenerator)

func WithModel(model string) GeneratorOption {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithMaxContextTokens bounds the prompt, see FitTranscript.
func WithMaxContextTokens(n int) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.maxContextTokens = n
	}
}

func WithMaxResponseTokens(n int) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.maxResponseTokens = n
	}
}

func WithTemperature(t float32) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.temperature = t
	}
}

func WithTokenCounter(counter TokenCounter) GeneratorOption {
	return func(g *OpenAIGenerator) {
		g.counter = counter
	}
}

func NewOpenAIGenerator(config openai.ClientConfig, options ...GeneratorOption) (*OpenAIGenerator, error) {
	ret := &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		model:  DefaultModel,
	}
	for _, option := range options {
		option(ret)
	}

	if ret.maxContextTokens > 0 && ret.counter == nil {
		counter, err := NewTokenCounter(ret.model)
		if err != nil {
			return nil, err
		}
		ret.counter = counter
	}

	return ret, nil
}

func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Messages builds the completion request messages: the system prompt for
// speaker, then the transcript with the speaker's own lines as assistant.
func (g *OpenAIGenerator) Messages(speaker replytree.Role, transcript []replytree.Utterance) ([]openai.ChatCompletionMessage, error) {
	if len(transcript) == 0 {
		return nil, ErrEmptyTranscript
	}

	systemPrompt := SystemPrompt(speaker)
	if g.counter != nil {
		var err error
		transcript, err = FitTranscript(g.counter, systemPrompt, transcript, g.maxContextTokens)
		if err != nil {
			return nil, errors.Wrap(err, "counting tokens")
		}
	}

	ret := make([]openai.ChatCompletionMessage, 0, len(transcript)+1)
	ret = append(ret, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, u := range transcript {
		role := openai.ChatMessageRoleUser
		if u.Tag == replytree.TagSelf {
			role = openai.ChatMessageRoleAssistant
		}
		ret = append(ret, openai.ChatCompletionMessage{
			Role:    role,
			Content: u.Text,
		})
	}
	return ret, nil
}

func (g *OpenAIGenerator) GenerateReply(ctx context.Context, speaker replytree.Role, transcript []replytree.Utterance) (string, error) {
	messages, err := g.Messages(speaker, transcript)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxResponseTokens,
		Temperature: g.temperature,
	}

	log.Debug().
		Str("model", g.model).
		Str("speaker", speaker.String()).
		Int("messages", len(messages)).
		Msg("Requesting chat completion")

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", replytree.ErrEmptyReply
	}

	log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("Chat completion done")

	return content, nil
}
