package chat

import (
	"github.com/go-go-golems/rehearsal/pkg/replytree"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// messageOverhead approximates the per-message framing tokens of the chat format.
const messageOverhead = 4

type TokenCounter interface {
	CountTokens(text string) (int, error)
}

type CodecCounter struct {
	codec tokenizer.Codec
}

var _ TokenCounter = &CodecCounter{}

// NewTokenCounter returns the codec of model, falling back to cl100k_base for
// models the tokenizer does not know.
func NewTokenCounter(model string) (*CodecCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		log.Debug().Str("model", model).Msg("Unknown tokenizer model, using cl100k_base")
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, errors.Wrap(err, "error creating tokenizer")
		}
	}
	return &CodecCounter{codec: codec}, nil
}

func (c *CodecCounter) CountTokens(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// FitTranscript drops the oldest utterances after the root question until the
// system prompt plus transcript fits into maxTokens. The root question and the
// latest utterance are always kept, so the result may still exceed the budget.
// A non-positive maxTokens disables trimming.
func FitTranscript(
	counter TokenCounter,
	systemPrompt string,
	transcript []replytree.Utterance,
	maxTokens int,
) ([]replytree.Utterance, error) {
	if maxTokens <= 0 || len(transcript) <= 2 {
		return transcript, nil
	}

	total, err := counter.CountTokens(systemPrompt)
	if err != nil {
		return nil, err
	}
	total += messageOverhead

	costs := make([]int, len(transcript))
	for i, u := range transcript {
		n, err := counter.CountTokens(u.Text)
		if err != nil {
			return nil, err
		}
		costs[i] = n + messageOverhead
		total += costs[i]
	}

	// drop from index 1 onward, never the last one
	drop := 0
	for total > maxTokens && 1+drop < len(transcript)-1 {
		total -= costs[1+drop]
		drop++
	}
	if drop == 0 {
		return transcript, nil
	}

	log.Debug().
		Int("dropped", drop).
		Int("tokens", total).
		Int("max_tokens", maxTokens).
		Msg("Trimmed transcript to fit context budget")

	ret := make([]replytree.Utterance, 0, len(transcript)-drop)
	ret = append(ret, transcript[0])
	ret = append(ret, transcript[1+drop:]...)
	return ret, nil
}
