package tokens

import (
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is used for models tiktoken does not know, which covers most non-OpenAI providers.
const DefaultEncoding = tokenizer.Cl100kBase

// Counter estimates prompt sizes. The numbers are exact for OpenAI models and approximate otherwise.
type Counter struct {
	codec    tokenizer.Codec
	encoding string
}

// NewCounter picks the codec of model, falling back to DefaultEncoding.
func NewCounter(model string) (*Counter, error) {
	if model != "" {
		if c, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
			return &Counter{codec: c, encoding: model}, nil
		}
	}
	return NewCounterForEncoding(DefaultEncoding)
}

func NewCounterForEncoding(encoding tokenizer.Encoding) (*Counter, error) {
	c, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load tokenizer %s", encoding)
	}
	return &Counter{codec: c, encoding: string(encoding)}, nil
}

// Encoding returns the encoding name, or the model name when the codec was picked by model.
func (c *Counter) Encoding() string {
	return c.encoding
}

func (c *Counter) Count(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// CountConversation sums the tokens of every message text. Per-message framing overhead is not included.
func (c *Counter) CountConversation(messages conversation.Conversation) (int, error) {
	total := 0
	for _, m := range messages {
		if m == nil {
			continue
		}
		n, err := c.Count(m.Text)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
