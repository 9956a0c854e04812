// Package tokens estimates prompt token counts with tiktoken encodings.
// Estimates are used when a provider reports no usage at all.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter estimates token counts, caching one codec per encoding.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

var defaultCounter = NewCounter()

// Estimate counts the tokens of text using the package-level Counter.
func Estimate(model, text string) (int, error) {
	return defaultCounter.Count(model, text)
}

// Count returns the number of tokens text encodes to under model's encoding.
func (c *Counter) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	codec, err := c.codec(EncodingFor(model))
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

func (c *Counter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	codec, ok := c.codecs[enc]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding %s: %w", enc, err)
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// EncodingFor maps a model name to its tiktoken encoding.
//
//   - O200kBase: GPT-5, GPT-4.1, GPT-4o, o-series and unknown models
//   - Cl100kBase: GPT-4, GPT-3.5-turbo, text-embedding-*
//   - P50kBase: text-davinci-*
//   - R50kBase: davinci, curie, babbage, ada
func EncodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"),
		strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "text-davinci"):
		return tokenizer.P50kBase
	case model == "davinci", model == "curie", model == "babbage", model == "ada":
		return tokenizer.R50kBase
	default:
		return tokenizer.O200kBase
	}
}
