// Package usage estimates token counts for requests that have not reached the
// backend yet and publishes the usage the backend reports once they have.
package usage

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the tokenizer encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// TokenEstimator approximates the number of tokens in a text.
// Implementations must be deterministic and monotonic in input length.
type TokenEstimator interface {
	Count(text string) int
}

// TiktokenEstimator counts tokens with a tiktoken codec. The codec is built
// once and shared by all requests.
type TiktokenEstimator struct {
	codec tokenizer.Codec
}

// NewTiktokenEstimator loads the codec for encoding (cl100k_base when empty).
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	encoding = strings.TrimSpace(encoding)
	if encoding == "" {
		encoding = DefaultEncoding
	}
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", encoding, err)
	}
	return &TiktokenEstimator{codec: codec}, nil
}

// Count returns the token count of text, falling back to a character based
// estimate if the codec fails.
func (e *TiktokenEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e == nil || e.codec == nil {
		return CharEstimator{}.Count(text)
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return CharEstimator{}.Count(text)
	}
	return len(ids)
}

// CharEstimator approximates one token per four bytes of text.
type CharEstimator struct{}

// Count implements TokenEstimator.
func (CharEstimator) Count(text string) int {
	return len(text) / 4
}

// NewEstimator returns a tiktoken estimator for encoding, or a CharEstimator
// when the codec cannot be loaded.
func NewEstimator(encoding string) TokenEstimator {
	est, err := NewTiktokenEstimator(encoding)
	if err != nil {
		log.Warnf("usage: %v, falling back to character estimate", err)
		return CharEstimator{}
	}
	return est
}
