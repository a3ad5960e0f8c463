// Package translator provides the registry that couples request and response
// translators between wire formats. Translators operate on raw JSON bytes so a
// payload is never decoded into Go structs on the hot path.
package translator

import (
	"context"
	"strings"

	"github.com/router-for-me/claudebridge/internal/constant"
)

// Format identifies a wire schema.
type Format string

const (
	FormatClaude Format = constant.Claude
	FormatOpenAI Format = constant.OpenAI
)

// String returns the format identifier.
func (f Format) String() string { return string(f) }

// FromString converts a loose identifier into a Format.
func FromString(v string) Format {
	return Format(strings.ToLower(strings.TrimSpace(v)))
}

// RequestTransform converts a request payload into the target schema.
type RequestTransform func(model string, rawJSON []byte, stream bool) []byte

// ResponseStreamTransform converts one backend stream line into zero or more
// front records. param carries per-request state across calls.
type ResponseStreamTransform func(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string

// ResponseNonStreamTransform converts a complete backend response body.
type ResponseNonStreamTransform func(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string

// ResponseStreamStart produces the records that open a stream before any
// backend byte has been read.
type ResponseStreamStart func(ctx context.Context, modelName string, requestRawJSON []byte, inputTokens int64, param *any) []string

// ResponseStreamEnd produces the records that close a stream once the backend
// body is exhausted. No backend line can trigger it.
type ResponseStreamEnd func(ctx context.Context, modelName string, param *any) []string

// ResponseTokenCountTransform renders a token count in the front schema.
type ResponseTokenCountTransform func(ctx context.Context, count int64) string

// ResponseTransform groups the response-side translators for one format pair.
type ResponseTransform struct {
	Stream      ResponseStreamTransform
	NonStream   ResponseNonStreamTransform
	StreamStart ResponseStreamStart
	StreamEnd   ResponseStreamEnd
	TokenCount  ResponseTokenCountTransform
}
