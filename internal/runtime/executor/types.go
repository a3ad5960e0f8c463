// Package executor calls the OpenAI-compatible backend on behalf of front
// requests and translates its replies through the translator registry.
package executor

import (
	"fmt"
	"net/http"
)

// Request is one front request routed to the backend.
type Request struct {
	// Model is the front model name as sent by the caller.
	Model string
	// Payload is the raw front request body.
	Payload []byte
	// APIKey is the caller credential forwarded as a bearer token.
	APIKey string
}

// Response is a translated non-streaming reply.
type Response struct {
	Payload []byte
}

// StreamChunk is one translated front SSE record, or a terminal error.
type StreamChunk struct {
	Payload []byte
	Err     error
}

type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("status %d", e.code)
}

// StatusCode returns the backend HTTP status.
func (e statusErr) StatusCode() int { return e.code }

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
