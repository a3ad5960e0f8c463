// Package constant defines the wire format identifiers shared by the translator
// registry, the executor, and the HTTP handlers.
package constant

const (
	// Claude is the Anthropic Messages API format exposed to callers.
	Claude = "claude"

	// OpenAI is the chat-completions format spoken by the backend.
	OpenAI = "openai"
)
