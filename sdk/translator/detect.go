package translator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// FormatDetection is the result of DetectFormatDetailed.
type FormatDetection struct {
	Format     Format
	Confidence float64 // 0.0 to 1.0
	Reason     string
}

// DetectFormat guesses whether payload is a Messages API or a
// chat-completions request. It returns "" when the payload is neither.
func DetectFormat(payload []byte) Format {
	return DetectFormatDetailed(payload).Format
}

// DetectFormatDetailed reports the guessed format with a confidence score.
func DetectFormatDetailed(payload []byte) FormatDetection {
	if len(payload) == 0 {
		return FormatDetection{Reason: "empty payload"}
	}
	result := gjson.ParseBytes(payload)
	if !result.IsObject() {
		return FormatDetection{Reason: "not a JSON object"}
	}
	messages := result.Get("messages")
	if !messages.IsArray() {
		return FormatDetection{Reason: "no messages array"}
	}

	if result.Get("anthropic_version").Exists() {
		return FormatDetection{Format: FormatClaude, Confidence: 1.0, Reason: "has anthropic_version"}
	}

	// Claude-only shapes: a top-level system prompt, tool_result or tool_use
	// blocks, or tools declared with input_schema.
	if result.Get("system").Exists() {
		return FormatDetection{Format: FormatClaude, Confidence: 0.95, Reason: "has top-level system"}
	}
	for _, msg := range messages.Array() {
		if msg.Get("role").String() == "tool" || msg.Get("tool_calls").Exists() {
			return FormatDetection{Format: FormatOpenAI, Confidence: 0.95, Reason: "has tool role or tool_calls"}
		}
		for _, block := range msg.Get("content").Array() {
			switch block.Get("type").String() {
			case "tool_use", "tool_result":
				return FormatDetection{Format: FormatClaude, Confidence: 0.95, Reason: "has tool_use or tool_result blocks"}
			case "image_url":
				return FormatDetection{Format: FormatOpenAI, Confidence: 0.9, Reason: "has image_url parts"}
			}
		}
	}
	if result.Get("tools.0.input_schema").Exists() {
		return FormatDetection{Format: FormatClaude, Confidence: 0.95, Reason: "tools carry input_schema"}
	}
	if result.Get("tools.0.function").Exists() {
		return FormatDetection{Format: FormatOpenAI, Confidence: 0.95, Reason: "tools carry function"}
	}

	modelLower := strings.ToLower(result.Get("model").String())
	if strings.Contains(modelLower, "claude") {
		return FormatDetection{Format: FormatClaude, Confidence: 0.8, Reason: "model name contains 'claude'"}
	}
	if result.Get("n").Exists() || result.Get("presence_penalty").Exists() || result.Get("frequency_penalty").Exists() {
		return FormatDetection{Format: FormatOpenAI, Confidence: 0.8, Reason: "has OpenAI-specific parameters"}
	}
	if result.Get("stop_sequences").Exists() {
		return FormatDetection{Format: FormatClaude, Confidence: 0.7, Reason: "has stop_sequences"}
	}

	return FormatDetection{Format: FormatOpenAI, Confidence: 0.5, Reason: "has messages (defaulting to OpenAI)"}
}

// IsKnownFormat checks if f is one of the formats the bridge speaks.
func IsKnownFormat(f Format) bool {
	switch f {
	case FormatClaude, FormatOpenAI:
		return true
	default:
		return false
	}
}
