package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MapFinishReason maps an OpenAI finish_reason onto a Claude stop_reason.
// Unknown and empty values map to end_turn.
func MapFinishReason(finishReason string) schema.StopReason {
	switch finishReason {
	case "stop":
		return schema.StopEndTurn
	case "length":
		return schema.StopMaxTokens
	case "tool_calls":
		return schema.StopToolUse
	default:
		return schema.StopEndTurn
	}
}

func newMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// ConvertOpenAIResponseToClaudeNonStream converts a non-streaming OpenAI
// chat-completions response into a Claude Messages API response.
//
// Tool call arguments that are empty or not valid JSON become an empty input
// object. Missing fields degrade to zero values; the function never fails.
func ConvertOpenAIResponseToClaudeNonStream(_ context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	choice := root.Get("choices.0")
	message := choice.Get("message")

	out := []byte(`{"id":"","type":"message","role":"assistant","content":[],"model":"","stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":0}}`)
	out, _ = sjson.SetBytes(out, "id", newMessageID())
	out, _ = sjson.SetBytes(out, "model", modelName)

	if text := message.Get("content"); text.Type == gjson.String && text.String() != "" {
		block := []byte(`{"type":"text","text":""}`)
		block, _ = sjson.SetBytes(block, "text", text.String())
		out, _ = sjson.SetRawBytes(out, "content.-1", block)
	}

	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		id := call.Get("id").String()
		if id == "" {
			id = newToolUseID()
		}
		block := []byte(`{"type":"tool_use","id":"","name":"","input":{}}`)
		block, _ = sjson.SetBytes(block, "id", id)
		block, _ = sjson.SetBytes(block, "name", call.Get("function.name").String())
		if input, ok := parseArguments(call.Get("function.arguments")); ok {
			block, _ = sjson.SetRawBytes(block, "input", []byte(input))
		}
		out, _ = sjson.SetRawBytes(out, "content.-1", block)
		return true
	})

	out, _ = sjson.SetBytes(out, "stop_reason", string(MapFinishReason(choice.Get("finish_reason").String())))
	out, _ = sjson.SetBytes(out, "usage.input_tokens", root.Get("usage.prompt_tokens").Int())
	out, _ = sjson.SetBytes(out, "usage.output_tokens", root.Get("usage.completion_tokens").Int())

	return string(out)
}

// parseArguments returns the raw JSON object encoded in an OpenAI arguments
// string. ok is false when the arguments are empty or do not hold an object;
// callers then keep the {} input, so valid non-object JSON is dropped.
func parseArguments(arguments gjson.Result) (string, bool) {
	raw := strings.TrimSpace(arguments.String())
	if arguments.IsObject() {
		raw = arguments.Raw
	}
	if raw == "" || !gjson.Valid(raw) {
		return "", false
	}
	if parsed := gjson.Parse(raw); !parsed.IsObject() {
		return "", false
	}
	return raw, true
}

// ClaudeTokenCount returns the token count in Claude format.
func ClaudeTokenCount(_ context.Context, count int64) string {
	return fmt.Sprintf(`{"input_tokens":%d}`, count)
}
