// Package claude provides request translation functionality for Claude Messages API
// to OpenAI chat-completions compatibility. It reshapes Claude content blocks into
// OpenAI messages: tool_use blocks fold into one assistant message with tool_calls,
// tool_result blocks fan out into separate tool messages, and text and image blocks
// become ordered content parts.
package claude

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultImageMediaType = "image/png"

// ConvertClaudeRequestToOpenAI converts a Claude Messages API request into an
// OpenAI chat-completions request.
//
// Parameters:
//   - modelName: The upstream model name written to the request
//   - inputRawJSON: The raw JSON request data from the Claude API
//   - stream: A boolean indicating if the request is for a streaming response
//
// Returns:
//   - []byte: The transformed request data in OpenAI chat-completions format
func ConvertClaudeRequestToOpenAI(modelName string, inputRawJSON []byte, stream bool) []byte {
	rawJSON := bytes.Clone(inputRawJSON)
	root := gjson.ParseBytes(rawJSON)

	out := []byte(`{"model":"","messages":[],"stream":false}`)
	out, _ = sjson.SetBytes(out, "model", modelName)

	messages := []byte(`[]`)
	if system := schema.FlattenSystem(root.Get("system")); system != "" {
		sys := []byte(`{"role":"system","content":""}`)
		sys, _ = sjson.SetBytes(sys, "content", system)
		messages, _ = sjson.SetRawBytes(messages, "-1", sys)
	}
	for _, msg := range schema.ParseMessages(root.Get("messages")) {
		for _, converted := range convertMessage(msg) {
			messages, _ = sjson.SetRawBytes(messages, "-1", converted)
		}
	}
	out, _ = sjson.SetRawBytes(out, "messages", messages)

	out, _ = sjson.SetBytes(out, "stream", stream)
	if stream {
		out, _ = sjson.SetBytes(out, "stream_options.include_usage", true)
	}

	// Scalars are forwarded only when the caller set them.
	if v := root.Get("max_tokens"); v.Exists() {
		out, _ = sjson.SetRawBytes(out, "max_tokens", []byte(v.Raw))
	}
	if v := root.Get("temperature"); v.Exists() {
		out, _ = sjson.SetRawBytes(out, "temperature", []byte(v.Raw))
	}
	if v := root.Get("top_p"); v.Exists() {
		out, _ = sjson.SetRawBytes(out, "top_p", []byte(v.Raw))
	}
	if v := root.Get("stop_sequences"); v.Exists() {
		out, _ = sjson.SetRawBytes(out, "stop", []byte(v.Raw))
	}
	if v := root.Get("metadata.user_id"); v.Exists() && v.String() != "" {
		out, _ = sjson.SetBytes(out, "user", v.String())
	}

	if tools := schema.ParseTools(root.Get("tools")); len(tools) > 0 {
		out, _ = sjson.SetRawBytes(out, "tools", convertTools(tools))
	}
	if choice := root.Get("tool_choice"); choice.Exists() {
		out, _ = sjson.SetRawBytes(out, "tool_choice", convertToolChoice(schema.ParseToolChoice(choice)))
	}

	return out
}

// convertMessage maps one Claude message onto zero or more OpenAI messages.
// The block groups decide the shape: assistant tool_use folds in, tool_result
// fans out, text and image become parts. A message with no recognised blocks
// produces nothing.
func convertMessage(msg schema.Message) [][]byte {
	if msg.IsText {
		m := []byte(`{"role":"","content":""}`)
		m, _ = sjson.SetBytes(m, "role", string(msg.Role))
		m, _ = sjson.SetBytes(m, "content", msg.Text)
		return [][]byte{m}
	}

	groups := msg.Split()
	switch {
	case msg.Role == schema.RoleAssistant && len(groups.ToolUse) > 0:
		return [][]byte{convertToolUseMessage(groups)}
	case len(groups.ToolResult) > 0:
		return convertToolResults(groups.ToolResult)
	case len(groups.Text) > 0 || len(groups.Image) > 0:
		return [][]byte{convertPartsMessage(msg)}
	default:
		return nil
	}
}

func convertToolUseMessage(groups schema.BlockGroups) []byte {
	m := []byte(`{"role":"assistant","content":null,"tool_calls":[]}`)
	if len(groups.Text) > 0 {
		var sb strings.Builder
		for _, b := range groups.Text {
			sb.WriteString(b.Text)
		}
		m, _ = sjson.SetBytes(m, "content", sb.String())
	}
	for _, b := range groups.ToolUse {
		id := b.ID
		if id == "" {
			id = newToolCallID()
		}
		call := []byte(`{"id":"","type":"function","function":{"name":"","arguments":"{}"}}`)
		call, _ = sjson.SetBytes(call, "id", id)
		call, _ = sjson.SetBytes(call, "function.name", b.Name)
		call, _ = sjson.SetBytes(call, "function.arguments", encodeArguments(b.Input))
		m, _ = sjson.SetRawBytes(m, "tool_calls.-1", call)
	}
	return m
}

func convertToolResults(results []schema.ContentBlock) [][]byte {
	out := make([][]byte, 0, len(results))
	for _, b := range results {
		m := []byte(`{"role":"tool","content":"","tool_call_id":""}`)
		m, _ = sjson.SetBytes(m, "content", schema.FlattenText(b.Content))
		m, _ = sjson.SetBytes(m, "tool_call_id", b.ToolUseID)
		out = append(out, m)
	}
	return out
}

func convertPartsMessage(msg schema.Message) []byte {
	parts := []byte(`[]`)
	count := 0
	onlyText := ""
	for _, b := range msg.Blocks {
		switch b.Type {
		case schema.BlockText:
			if b.Text == "" {
				continue
			}
			part := []byte(`{"type":"text","text":""}`)
			part, _ = sjson.SetBytes(part, "text", b.Text)
			parts, _ = sjson.SetRawBytes(parts, "-1", part)
			onlyText = b.Text
			count++
		case schema.BlockImage:
			if b.Source == nil {
				continue
			}
			part := []byte(`{"type":"image_url","image_url":{"url":""}}`)
			part, _ = sjson.SetBytes(part, "image_url.url", imageURL(b.Source))
			parts, _ = sjson.SetRawBytes(parts, "-1", part)
			onlyText = ""
			count++
		}
	}

	m := []byte(`{"role":"","content":""}`)
	m, _ = sjson.SetBytes(m, "role", string(msg.Role))
	if count == 1 && gjson.GetBytes(parts, "0.type").String() == "text" {
		m, _ = sjson.SetBytes(m, "content", onlyText)
		return m
	}
	m, _ = sjson.SetRawBytes(m, "content", parts)
	return m
}

func imageURL(src *schema.ImageSource) string {
	if src.Type == "url" && src.URL != "" {
		return src.URL
	}
	mediaType := src.MediaType
	if mediaType == "" {
		mediaType = defaultImageMediaType
	}
	return "data:" + mediaType + ";base64," + src.Data
}

// encodeArguments renders a tool_use input as the JSON string OpenAI expects.
func encodeArguments(input gjson.Result) string {
	if !input.Exists() || input.Type == gjson.Null {
		return "{}"
	}
	raw := strings.TrimSpace(input.Raw)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}

func convertTools(tools []schema.ToolDefinition) []byte {
	out := []byte(`[]`)
	for _, t := range tools {
		tool := []byte(`{"type":"function","function":{"name":"","description":"","parameters":{}}}`)
		tool, _ = sjson.SetBytes(tool, "function.name", t.Name)
		tool, _ = sjson.SetBytes(tool, "function.description", t.Description)
		if t.InputSchema.Exists() && t.InputSchema.IsObject() {
			tool, _ = sjson.SetRawBytes(tool, "function.parameters", []byte(t.InputSchema.Raw))
		}
		out, _ = sjson.SetRawBytes(out, "-1", tool)
	}
	return out
}

func convertToolChoice(choice schema.ToolChoice) []byte {
	switch choice.Kind {
	case schema.ToolChoiceAny:
		return []byte(`"required"`)
	case schema.ToolChoiceNone:
		return []byte(`"none"`)
	case schema.ToolChoiceTool:
		named := []byte(`{"type":"function","function":{"name":""}}`)
		named, _ = sjson.SetBytes(named, "function.name", choice.Name)
		return named
	default:
		return []byte(`"auto"`)
	}
}

// newToolCallID returns an OpenAI style tool call id.
func newToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
