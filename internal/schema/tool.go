package schema

import "github.com/tidwall/gjson"

// ToolDefinition is a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	// InputSchema is the raw JSON Schema of the tool input.
	InputSchema gjson.Result
}

// ParseTools parses the "tools" array of a Claude request.
func ParseTools(tools gjson.Result) []ToolDefinition {
	if !tools.IsArray() {
		return nil
	}
	var out []ToolDefinition
	tools.ForEach(func(_, t gjson.Result) bool {
		out = append(out, ToolDefinition{
			Name:        t.Get("name").String(),
			Description: t.Get("description").String(),
			InputSchema: t.Get("input_schema"),
		})
		return true
	})
	return out
}

// ToolChoiceKind selects how the model may use tools.
type ToolChoiceKind string

const (
	ToolChoiceAuto ToolChoiceKind = "auto"
	ToolChoiceAny  ToolChoiceKind = "any"
	ToolChoiceNone ToolChoiceKind = "none"
	ToolChoiceTool ToolChoiceKind = "tool"
)

// ToolChoice is the tool-use policy of a request. Name is set for ToolChoiceTool.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string
}

// ParseToolChoice parses a "tool_choice" object. Unknown or malformed values
// resolve to auto.
func ParseToolChoice(choice gjson.Result) ToolChoice {
	switch kind := ToolChoiceKind(choice.Get("type").String()); kind {
	case ToolChoiceAny, ToolChoiceNone:
		return ToolChoice{Kind: kind}
	case ToolChoiceTool:
		return ToolChoice{Kind: kind, Name: choice.Get("name").String()}
	default:
		return ToolChoice{Kind: ToolChoiceAuto}
	}
}
