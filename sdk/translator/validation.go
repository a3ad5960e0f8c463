package translator

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Schema validation errors.
var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrEmptyPayload  = errors.New("empty payload")
	ErrInvalidJSON   = errors.New("invalid JSON")
)

// ValidationResult contains the result of a schema validation.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result and marks it as invalid.
func (v *ValidationResult) AddError(err string) {
	v.Valid = false
	v.Errors = append(v.Errors, err)
}

// AddWarning adds a warning to the validation result without affecting validity.
func (v *ValidationResult) AddWarning(warn string) {
	v.Warnings = append(v.Warnings, warn)
}

// Error returns a combined error if the validation failed.
func (v *ValidationResult) Error() error {
	if v.Valid {
		return nil
	}
	if len(v.Errors) == 0 {
		return ErrInvalidSchema
	}
	return fmt.Errorf("%w: %v", ErrInvalidSchema, v.Errors)
}

// NewValidationResult creates a new validation result starting as valid.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

func validateJSON(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if !gjson.ValidBytes(payload) {
		return ErrInvalidJSON
	}
	return nil
}

func checkRequiredField(parsed gjson.Result, field string, expectedType ...gjson.Type) (bool, string) {
	value := parsed.Get(field)
	if !value.Exists() {
		return false, fmt.Sprintf("missing required field: %s", field)
	}
	if len(expectedType) > 0 && value.Type != expectedType[0] {
		return false, fmt.Sprintf("field %s has wrong type: expected %v, got %v", field, expectedType[0], value.Type)
	}
	return true, ""
}

func checkOptionalField(parsed gjson.Result, field string, expectedType gjson.Type) (bool, string) {
	value := parsed.Get(field)
	if !value.Exists() || value.Type == gjson.Null {
		return true, ""
	}
	if value.Type != expectedType {
		return false, fmt.Sprintf("field %s has wrong type: expected %v, got %v", field, expectedType, value.Type)
	}
	return true, ""
}

func isBool(v gjson.Result) bool {
	return v.Type == gjson.True || v.Type == gjson.False
}

// ValidateClaudeRequest checks that a payload has the shape of a Messages API
// request: a string model, a messages array whose entries carry a role and
// string or block-list content, and correctly typed optional fields.
func ValidateClaudeRequest(payload []byte) error {
	if err := validateJSON(payload); err != nil {
		return err
	}

	result := NewValidationResult()
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsObject() {
		result.AddError("request body must be a JSON object")
		return result.Error()
	}

	if ok, errMsg := checkRequiredField(parsed, "model", gjson.String); !ok {
		result.AddError(errMsg)
	}

	messages := parsed.Get("messages")
	switch {
	case !messages.Exists():
		result.AddError("missing required field: messages")
	case !messages.IsArray():
		result.AddError("messages must be an array")
	default:
		for i, msg := range messages.Array() {
			if !msg.IsObject() {
				result.AddError(fmt.Sprintf("messages[%d] must be an object", i))
				continue
			}
			if msg.Get("role").Type != gjson.String {
				result.AddError(fmt.Sprintf("messages[%d] missing required field: role", i))
			}
			content := msg.Get("content")
			if !content.Exists() {
				result.AddError(fmt.Sprintf("messages[%d] missing required field: content", i))
			} else if content.Type != gjson.String && !content.IsArray() {
				result.AddError(fmt.Sprintf("messages[%d] content must be a string or an array", i))
			}
		}
	}

	for _, field := range []string{"max_tokens", "temperature", "top_p"} {
		if ok, errMsg := checkOptionalField(parsed, field, gjson.Number); !ok {
			result.AddError(errMsg)
		}
	}
	if s := parsed.Get("stream"); s.Exists() && !isBool(s) {
		result.AddError("field stream must be a boolean")
	}
	if s := parsed.Get("system"); s.Exists() && s.Type != gjson.String && !s.IsArray() {
		result.AddError("field system must be a string or an array")
	}
	if s := parsed.Get("stop_sequences"); s.Exists() && !s.IsArray() {
		result.AddError("field stop_sequences must be an array")
	}
	if t := parsed.Get("tools"); t.Exists() && !t.IsArray() {
		result.AddError("field tools must be an array")
	}
	if tc := parsed.Get("tool_choice"); tc.Exists() && !tc.IsObject() {
		result.AddWarning("tool_choice is not an object and will default to auto")
	}

	return result.Error()
}

// ValidateOpenAIRequest checks the chat-completions request shape produced for
// the backend.
func ValidateOpenAIRequest(payload []byte) error {
	if err := validateJSON(payload); err != nil {
		return err
	}

	result := NewValidationResult()
	parsed := gjson.ParseBytes(payload)

	if ok, errMsg := checkRequiredField(parsed, "model", gjson.String); !ok {
		result.AddError(errMsg)
	}

	messages := parsed.Get("messages")
	if !messages.IsArray() {
		result.AddError("messages must be an array")
	} else {
		for i, msg := range messages.Array() {
			role := msg.Get("role").String()
			if role == "" {
				result.AddError(fmt.Sprintf("messages[%d] missing required field: role", i))
			}
			if role == "tool" && msg.Get("tool_call_id").String() == "" {
				result.AddError(fmt.Sprintf("messages[%d] tool message missing tool_call_id", i))
			}
			if !msg.Get("content").Exists() && !msg.Get("tool_calls").Exists() {
				result.AddError(fmt.Sprintf("messages[%d] has neither content nor tool_calls", i))
			}
		}
	}

	if ok, errMsg := checkOptionalField(parsed, "max_tokens", gjson.Number); !ok {
		result.AddError(errMsg)
	}
	if s := parsed.Get("stream"); !isBool(s) {
		result.AddError("field stream must be a boolean")
	}

	return result.Error()
}

// ValidateSchema dispatches to the validator for format.
func ValidateSchema(format Format, payload []byte) error {
	switch format {
	case FormatClaude:
		return ValidateClaudeRequest(payload)
	case FormatOpenAI:
		return ValidateOpenAIRequest(payload)
	default:
		return validateJSON(payload)
	}
}
