package translator

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_TranslateRequest(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatOpenAI, func(model string, data []byte, stream bool) []byte {
		if stream {
			return []byte(model + ":stream")
		}
		return []byte(model)
	}, ResponseTransform{})

	if got := string(reg.TranslateRequest(FormatClaude, FormatOpenAI, "m", []byte(`{}`), true)); got != "m:stream" {
		t.Fatalf("TranslateRequest = %q", got)
	}
	if got := string(reg.TranslateRequest(FormatOpenAI, FormatClaude, "m", []byte(`{"x":1}`), false)); got != `{"x":1}` {
		t.Fatalf("unregistered pair should pass through, got %q", got)
	}
	if !reg.HasRequestTranslator(FormatClaude, FormatOpenAI) {
		t.Fatalf("expected request translator")
	}
}

func TestRegistry_ResponseDirection(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatOpenAI, nil, ResponseTransform{
		Stream: func(ctx context.Context, modelName string, orig, req, raw []byte, param *any) []string {
			return []string{"stream:" + string(raw)}
		},
		NonStream: func(ctx context.Context, modelName string, orig, req, raw []byte, param *any) string {
			return "nonstream:" + string(raw)
		},
		StreamStart: func(ctx context.Context, modelName string, req []byte, inputTokens int64, param *any) []string {
			return []string{modelName}
		},
		TokenCount: func(ctx context.Context, count int64) string {
			return "count"
		},
	})

	ctx := context.Background()
	var param any

	if !reg.HasResponseTransformer(FormatClaude, FormatOpenAI) {
		t.Fatalf("expected response transformer")
	}
	if got := reg.TranslateStream(ctx, FormatOpenAI, FormatClaude, "m", nil, nil, []byte("x"), &param); !reflect.DeepEqual(got, []string{"stream:x"}) {
		t.Fatalf("TranslateStream = %v", got)
	}
	if got := reg.TranslateNonStream(ctx, FormatOpenAI, FormatClaude, "m", nil, nil, []byte("y"), &param); got != "nonstream:y" {
		t.Fatalf("TranslateNonStream = %q", got)
	}
	if got := reg.StartStream(ctx, FormatOpenAI, FormatClaude, "model-a", nil, 3, &param); !reflect.DeepEqual(got, []string{"model-a"}) {
		t.Fatalf("StartStream = %v", got)
	}
	if got := reg.TranslateTokenCount(ctx, FormatOpenAI, FormatClaude, 5, nil); got != "count" {
		t.Fatalf("TranslateTokenCount = %q", got)
	}

	// The reverse direction is unregistered and passes payloads through.
	if got := reg.TranslateNonStream(ctx, FormatClaude, FormatOpenAI, "m", nil, nil, []byte("raw"), &param); got != "raw" {
		t.Fatalf("reverse TranslateNonStream = %q", got)
	}
	if got := reg.StartStream(ctx, FormatClaude, FormatOpenAI, "m", nil, 0, &param); got != nil {
		t.Fatalf("reverse StartStream = %v", got)
	}
}

func TestRegistry_UnregisterAndPairs(t *testing.T) {
	reg := NewRegistry()
	identity := func(model string, data []byte, stream bool) []byte { return data }
	reg.Register(FormatClaude, FormatOpenAI, identity, ResponseTransform{})
	reg.Register(FormatOpenAI, FormatClaude, identity, ResponseTransform{})

	if got := reg.Pairs(); !reflect.DeepEqual(got, []string{"claude->openai", "openai->claude"}) {
		t.Fatalf("Pairs = %v", got)
	}

	reg.Unregister(FormatOpenAI, FormatClaude)
	if reg.HasRequestTranslator(FormatOpenAI, FormatClaude) {
		t.Fatalf("expected translator removed")
	}
	if got := reg.Pairs(); !reflect.DeepEqual(got, []string{"claude->openai"}) {
		t.Fatalf("Pairs after unregister = %v", got)
	}
}

func TestFromString(t *testing.T) {
	if FromString("  Claude ") != FormatClaude {
		t.Fatalf("FromString did not normalize")
	}
}

func TestValidateClaudeRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"valid string content", `{"model":"claude-3","messages":[{"role":"user","content":"hi"}],"max_tokens":10}`, nil},
		{"valid blocks", `{"model":"claude-3","messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}],"stream":true,"system":[{"type":"text","text":"s"}]}`, nil},
		{"empty", ``, ErrEmptyPayload},
		{"not json", `{"model":`, ErrInvalidJSON},
		{"array body", `[1,2]`, ErrInvalidSchema},
		{"missing model", `{"messages":[]}`, ErrInvalidSchema},
		{"missing messages", `{"model":"claude"}`, ErrInvalidSchema},
		{"messages not array", `{"model":"claude","messages":"hi"}`, ErrInvalidSchema},
		{"message missing role", `{"model":"claude","messages":[{"content":"hi"}]}`, ErrInvalidSchema},
		{"numeric content", `{"model":"claude","messages":[{"role":"user","content":1}]}`, ErrInvalidSchema},
		{"string max_tokens", `{"model":"claude","messages":[],"max_tokens":"10"}`, ErrInvalidSchema},
		{"string stream", `{"model":"claude","messages":[],"stream":"yes"}`, ErrInvalidSchema},
		{"tools object", `{"model":"claude","messages":[],"tools":{}}`, ErrInvalidSchema},
		{"odd tool_choice is only a warning", `{"model":"claude","messages":[],"tool_choice":"any"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClaudeRequest([]byte(tt.payload))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOpenAIRequest(t *testing.T) {
	ok := `{"model":"p/claude","stream":false,"messages":[{"role":"assistant","content":null,"tool_calls":[]},{"role":"tool","tool_call_id":"c","content":"r"}]}`
	if err := ValidateSchema(FormatOpenAI, []byte(ok)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := `{"model":"p/claude","stream":false,"messages":[{"role":"tool","content":"r"}]}`
	if err := ValidateSchema(FormatOpenAI, []byte(bad)); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestRegistry_FinishStream(t *testing.T) {
	reg := NewRegistry()
	reg.Register(FormatClaude, FormatOpenAI, nil, ResponseTransform{
		Stream: func(ctx context.Context, modelName string, orig, req, raw []byte, param *any) []string {
			return nil
		},
		StreamEnd: func(ctx context.Context, modelName string, param *any) []string {
			return []string{"end:" + modelName}
		},
	})

	ctx := context.Background()
	var param any
	if got := reg.FinishStream(ctx, FormatOpenAI, FormatClaude, "m", &param); !reflect.DeepEqual(got, []string{"end:m"}) {
		t.Fatalf("FinishStream = %v", got)
	}
	// A backend line spelling the end marker goes to Stream, never StreamEnd.
	if got := reg.TranslateStream(ctx, FormatOpenAI, FormatClaude, "m", nil, nil, []byte("[DONE]"), &param); got != nil {
		t.Fatalf("TranslateStream([DONE]) = %v", got)
	}
	if got := NewRegistry().FinishStream(ctx, FormatOpenAI, FormatClaude, "m", &param); got != nil {
		t.Fatalf("unregistered FinishStream = %v", got)
	}
}
