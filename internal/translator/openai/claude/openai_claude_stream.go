package claude

import (
	"context"

	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/router-for-me/claudebridge/internal/sse"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// openBlock tags the content block currently open in the front stream.
type openBlock int

const (
	openNone openBlock = iota
	openText
	openTool
)

func (o openBlock) String() string {
	switch o {
	case openText:
		return "text"
	case openTool:
		return "tool"
	default:
		return "none"
	}
}

// Params is the per-request state of an OpenAI to Claude stream conversion.
// It is owned by a single stream and never shared.
type Params struct {
	MessageID string
	// NextIndex is the index of the open block, or of the next block to open.
	NextIndex int
	Open      openBlock

	OutputTokens int64
	StopReason   schema.StopReason

	Finished bool
}

func newParams() *Params {
	return &Params{
		MessageID:  newMessageID(),
		StopReason: schema.StopEndTurn,
	}
}

func paramsFrom(param *any) *Params {
	if param == nil {
		return newParams()
	}
	if p, ok := (*param).(*Params); ok && p != nil {
		return p
	}
	p := newParams()
	*param = p
	return p
}

func event(name string, payload []byte) string {
	return string(sse.FormatEvent(name, payload))
}

// StartOpenAIStreamToClaude builds the message_start record of a stream and
// initializes the state carried in param.
func StartOpenAIStreamToClaude(_ context.Context, modelName string, _ []byte, inputTokens int64, param *any) []string {
	p := paramsFrom(param)

	msg := []byte(`{"type":"message_start","message":{"id":"","type":"message","role":"assistant","content":[],"model":"","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":0,"output_tokens":1}}}`)
	msg, _ = sjson.SetBytes(msg, "message.id", p.MessageID)
	msg, _ = sjson.SetBytes(msg, "message.model", modelName)
	msg, _ = sjson.SetBytes(msg, "message.usage.input_tokens", inputTokens)
	return []string{event(schema.EventMessageStart, msg)}
}

// ConvertOpenAIResponseToClaude converts one OpenAI chat-completions stream line
// into Claude Messages stream records.
//
// rawJSON is one complete backend SSE line ("data: {...}"). Lines that are not
// data records, the backend [DONE] record and malformed JSON yield no records.
// The stream is closed only by FinishOpenAIStreamToClaude.
func ConvertOpenAIResponseToClaude(_ context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	p := paramsFrom(param)
	if p.Finished {
		return nil
	}

	payload, ok := sse.DataPayload(rawJSON)
	if !ok || len(payload) == 0 || sse.IsDone(payload) {
		return nil
	}
	if !gjson.ValidBytes(payload) {
		log.Debugf("openai->claude stream: skipping malformed chunk: %s", payload)
		return nil
	}

	root := gjson.ParseBytes(payload)
	var out []string

	if usage := root.Get("usage"); usage.IsObject() {
		if completion := usage.Get("completion_tokens"); completion.Exists() {
			p.OutputTokens = completion.Int()
		}
	}

	choice := root.Get("choices.0")
	if finish := choice.Get("finish_reason"); finish.Type == gjson.String && finish.String() != "" {
		p.StopReason = MapFinishReason(finish.String())
	}

	delta := choice.Get("delta")
	if text := delta.Get("content"); text.Type == gjson.String && text.String() != "" {
		out = append(out, p.appendText(text.String())...)
	}

	delta.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		out = append(out, p.appendToolCall(call)...)
		return true
	})

	return out
}

// FinishOpenAIStreamToClaude closes the open block and emits message_delta
// and message_stop. It is called once the backend body has ended; later
// calls yield nothing.
func FinishOpenAIStreamToClaude(_ context.Context, _ string, param *any) []string {
	p := paramsFrom(param)
	if p.Finished {
		return nil
	}
	return p.finish()
}

func (p *Params) closeBlock() []string {
	if p.Open == openNone {
		return nil
	}
	stop := []byte(`{"type":"content_block_stop","index":0}`)
	stop, _ = sjson.SetBytes(stop, "index", p.NextIndex)
	p.Open = openNone
	p.NextIndex++
	return []string{event(schema.EventContentBlockStop, stop)}
}

func (p *Params) appendText(text string) []string {
	var out []string
	if p.Open == openTool {
		out = append(out, p.closeBlock()...)
	}
	if p.Open == openNone {
		start := []byte(`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		start, _ = sjson.SetBytes(start, "index", p.NextIndex)
		out = append(out, event(schema.EventContentBlockStart, start))
		p.Open = openText
	}
	delta := []byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":""}}`)
	delta, _ = sjson.SetBytes(delta, "index", p.NextIndex)
	delta, _ = sjson.SetBytes(delta, "delta.text", text)
	return append(out, event(schema.EventContentBlockDelta, delta))
}

func (p *Params) appendToolCall(call gjson.Result) []string {
	var out []string
	if id := call.Get("id").String(); id != "" {
		out = append(out, p.closeBlock()...)
		start := []byte(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"","name":"","input":{}}}`)
		start, _ = sjson.SetBytes(start, "index", p.NextIndex)
		start, _ = sjson.SetBytes(start, "content_block.id", id)
		start, _ = sjson.SetBytes(start, "content_block.name", call.Get("function.name").String())
		out = append(out, event(schema.EventContentBlockStart, start))
		p.Open = openTool
	}

	args := call.Get("function.arguments").String()
	if args == "" {
		return out
	}
	if p.Open != openTool {
		log.Debugf("openai->claude stream: dropping tool arguments with no open tool block (open=%s)", p.Open)
		return out
	}
	delta := []byte(`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":""}}`)
	delta, _ = sjson.SetBytes(delta, "index", p.NextIndex)
	delta, _ = sjson.SetBytes(delta, "delta.partial_json", args)
	return append(out, event(schema.EventContentBlockDelta, delta))
}

func (p *Params) finish() []string {
	out := p.closeBlock()

	msgDelta := []byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":0}}`)
	msgDelta, _ = sjson.SetBytes(msgDelta, "delta.stop_reason", string(p.StopReason))
	msgDelta, _ = sjson.SetBytes(msgDelta, "usage.output_tokens", p.OutputTokens)
	out = append(out, event(schema.EventMessageDelta, msgDelta))
	out = append(out, event(schema.EventMessageStop, []byte(`{"type":"message_stop"}`)))

	p.Finished = true
	return out
}
