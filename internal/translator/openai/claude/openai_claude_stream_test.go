package claude

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/router-for-me/claudebridge/internal/sse"
	"github.com/tidwall/gjson"
)

// runStream feeds backend lines through a fresh stream conversion and returns
// the parsed front events, including message_start.
func runStream(t *testing.T, lines ...string) []sse.Event {
	t.Helper()
	ctx := context.Background()
	var param any

	var records []string
	records = append(records, StartOpenAIStreamToClaude(ctx, "claude-3-5-sonnet", nil, 11, &param)...)
	for _, line := range lines {
		records = append(records, ConvertOpenAIResponseToClaude(ctx, "claude-3-5-sonnet", nil, nil, []byte(line), &param)...)
	}
	records = append(records, FinishOpenAIStreamToClaude(ctx, "claude-3-5-sonnet", &param)...)

	var events []sse.Event
	for _, rec := range records {
		parsed := sse.ParseEvents([]byte(rec))
		if len(parsed) != 1 {
			t.Fatalf("record %q did not parse as a single event", rec)
		}
		if got := gjson.GetBytes(parsed[0].Data, "type").String(); got != parsed[0].Name {
			t.Fatalf("event name %q does not match payload type %q", parsed[0].Name, got)
		}
		events = append(events, parsed[0])
	}
	return events
}

func eventNames(events []sse.Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

func assertNames(t *testing.T, events []sse.Event, want ...string) {
	t.Helper()
	got := eventNames(events)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v\nwant     %v", got, want)
	}
}

// checkBlockLifecycle asserts the front grammar: blocks never overlap, indices
// increase from zero, and every opened index is closed exactly once.
func checkBlockLifecycle(t *testing.T, events []sse.Event) {
	t.Helper()
	if len(events) < 3 || events[0].Name != schema.EventMessageStart {
		t.Fatalf("stream must start with message_start: %v", eventNames(events))
	}
	n := len(events)
	if events[n-2].Name != schema.EventMessageDelta || events[n-1].Name != schema.EventMessageStop {
		t.Fatalf("stream must end with message_delta, message_stop: %v", eventNames(events))
	}

	open := -1
	next := 0
	closed := make(map[int64]int)
	for _, ev := range events[1 : n-2] {
		idx := gjson.GetBytes(ev.Data, "index").Int()
		switch ev.Name {
		case schema.EventContentBlockStart:
			if open >= 0 {
				t.Fatalf("block %d started while %d is open", idx, open)
			}
			if int(idx) != next {
				t.Fatalf("block started at index %d, want %d", idx, next)
			}
			open = int(idx)
		case schema.EventContentBlockDelta:
			if int(idx) != open {
				t.Fatalf("delta for index %d while open block is %d", idx, open)
			}
		case schema.EventContentBlockStop:
			if int(idx) != open {
				t.Fatalf("stop for index %d while open block is %d", idx, open)
			}
			closed[idx]++
			open = -1
			next++
		default:
			t.Fatalf("unexpected event %q inside block section", ev.Name)
		}
	}
	if open >= 0 {
		t.Fatalf("block %d never closed", open)
	}
	for idx, count := range closed {
		if count != 1 {
			t.Fatalf("index %d closed %d times", idx, count)
		}
	}
}

func TestStream_ScenarioA_Text(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":" there"},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
	)

	assertNames(t, events,
		"message_start", "content_block_start", "content_block_delta", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop")

	start := gjson.ParseBytes(events[0].Data)
	if !strings.HasPrefix(start.Get("message.id").String(), "msg_") {
		t.Fatalf("message id = %q", start.Get("message.id").String())
	}
	if start.Get("message.usage.input_tokens").Int() != 11 || start.Get("message.usage.output_tokens").Int() != 1 {
		t.Fatalf("message_start usage = %s", start.Get("message.usage").Raw)
	}
	if start.Get("message.stop_reason").Type != gjson.Null || start.Get("message.model").String() != "claude-3-5-sonnet" {
		t.Fatalf("unexpected message_start: %s", events[0].Data)
	}

	blockStart := gjson.ParseBytes(events[1].Data)
	if blockStart.Get("index").Int() != 0 || blockStart.Get("content_block.type").String() != "text" || blockStart.Get("content_block.text").String() != "" {
		t.Fatalf("unexpected content_block_start: %s", events[1].Data)
	}
	if got := gjson.GetBytes(events[2].Data, "delta.text").String(); got != "Hi" {
		t.Fatalf("first delta = %q", got)
	}
	if got := gjson.GetBytes(events[3].Data, "delta.type").String(); got != "text_delta" {
		t.Fatalf("delta type = %q", got)
	}
	if got := gjson.GetBytes(events[3].Data, "delta.text").String(); got != " there" {
		t.Fatalf("second delta = %q", got)
	}
	if gjson.GetBytes(events[4].Data, "index").Int() != 0 {
		t.Fatalf("stop index = %s", events[4].Data)
	}
	msgDelta := gjson.ParseBytes(events[5].Data)
	if msgDelta.Get("delta.stop_reason").String() != "end_turn" || msgDelta.Get("delta.stop_sequence").Type != gjson.Null {
		t.Fatalf("message_delta = %s", events[5].Data)
	}
	checkBlockLifecycle(t, events)
}

func TestStream_ScenarioB_ToolCall(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	assertNames(t, events,
		"message_start", "content_block_start", "content_block_delta", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop")

	block := gjson.ParseBytes(events[1].Data)
	if block.Get("index").Int() != 0 || block.Get("content_block.type").String() != "tool_use" {
		t.Fatalf("unexpected tool start: %s", events[1].Data)
	}
	if block.Get("content_block.id").String() != "call_1" || block.Get("content_block.name").String() != "lookup" {
		t.Fatalf("unexpected tool identity: %s", events[1].Data)
	}
	if block.Get("content_block.input").Raw != "{}" {
		t.Fatalf("initial input = %s", block.Get("content_block.input").Raw)
	}
	fragments := []string{`{"q":`, `"x"}`}
	for i, want := range fragments {
		d := gjson.ParseBytes(events[2+i].Data)
		if d.Get("delta.type").String() != "input_json_delta" || d.Get("delta.partial_json").String() != want {
			t.Fatalf("fragment %d = %s", i, events[2+i].Data)
		}
	}
	if got := gjson.GetBytes(events[5].Data, "delta.stop_reason").String(); got != "tool_use" {
		t.Fatalf("stop_reason = %q", got)
	}
	checkBlockLifecycle(t, events)
}

func TestStream_TextThenToolsAdvanceIndex(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"content":"checking"}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"a","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"b","arguments":"{}"}}]}}]}`,
	)

	checkBlockLifecycle(t, events)
	var starts []int64
	for _, ev := range events {
		if ev.Name == schema.EventContentBlockStart {
			starts = append(starts, gjson.GetBytes(ev.Data, "index").Int())
		}
	}
	if fmt.Sprint(starts) != "[0 1 2]" {
		t.Fatalf("block indices = %v, want [0 1 2]", starts)
	}
}

func TestStream_TextAfterToolOpensNewBlock(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_a","function":{"name":"a","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"content":"done"}}]}`,
	)

	checkBlockLifecycle(t, events)
	assertNames(t, events,
		"message_start",
		"content_block_start", "content_block_delta", "content_block_stop",
		"content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop")
	if gjson.GetBytes(events[4].Data, "index").Int() != 1 || gjson.GetBytes(events[4].Data, "content_block.type").String() != "text" {
		t.Fatalf("text block should open at index 1: %s", events[4].Data)
	}
}

func TestStream_IgnoresNoiseAndMalformedLines(t *testing.T) {
	events := runStream(t,
		`: keep-alive`,
		`event: ping`,
		`data: {not json`,
		`data: `,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	)
	assertNames(t, events,
		"message_start", "content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop")
}

func TestStream_ArgumentsWithoutOpenToolAreDropped(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"orphan\":1}"}}]}}]}`,
	)
	assertNames(t, events, "message_start", "message_delta", "message_stop")
}

func TestStream_UsageOverwritesAndFinishReasonSticks(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"content":"a"},"finish_reason":"length"}],"usage":{"completion_tokens":3}}`,
		`data: {"choices":[{"delta":{"content":"b"}}],"usage":null}`,
		`data: {"choices":[],"usage":{"prompt_tokens":9,"completion_tokens":5}}`,
	)
	last := gjson.ParseBytes(events[len(events)-2].Data)
	if last.Get("delta.stop_reason").String() != "max_tokens" {
		t.Fatalf("stop_reason = %q", last.Get("delta.stop_reason").String())
	}
	if last.Get("usage.output_tokens").Int() != 5 {
		t.Fatalf("output_tokens = %d, want 5", last.Get("usage.output_tokens").Int())
	}
}

func TestStream_UnknownFinishReasonMapsToEndTurn(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"content":"a"},"finish_reason":"tool_calls"}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"content_filter"}]}`,
	)
	if got := gjson.GetBytes(events[len(events)-2].Data, "delta.stop_reason").String(); got != "end_turn" {
		t.Fatalf("stop_reason = %q", got)
	}
}

func TestStream_FinishFinalizesOnce(t *testing.T) {
	ctx := context.Background()
	var param any
	StartOpenAIStreamToClaude(ctx, "m", nil, 0, &param)
	first := FinishOpenAIStreamToClaude(ctx, "m", &param)
	if len(first) != 2 {
		t.Fatalf("first finish produced %d records, want 2", len(first))
	}
	if again := FinishOpenAIStreamToClaude(ctx, "m", &param); len(again) != 0 {
		t.Fatalf("second finish produced %d records", len(again))
	}
	if late := ConvertOpenAIResponseToClaude(ctx, "m", nil, nil, []byte(`data: {"choices":[{"delta":{"content":"x"}}]}`), &param); len(late) != 0 {
		t.Fatalf("records after finish: %v", late)
	}
	if !param.(*Params).Finished {
		t.Fatalf("state should be finished")
	}
}

func TestStream_StateWithoutStart(t *testing.T) {
	ctx := context.Background()
	var param any
	out := ConvertOpenAIResponseToClaude(ctx, "m", nil, nil, []byte(`data: {"choices":[{"delta":{"content":"x"}}]}`), &param)
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2", len(out))
	}
	p, ok := param.(*Params)
	if !ok || p.Open != openText || p.StopReason != schema.StopEndTurn {
		t.Fatalf("unexpected state: %+v", param)
	}
}

// Random backend sequences never break the block lifecycle.
func TestStream_BlockLifecycleRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fragments := []string{
		`data: {"choices":[{"delta":{"content":"t"}}]}`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_%d","function":{"name":"f","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_%d","function":{"name":"f","arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"{\"a\""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_%d","function":{"name":"g"}},{"id":"call_x%d","function":{"name":"h"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: {broken`,
		`: ping`,
	}
	for run := 0; run < 200; run++ {
		n := rng.Intn(12)
		lines := make([]string, n)
		for i := range lines {
			f := fragments[rng.Intn(len(fragments))]
			if strings.Contains(f, "%d") {
				f = strings.ReplaceAll(f, "%d", fmt.Sprint(run*100+i))
			}
			lines[i] = f
		}
		checkBlockLifecycle(t, runStream(t, lines...))
	}
}

func TestStream_BareDoneLineDoesNotFinish(t *testing.T) {
	events := runStream(t,
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`[DONE]`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":" there"},"finish_reason":"stop"}]}`,
	)

	want := []string{
		schema.EventMessageStart,
		schema.EventContentBlockStart,
		schema.EventContentBlockDelta,
		schema.EventContentBlockDelta,
		schema.EventContentBlockStop,
		schema.EventMessageDelta,
		schema.EventMessageStop,
	}
	if len(events) != len(want) {
		t.Fatalf("events = %d (%v), want %d", len(events), eventNames(events), len(want))
	}
	for i, name := range want {
		if events[i].Name != name {
			t.Fatalf("event %d = %q, want %q", i, events[i].Name, name)
		}
	}
	if got := gjson.GetBytes(events[3].Data, "delta.text").String(); got != " there" {
		t.Fatalf("second delta = %q", got)
	}
}
