package sse

import (
	"bytes"
	"errors"
	"testing"
)

func TestLineBuffer_RetainsPartialTail(t *testing.T) {
	var b LineBuffer

	lines := b.Feed([]byte("data: {\"a\":1}\n\ndata: {\"b\""))
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if string(lines[0]) != `data: {"a":1}` || len(lines[1]) != 0 {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if string(b.Pending()) != `data: {"b"` {
		t.Fatalf("pending = %q", b.Pending())
	}

	lines = b.Feed([]byte(":2}\r\n"))
	if len(lines) != 1 || string(lines[0]) != `data: {"b":2}` {
		t.Fatalf("unexpected completion: %q", lines)
	}
	if b.Pending() != nil {
		t.Fatalf("expected empty pending, got %q", b.Pending())
	}
}

func TestLineBuffer_ByteAtATimeMatchesWhole(t *testing.T) {
	stream := []byte("data: one\n\ndata: two\r\n: keep-alive\n\ndata: [DONE]\n\n")

	var whole LineBuffer
	want := whole.Feed(stream)

	var split LineBuffer
	var got [][]byte
	for i := range stream {
		got = append(got, split.Feed(stream[i:i+1])...)
	}

	if len(got) != len(want) {
		t.Fatalf("line count differs: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestLineBuffer_Flush(t *testing.T) {
	var b LineBuffer
	b.Feed([]byte("data: tail"))
	if got := b.Flush(); string(got) != "data: tail" {
		t.Fatalf("Flush = %q", got)
	}
	if b.Flush() != nil {
		t.Fatalf("second Flush should be nil")
	}
}

func TestDataPayload(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{`data: {"x":1}`, `{"x":1}`, true},
		{`data: [DONE]`, `[DONE]`, true},
		{`event: ping`, ``, false},
		{`: comment`, ``, false},
		{`data:{"x":1}`, ``, false},
	}
	for _, tt := range tests {
		got, ok := DataPayload([]byte(tt.line))
		if ok != tt.wantOK || string(got) != tt.want {
			t.Errorf("DataPayload(%q) = %q,%v want %q,%v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
	if !IsDone([]byte("[DONE]")) || IsDone([]byte(`{"done":true}`)) {
		t.Fatalf("IsDone mismatch")
	}
}

func TestFormatEvent_BitExact(t *testing.T) {
	got := FormatEvent("message_stop", []byte(`{"type":"message_stop"}`))
	want := "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
	if string(got) != want {
		t.Fatalf("FormatEvent = %q, want %q", got, want)
	}
}

func TestWriteEvent_MatchesFormatEvent(t *testing.T) {
	var buf bytes.Buffer
	data := []byte(`{"type":"ping"}`)
	if err := WriteEvent(&buf, "ping", data); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), FormatEvent("ping", data)) {
		t.Fatalf("WriteEvent output %q differs from FormatEvent", buf.Bytes())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteEvent_PropagatesWriteError(t *testing.T) {
	if err := WriteEvent(failingWriter{}, "ping", []byte(`{}`)); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestParseEvents(t *testing.T) {
	stream := append(FormatEvent("message_start", []byte(`{"a":1}`)), FormatEvent("message_stop", []byte(`{"b":2}`))...)
	events := ParseEvents(stream)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Name != "message_start" || string(events[1].Data) != `{"b":2}` {
		t.Fatalf("unexpected events: %+v", events)
	}
}
