package sse

import (
	"bytes"
	"io"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var (
	eventPrefix = []byte("event: ")
	dataLine    = []byte("\ndata: ")
	recordEnd   = []byte("\n\n")
)

// FormatEvent renders one front SSE record: "event: <name>\ndata: <json>\n\n".
func FormatEvent(name string, data []byte) []byte {
	out := make([]byte, 0, len(eventPrefix)+len(name)+len(dataLine)+len(data)+len(recordEnd))
	out = append(out, eventPrefix...)
	out = append(out, name...)
	out = append(out, dataLine...)
	out = append(out, data...)
	out = append(out, recordEnd...)
	return out
}

// WriteEvent writes one front SSE record to w in a single Write call.
func WriteEvent(w io.Writer, name string, data []byte) error {
	if w == nil {
		return nil
	}
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.Grow(len(eventPrefix) + len(name) + len(dataLine) + len(data) + len(recordEnd))
	_, _ = buf.Write(eventPrefix)
	_, _ = buf.WriteString(name)
	_, _ = buf.Write(dataLine)
	_, _ = buf.Write(data)
	_, _ = buf.Write(recordEnd)
	_, err := w.Write(buf.Bytes())
	buf.Reset()
	bufferPool.Put(buf)
	return err
}

// Event is one parsed front SSE record.
type Event struct {
	Name string
	Data []byte
}

// ParseEvents splits a rendered front stream back into records.
// Records without a data line are skipped.
func ParseEvents(stream []byte) []Event {
	var out []Event
	for _, rec := range bytes.Split(stream, recordEnd) {
		rec = bytes.TrimSpace(rec)
		if len(rec) == 0 {
			continue
		}
		var ev Event
		for _, line := range bytes.Split(rec, []byte{'\n'}) {
			switch {
			case bytes.HasPrefix(line, eventPrefix):
				ev.Name = string(line[len(eventPrefix):])
			case bytes.HasPrefix(line, dataPrefix):
				ev.Data = bytes.Clone(line[len(dataPrefix):])
			}
		}
		if ev.Data != nil {
			out = append(out, ev)
		}
	}
	return out
}
