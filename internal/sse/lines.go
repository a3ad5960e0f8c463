// Package sse splits backend server-sent-event byte streams into lines and
// frames outgoing front events.
package sse

import "bytes"

var dataPrefix = []byte("data: ")

// DoneSentinel is the payload the backend sends as its final data record.
const DoneSentinel = "[DONE]"

// LineBuffer accumulates stream bytes and yields complete lines.
// The trailing segment after the last newline is retained until a later chunk
// completes it. A LineBuffer is not safe for concurrent use.
type LineBuffer struct {
	pending []byte
}

// Feed appends chunk to the pending bytes and returns every complete line,
// newline and carriage return trimmed. Returned slices are owned by the caller.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}
	b.pending = append(b.pending, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(b.pending[:i], []byte{'\r'})
		lines = append(lines, bytes.Clone(line))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Pending returns the bytes retained after the last complete line.
func (b *LineBuffer) Pending() []byte {
	return b.pending
}

// Flush returns the retained tail as a final line and resets the buffer.
// It returns nil when nothing is pending.
func (b *LineBuffer) Flush() []byte {
	if len(b.pending) == 0 {
		return nil
	}
	line := bytes.TrimSuffix(b.pending, []byte{'\r'})
	b.pending = nil
	return line
}

// DataPayload strips the "data: " marker from an SSE line.
// ok is false for lines that are not data records.
func DataPayload(line []byte) (payload []byte, ok bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	return bytes.TrimSpace(line[len(dataPrefix):]), true
}

// IsDone reports whether payload is the backend end-of-stream sentinel.
func IsDone(payload []byte) bool {
	return bytes.Equal(payload, []byte(DoneSentinel))
}
