// Package schema holds the content model of the Claude Messages API as it is seen
// by the translators: messages, typed content blocks, tool definitions and tool
// choice policies. Values are parsed from raw request JSON and never mutated.
package schema

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType tags a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ImageSource describes the payload of an image block.
type ImageSource struct {
	// Type is "base64" or "url".
	Type      string
	MediaType string
	Data      string
	URL       string
}

// ContentBlock is one typed unit of message content.
// Only the fields relevant to Type are populated.
type ContentBlock struct {
	Type BlockType

	// text
	Text string

	// image
	Source *ImageSource

	// tool_use
	ID    string
	Name  string
	Input gjson.Result

	// tool_result
	ToolUseID string
	Content   gjson.Result
}

// Message is a single conversation turn.
// When IsText is true the content was a plain string and Text holds it;
// otherwise Blocks holds the ordered content blocks.
type Message struct {
	Role   Role
	IsText bool
	Text   string
	Blocks []ContentBlock
}

// BlockGroups partitions the blocks of a message by type, preserving order
// inside each group.
type BlockGroups struct {
	Text       []ContentBlock
	Image      []ContentBlock
	ToolUse    []ContentBlock
	ToolResult []ContentBlock
}

// Split groups the message blocks by type.
func (m Message) Split() BlockGroups {
	var g BlockGroups
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockText:
			g.Text = append(g.Text, b)
		case BlockImage:
			g.Image = append(g.Image, b)
		case BlockToolUse:
			g.ToolUse = append(g.ToolUse, b)
		case BlockToolResult:
			g.ToolResult = append(g.ToolResult, b)
		}
	}
	return g
}

// ParseMessages parses the "messages" array of a Claude request.
func ParseMessages(messages gjson.Result) []Message {
	if !messages.IsArray() {
		return nil
	}
	arr := messages.Array()
	out := make([]Message, 0, len(arr))
	for _, m := range arr {
		out = append(out, ParseMessage(m))
	}
	return out
}

// ParseMessage parses one Claude message object.
// Content that is neither a string nor an array yields a message with no blocks.
func ParseMessage(m gjson.Result) Message {
	msg := Message{Role: Role(m.Get("role").String())}
	content := m.Get("content")
	switch {
	case content.Type == gjson.String:
		msg.IsText = true
		msg.Text = content.String()
	case content.IsArray():
		content.ForEach(func(_, block gjson.Result) bool {
			msg.Blocks = append(msg.Blocks, ParseBlock(block))
			return true
		})
	}
	return msg
}

// ParseBlock parses one content block. Unknown block types keep their type tag
// and are ignored by the translators.
func ParseBlock(block gjson.Result) ContentBlock {
	b := ContentBlock{Type: BlockType(block.Get("type").String())}
	switch b.Type {
	case BlockText:
		b.Text = block.Get("text").String()
	case BlockImage:
		if src := block.Get("source"); src.IsObject() {
			b.Source = &ImageSource{
				Type:      src.Get("type").String(),
				MediaType: src.Get("media_type").String(),
				Data:      src.Get("data").String(),
				URL:       src.Get("url").String(),
			}
		}
	case BlockToolUse:
		b.ID = block.Get("id").String()
		b.Name = block.Get("name").String()
		b.Input = block.Get("input")
	case BlockToolResult:
		b.ToolUseID = block.Get("tool_use_id").String()
		b.Content = block.Get("content")
	}
	return b
}

// FlattenText converts string content, or a list of content blocks, into a
// single string by concatenating the text blocks.
func FlattenText(content gjson.Result) string {
	return flatten(content, "")
}

// FlattenSystem converts a system prompt (string or text block list) into a
// single string, joining text blocks with newlines.
func FlattenSystem(system gjson.Result) string {
	return flatten(system, "\n")
}

func flatten(content gjson.Result, sep string) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var parts []string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == string(BlockText) {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	return strings.Join(parts, sep)
}
