package usage

import (
	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/tidwall/gjson"
)

const (
	// perMessageOverhead accounts for role and framing tokens of a message.
	perMessageOverhead = 4
	// systemOverhead accounts for the framing of a system prompt.
	systemOverhead = 4
)

// EstimateBackendRequest estimates the input tokens of a translated
// chat-completions request: message text plus a per-message overhead, plus
// the JSON of any tool definitions.
func EstimateBackendRequest(est TokenEstimator, body []byte) int64 {
	if est == nil {
		est = CharEstimator{}
	}
	root := gjson.ParseBytes(body)
	total := 0
	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content")
		switch {
		case content.Type == gjson.String:
			total += est.Count(content.String())
		case content.IsArray():
			content.ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "text" {
					total += est.Count(part.Get("text").String())
				}
				return true
			})
		}
		total += perMessageOverhead
		return true
	})
	if tools := root.Get("tools"); tools.IsArray() && len(tools.Array()) > 0 {
		total += est.Count(tools.Raw)
	}
	return int64(total)
}

// CountClaudeRequest estimates the input tokens of a Messages API request as
// reported by the count_tokens endpoint.
func CountClaudeRequest(est TokenEstimator, body []byte) int64 {
	if est == nil {
		est = CharEstimator{}
	}
	root := gjson.ParseBytes(body)
	total := 0

	if system := schema.FlattenSystem(root.Get("system")); system != "" {
		total += est.Count(system) + systemOverhead
	}
	for _, msg := range schema.ParseMessages(root.Get("messages")) {
		if msg.IsText {
			total += est.Count(msg.Text)
		} else {
			for _, b := range msg.Blocks {
				if b.Type == schema.BlockText {
					total += est.Count(b.Text)
				}
			}
		}
		total += perMessageOverhead
	}
	if tools := root.Get("tools"); tools.IsArray() && len(tools.Array()) > 0 {
		total += est.Count(tools.Raw)
	}
	return int64(total)
}
