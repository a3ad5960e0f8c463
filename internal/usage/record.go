package usage

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Record describes the token usage of one completed backend call.
type Record struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	Stream       bool
	Failed       bool
	RequestedAt  time.Time
	Duration     time.Duration
}

// Plugin receives usage records.
type Plugin interface {
	HandleUsage(ctx context.Context, record Record)
}

var (
	pluginsMu sync.RWMutex
	plugins   []Plugin
)

// RegisterPlugin adds p to the set of plugins notified by Publish.
func RegisterPlugin(p Plugin) {
	if p == nil {
		return
	}
	pluginsMu.Lock()
	plugins = append(plugins, p)
	pluginsMu.Unlock()
}

// ResetPlugins removes every registered plugin.
func ResetPlugins() {
	pluginsMu.Lock()
	plugins = nil
	pluginsMu.Unlock()
}

// Publish delivers record to every registered plugin.
func Publish(ctx context.Context, record Record) {
	pluginsMu.RLock()
	snapshot := append([]Plugin(nil), plugins...)
	pluginsMu.RUnlock()
	for _, p := range snapshot {
		p.HandleUsage(ctx, record)
	}
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(ctx context.Context, record Record)

// HandleUsage implements Plugin.
func (f PluginFunc) HandleUsage(ctx context.Context, record Record) { f(ctx, record) }

// LoggerPlugin logs every usage record at debug level.
type LoggerPlugin struct{}

// NewLoggerPlugin constructs a LoggerPlugin.
func NewLoggerPlugin() *LoggerPlugin { return &LoggerPlugin{} }

// HandleUsage implements Plugin.
func (p *LoggerPlugin) HandleUsage(_ context.Context, record Record) {
	fields := log.Fields{
		"model":         record.Model,
		"input_tokens":  record.InputTokens,
		"output_tokens": record.OutputTokens,
		"stream":        record.Stream,
		"failed":        record.Failed,
		"duration":      record.Duration,
	}
	if cost, ok := EstimateCost(record); ok {
		fields["estimated_cost_usd"] = cost
	}
	log.WithFields(fields).Debug("usage")
}

// ParseOpenAIUsage extracts prompt and completion tokens from a
// chat-completions body or stream chunk. ok is false when the payload carries
// no usage object.
func ParseOpenAIUsage(payload []byte) (input, output int64, ok bool) {
	u := gjson.GetBytes(payload, "usage")
	if !u.IsObject() {
		return 0, 0, false
	}
	return u.Get("prompt_tokens").Int(), u.Get("completion_tokens").Int(), true
}
