package translator

import (
	"context"
	"sort"
	"sync"
)

// Registry manages translation functions across schemas.
type Registry struct {
	mu        sync.RWMutex
	requests  map[Format]map[Format]RequestTransform
	responses map[Format]map[Format]ResponseTransform
}

// NewRegistry constructs an empty translator registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:  make(map[Format]map[Format]RequestTransform),
		responses: make(map[Format]map[Format]ResponseTransform),
	}
}

// Register stores request/response transforms between two formats.
// from is the caller's format and to is the backend's.
func (r *Registry) Register(from, to Format, request RequestTransform, response ResponseTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[from]; !ok {
		r.requests[from] = make(map[Format]RequestTransform)
	}
	if request != nil {
		r.requests[from][to] = request
	}

	if _, ok := r.responses[from]; !ok {
		r.responses[from] = make(map[Format]ResponseTransform)
	}
	r.responses[from][to] = response
}

// Unregister removes transforms for the given from->to direction.
func (r *Registry) Unregister(from, to Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byTarget, ok := r.requests[from]; ok {
		delete(byTarget, to)
	}
	if byTarget, ok := r.responses[from]; ok {
		delete(byTarget, to)
	}
}

// TranslateRequest converts a payload between schemas, returning the original payload
// if no translator is registered.
func (r *Registry) TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	r.mu.RLock()
	fn := r.requests[from][to]
	r.mu.RUnlock()
	if fn == nil {
		return rawJSON
	}
	return fn(model, rawJSON, stream)
}

// response looks up the response transform that turns backend format from
// into caller format to.
func (r *Registry) response(from, to Format) (ResponseTransform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.responses[to][from]
	return fn, ok
}

// HasResponseTransformer indicates whether a response translator exists.
func (r *Registry) HasResponseTransformer(from, to Format) bool {
	_, ok := r.response(to, from)
	return ok
}

// HasRequestTranslator checks if a request translator exists.
func (r *Registry) HasRequestTranslator(from, to Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.requests[from][to]
	return ok
}

// StartStream returns the opening records of a translated stream, or nil when
// the pair has no StreamStart.
func (r *Registry) StartStream(ctx context.Context, from, to Format, model string, requestRawJSON []byte, inputTokens int64, param *any) []string {
	if fn, ok := r.response(from, to); ok && fn.StreamStart != nil {
		return fn.StreamStart(ctx, model, requestRawJSON, inputTokens, param)
	}
	return nil
}

// FinishStream returns the closing records of a translated stream, or nil
// when the pair has no StreamEnd.
func (r *Registry) FinishStream(ctx context.Context, from, to Format, model string, param *any) []string {
	if fn, ok := r.response(from, to); ok && fn.StreamEnd != nil {
		return fn.StreamEnd(ctx, model, param)
	}
	return nil
}

// TranslateStream applies the registered streaming response translator.
func (r *Registry) TranslateStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if fn, ok := r.response(from, to); ok && fn.Stream != nil {
		return fn.Stream(ctx, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return []string{string(rawJSON)}
}

// TranslateNonStream applies the registered non-stream response translator.
func (r *Registry) TranslateNonStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	if fn, ok := r.response(from, to); ok && fn.NonStream != nil {
		return fn.NonStream(ctx, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return string(rawJSON)
}

// TranslateTokenCount renders a token count through the registered translator.
func (r *Registry) TranslateTokenCount(ctx context.Context, from, to Format, count int64, rawJSON []byte) string {
	if fn, ok := r.response(from, to); ok && fn.TokenCount != nil {
		return fn.TokenCount(ctx, count)
	}
	return string(rawJSON)
}

// Pairs lists every registered request direction as "from->to", sorted.
func (r *Registry) Pairs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for from, targets := range r.requests {
		for to := range targets {
			out = append(out, from.String()+"->"+to.String())
		}
	}
	sort.Strings(out)
	return out
}

var defaultRegistry = NewRegistry()

// Default exposes the package-level registry for shared use.
func Default() *Registry {
	return defaultRegistry
}

// Register attaches transforms to the default registry.
func Register(from, to Format, request RequestTransform, response ResponseTransform) {
	defaultRegistry.Register(from, to, request, response)
}

// TranslateRequest is a helper on the default registry.
func TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	return defaultRegistry.TranslateRequest(from, to, model, rawJSON, stream)
}

// HasResponseTransformer inspects the default registry.
func HasResponseTransformer(from, to Format) bool {
	return defaultRegistry.HasResponseTransformer(from, to)
}

// StartStream is a helper on the default registry.
func StartStream(ctx context.Context, from, to Format, model string, requestRawJSON []byte, inputTokens int64, param *any) []string {
	return defaultRegistry.StartStream(ctx, from, to, model, requestRawJSON, inputTokens, param)
}

// FinishStream is a helper on the default registry.
func FinishStream(ctx context.Context, from, to Format, model string, param *any) []string {
	return defaultRegistry.FinishStream(ctx, from, to, model, param)
}

// TranslateStream is a helper on the default registry.
func TranslateStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	return defaultRegistry.TranslateStream(ctx, from, to, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateNonStream is a helper on the default registry.
func TranslateNonStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	return defaultRegistry.TranslateNonStream(ctx, from, to, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateTokenCount is a helper on the default registry.
func TranslateTokenCount(ctx context.Context, from, to Format, count int64, rawJSON []byte) string {
	return defaultRegistry.TranslateTokenCount(ctx, from, to, count, rawJSON)
}
