// Package handlers provides the shared plumbing of the front API handlers:
// credential extraction, the Claude error envelope and SSE stream forwarding.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claudebridge/internal/config"
	apperrors "github.com/router-for-me/claudebridge/internal/errors"
	"github.com/router-for-me/claudebridge/internal/runtime/executor"
	log "github.com/sirupsen/logrus"
)

// ErrorResponse is the Claude error envelope.
type ErrorResponse struct {
	// Type is always "error".
	Type string `json:"type"`

	// Error contains detailed information about the error that occurred.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides specific information about an error that occurred.
type ErrorDetail struct {
	// Type is the category of error (e.g., "invalid_request_error").
	Type string `json:"type"`

	// Message is a human-readable message providing more details about the error.
	Message string `json:"message"`
}

// Executor is the backend capability the handlers depend on.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (executor.Response, error)
	ExecuteStream(ctx context.Context, req executor.Request) (<-chan executor.StreamChunk, error)
	CountTokens(ctx context.Context, req executor.Request) (executor.Response, error)
}

// BaseAPIHandler contains the dependencies shared by the API handlers.
type BaseAPIHandler struct {
	// Executor performs backend calls.
	Executor Executor

	// Cfg holds the current application configuration.
	Cfg *config.Holder
}

// NewBaseAPIHandlers creates a new API handlers instance.
func NewBaseAPIHandlers(cfg *config.Holder, exec Executor) *BaseAPIHandler {
	if cfg == nil {
		cfg = config.NewHolder(config.Default())
	}
	return &BaseAPIHandler{Executor: exec, Cfg: cfg}
}

// Config returns the current configuration.
func (h *BaseAPIHandler) Config() *config.Config {
	if h == nil {
		return config.Default()
	}
	return h.Cfg.Load()
}

// GetContextWithCancel derives a backend call context from the request. It
// is cancelled when the client goes away or the returned func is called.
func (h *BaseAPIHandler) GetContextWithCancel(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(c.Request.Context())
}

// APIKeyFromRequest extracts the caller credential from x-api-key or an
// "Authorization: Bearer" header, in that order.
func APIKeyFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if key := strings.TrimSpace(r.Header.Get("x-api-key")); key != "" {
		return key, true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if key := strings.TrimSpace(auth[len("Bearer "):]); key != "" {
			return key, true
		}
	}
	return "", false
}

// WriteErrorResponse writes err as a Claude error envelope with its status.
func (h *BaseAPIHandler) WriteErrorResponse(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr == nil {
		return
	}
	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", appErr)
	} else {
		log.Debugf("request rejected: %v", appErr)
	}
	c.Data(appErr.StatusCode(), "application/json", appErr.ClaudeEnvelope())
}

// SetSSEHeaders prepares the response for an event stream.
func SetSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// ForwardStream copies stream records to the client, flushing after each
// one. A chunk carrying an error ends the stream with a single error event.
// It returns when the stream closes or the client disconnects.
func (h *BaseAPIHandler) ForwardStream(c *gin.Context, flusher http.Flusher, cancel context.CancelFunc, stream <-chan executor.StreamChunk) {
	defer cancel()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			if chunk.Err != nil {
				WriteSSEError(c.Writer, apperrors.StreamTransportError(chunk.Err))
				flusher.Flush()
				return
			}
			if _, err := c.Writer.Write(chunk.Payload); err != nil {
				log.Debugf("stream write failed: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
