// Package claude serves the Anthropic Messages API surface of the bridge.
package claude

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/router-for-me/claudebridge/internal/errors"
	"github.com/router-for-me/claudebridge/internal/runtime/executor"
	"github.com/router-for-me/claudebridge/internal/util"
	"github.com/router-for-me/claudebridge/sdk/api/handlers"
	sdktranslator "github.com/router-for-me/claudebridge/sdk/translator"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ClaudeCodeAPIHandler contains the handlers for Claude API endpoints.
type ClaudeCodeAPIHandler struct {
	*handlers.BaseAPIHandler
}

// NewClaudeCodeAPIHandler creates a new Claude API handlers instance.
func NewClaudeCodeAPIHandler(apiHandlers *handlers.BaseAPIHandler) *ClaudeCodeAPIHandler {
	return &ClaudeCodeAPIHandler{BaseAPIHandler: apiHandlers}
}

// HandlerType returns the wire format served by this handler.
func (h *ClaudeCodeAPIHandler) HandlerType() string {
	return sdktranslator.FormatClaude.String()
}

// ClaudeMessages handles POST /v1/messages.
func (h *ClaudeCodeAPIHandler) ClaudeMessages(c *gin.Context) {
	rawJSON, ok := h.readBody(c)
	if !ok {
		return
	}

	apiKey, ok := handlers.APIKeyFromRequest(c.Request)
	if !ok {
		h.WriteErrorResponse(c, apperrors.MissingCredential())
		return
	}

	modelName := gjson.GetBytes(rawJSON, "model").String()
	if !util.IsModelInFamily(modelName, h.Config().ModelFamily) {
		h.WriteErrorResponse(c, apperrors.InvalidModel(modelName))
		return
	}

	if err := sdktranslator.ValidateClaudeRequest(rawJSON); err != nil {
		h.WriteErrorResponse(c, apperrors.MalformedRequestBody(err))
		return
	}

	req := executor.Request{Model: modelName, Payload: rawJSON, APIKey: apiKey}
	if gjson.GetBytes(rawJSON, "stream").Type == gjson.True {
		h.handleStreamingResponse(c, req)
		return
	}
	h.handleNonStreamingResponse(c, req)
}

// ClaudeCountTokens handles POST /v1/messages/count_tokens.
func (h *ClaudeCodeAPIHandler) ClaudeCountTokens(c *gin.Context) {
	rawJSON, ok := h.readBody(c)
	if !ok {
		return
	}

	ctx, cancel := h.GetContextWithCancel(c)
	defer cancel()

	resp, err := h.Executor.CountTokens(ctx, executor.Request{
		Model:   gjson.GetBytes(rawJSON, "model").String(),
		Payload: rawJSON,
	})
	if err != nil {
		h.WriteErrorResponse(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp.Payload)
}

// readBody returns the request body when it is a JSON object and writes a
// malformed_request_body error otherwise.
func (h *ClaudeCodeAPIHandler) readBody(c *gin.Context) ([]byte, bool) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		h.WriteErrorResponse(c, apperrors.MalformedRequestBody(err))
		return nil, false
	}
	if !gjson.ValidBytes(rawJSON) {
		h.WriteErrorResponse(c, apperrors.MalformedRequestBody(sdktranslator.ErrInvalidJSON))
		return nil, false
	}
	if !gjson.ParseBytes(rawJSON).IsObject() {
		h.WriteErrorResponse(c, apperrors.MalformedRequestBody(sdktranslator.ErrInvalidSchema))
		return nil, false
	}
	return rawJSON, true
}

func (h *ClaudeCodeAPIHandler) handleNonStreamingResponse(c *gin.Context, req executor.Request) {
	ctx, cancel := h.GetContextWithCancel(c)
	defer cancel()

	resp, err := h.Executor.Execute(ctx, req)
	if err != nil {
		h.WriteErrorResponse(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp.Payload)
}

// handleStreamingResponse answers with an event stream. Failures before the
// backend accepts the request still produce a 200 stream holding a single
// error event.
func (h *ClaudeCodeAPIHandler) handleStreamingResponse(c *gin.Context, req executor.Request) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.WriteErrorResponse(c, apperrors.New(http.StatusInternalServerError, apperrors.CodeStreamTransportError, "Streaming not supported", nil))
		return
	}

	ctx, cancel := h.GetContextWithCancel(c)
	stream, err := h.Executor.ExecuteStream(ctx, req)

	handlers.SetSSEHeaders(c)
	c.Status(http.StatusOK)

	if err != nil {
		cancel()
		appErr := apperrors.FromError(err)
		log.Debugf("stream handshake failed: %v", appErr)
		handlers.WriteSSEError(c.Writer, appErr)
		flusher.Flush()
		return
	}
	h.ForwardStream(c, flusher, cancel, stream)
}
