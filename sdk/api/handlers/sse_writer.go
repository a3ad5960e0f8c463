package handlers

import (
	"io"

	apperrors "github.com/router-for-me/claudebridge/internal/errors"
	"github.com/router-for-me/claudebridge/internal/schema"
	"github.com/router-for-me/claudebridge/internal/sse"
)

// WriteSSEError writes appErr as a Claude "error" event.
func WriteSSEError(w io.Writer, appErr *apperrors.AppError) {
	if w == nil || appErr == nil {
		return
	}
	_ = sse.WriteEvent(w, schema.EventError, appErr.ClaudeEnvelope())
}

// WriteSSEEvent writes one named event.
func WriteSSEEvent(w io.Writer, name string, data []byte) error {
	if w == nil || len(data) == 0 {
		return nil
	}
	return sse.WriteEvent(w, name, data)
}
