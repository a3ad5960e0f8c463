// Package errors defines the request-scoped error kinds of the bridge and
// renders them in the Claude error envelope.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/sjson"
)

// Error codes.
const (
	CodeInvalidModel         = "invalid_model"
	CodeMissingCredential    = "missing_credential"
	CodeMalformedRequestBody = "malformed_request_body"
	CodeBackendError         = "backend_error"
	CodeStreamTransportError = "stream_transport_error"
	CodeNotFound             = "not_found"
)

// Claude error types carried in the envelope.
const (
	TypeInvalidRequest = "invalid_request_error"
	TypeAuthentication = "authentication_error"
	TypeAPI            = "api_error"
	TypeNotFound       = "not_found"
)

// AppError represents a structured application error.
type AppError struct {
	// HTTPStatusCode is the HTTP status code to return.
	HTTPStatusCode int `json:"-"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Type is the Claude error type of the envelope.
	Type string `json:"type"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Details provides additional error context (optional).
	Details map[string]interface{} `json:"details,omitempty"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the error.
func (e *AppError) StatusCode() int {
	return e.HTTPStatusCode
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// ClaudeEnvelope renders {"type":"error","error":{"type":...,"message":...}}.
func (e *AppError) ClaudeEnvelope() []byte {
	out := []byte(`{"type":"error","error":{"type":"","message":""}}`)
	errType := e.Type
	if errType == "" {
		errType = TypeAPI
	}
	out, _ = sjson.SetBytes(out, "error.type", errType)
	out, _ = sjson.SetBytes(out, "error.message", e.Message)
	return out
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Type:           typeForStatus(statusCode),
		Message:        message,
		Err:            err,
	}
}

func typeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TypeInvalidRequest
	case http.StatusUnauthorized:
		return TypeAuthentication
	case http.StatusNotFound:
		return TypeNotFound
	default:
		return TypeAPI
	}
}

// InvalidModel reports a model outside the accepted family.
func InvalidModel(model string) *AppError {
	return &AppError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           CodeInvalidModel,
		Type:           TypeInvalidRequest,
		Message:        fmt.Sprintf(`Model "%s" is not a Claude model. Only Claude models are supported.`, model),
	}
}

// MissingCredential reports a request without an API key.
func MissingCredential() *AppError {
	return &AppError{
		HTTPStatusCode: http.StatusUnauthorized,
		Code:           CodeMissingCredential,
		Type:           TypeAuthentication,
		Message:        "Missing API key",
	}
}

// MalformedRequestBody reports a body that cannot be read or parsed.
func MalformedRequestBody(err error) *AppError {
	msg := "Invalid request body"
	if err != nil {
		msg = fmt.Sprintf("Invalid request body: %v", err)
	}
	return &AppError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           CodeMalformedRequestBody,
		Type:           TypeInvalidRequest,
		Message:        msg,
		Err:            err,
	}
}

// BackendError surfaces a non-success backend response with its status and
// body verbatim.
func BackendError(status int, body string) *AppError {
	if status <= 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		HTTPStatusCode: status,
		Code:           CodeBackendError,
		Type:           TypeAPI,
		Message:        body,
	}
}

// StreamTransportError reports a failure while reading the backend stream.
func StreamTransportError(err error) *AppError {
	msg := "stream transport error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		HTTPStatusCode: http.StatusInternalServerError,
		Code:           CodeStreamTransportError,
		Type:           TypeAPI,
		Message:        msg,
		Err:            err,
	}
}

// NotFound reports an unknown route.
func NotFound(method, path string) *AppError {
	return &AppError{
		HTTPStatusCode: http.StatusNotFound,
		Code:           CodeNotFound,
		Type:           TypeNotFound,
		Message:        fmt.Sprintf("Endpoint %s %s not found", method, path),
	}
}

type statusCoder interface {
	StatusCode() int
}

// FromError maps any error onto an AppError. Errors that expose a status code
// become backend errors carrying their message verbatim; anything else is a
// 500 api_error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return BackendError(sc.StatusCode(), err.Error())
	}
	return New(http.StatusInternalServerError, CodeStreamTransportError, err.Error(), err)
}
