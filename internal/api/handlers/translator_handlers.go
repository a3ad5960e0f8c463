// Package handlers provides HTTP handlers for the API server.
package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claudebridge/sdk/translator"
)

// TranslatorHandler exposes the registered translation directions.
type TranslatorHandler struct {
	registry *translator.Registry
}

// NewTranslatorHandler creates a handler over registry, or over the default
// registry when registry is nil.
func NewTranslatorHandler(registry *translator.Registry) *TranslatorHandler {
	if registry == nil {
		registry = translator.Default()
	}
	return &TranslatorHandler{registry: registry}
}

// TranslationsMatrixResponse represents the response for the translations matrix endpoint.
type TranslationsMatrixResponse struct {
	Matrix map[string][]string `json:"matrix"`
	Pairs  []string            `json:"pairs"`
	Total  int                 `json:"total_translations"`
}

// GetTranslationsMatrix lists every registered direction.
// GET /v1/translations
func (h *TranslatorHandler) GetTranslationsMatrix(c *gin.Context) {
	pairs := h.registry.Pairs()
	matrix := make(map[string][]string)
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "->")
		if !ok {
			continue
		}
		matrix[from] = append(matrix[from], to)
	}
	if pairs == nil {
		pairs = []string{}
	}
	c.JSON(http.StatusOK, TranslationsMatrixResponse{
		Matrix: matrix,
		Pairs:  pairs,
		Total:  len(pairs),
	})
}

// CheckTranslationResponse represents the response for checking a specific translation.
type CheckTranslationResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Request   bool   `json:"request"`
	Response  bool   `json:"response"`
	Supported bool   `json:"supported"`
}

// CheckTranslation reports whether from->to is registered.
// GET /v1/translations/check?from=X&to=Y
func (h *TranslatorHandler) CheckTranslation(c *gin.Context) {
	from := translator.FromString(c.Query("from"))
	to := translator.FromString(c.Query("to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing required query parameters",
			"message": "both 'from' and 'to' query parameters are required",
		})
		return
	}

	resp := CheckTranslationResponse{
		From:     from.String(),
		To:       to.String(),
		Request:  h.registry.HasRequestTranslator(from, to),
		Response: h.registry.HasResponseTransformer(from, to),
	}
	resp.Supported = resp.Request && resp.Response
	c.JSON(http.StatusOK, resp)
}

// ValidateResponse is returned by ValidatePayload.
type ValidateResponse struct {
	Format string `json:"format"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// ValidatePayload checks the request body against a format's request schema.
// Without a format query the format is detected from the body.
// POST /v1/translations/validate?format=claude
func (h *TranslatorHandler) ValidatePayload(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body", "message": err.Error()})
		return
	}

	format := translator.FromString(c.Query("format"))
	if format == "" || format == "auto" {
		format = translator.DetectFormat(body)
	}
	if !translator.IsKnownFormat(format) {
		c.JSON(http.StatusOK, ValidateResponse{Format: format.String(), Error: "unknown or undetectable format"})
		return
	}

	resp := ValidateResponse{Format: format.String(), Valid: true}
	if errValidate := translator.ValidateSchema(format, body); errValidate != nil {
		resp.Valid = false
		resp.Error = errValidate.Error()
	}
	c.JSON(http.StatusOK, resp)
}
