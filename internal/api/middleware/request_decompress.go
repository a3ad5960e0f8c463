package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
	apperrors "github.com/router-for-me/claudebridge/internal/errors"
)

// maxDecompressedBytes caps a decoded request body.
const maxDecompressedBytes = 128 << 20 // 128MiB

// RequestDecompressionMiddleware decodes gzip, br and zstd request bodies.
// net/http does not decode request bodies, so handlers would otherwise see
// compressed bytes. Failures are answered with a Claude error envelope.
func RequestDecompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		enc := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
		if enc == "" || enc == "identity" {
			c.Next()
			return
		}

		var (
			reader io.Reader
			closer func()
		)
		switch enc {
		case "gzip", "x-gzip":
			gzr, err := gzip.NewReader(c.Request.Body)
			if err != nil {
				abortDecode(c, http.StatusBadRequest, "invalid gzip request body")
				return
			}
			reader, closer = gzr, func() { _ = gzr.Close() }
		case "br":
			reader = brotli.NewReader(c.Request.Body)
		case "zstd":
			dec, err := zstd.NewReader(c.Request.Body)
			if err != nil {
				abortDecode(c, http.StatusBadRequest, "invalid zstd request body")
				return
			}
			reader, closer = dec, dec.Close
		default:
			abortDecode(c, http.StatusUnsupportedMediaType, "unsupported content encoding: "+enc)
			return
		}
		if closer != nil {
			defer closer()
		}

		decoded, err := io.ReadAll(io.LimitReader(reader, maxDecompressedBytes+1))
		if err != nil {
			abortDecode(c, http.StatusBadRequest, "failed to decompress "+enc+" request body")
			return
		}
		if int64(len(decoded)) > maxDecompressedBytes {
			abortDecode(c, http.StatusRequestEntityTooLarge, "decompressed request body too large")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(decoded))
		c.Request.ContentLength = int64(len(decoded))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}

func abortDecode(c *gin.Context, status int, message string) {
	appErr := apperrors.New(status, apperrors.CodeMalformedRequestBody, message, nil)
	appErr.Type = apperrors.TypeInvalidRequest
	c.Data(status, "application/json", appErr.ClaudeEnvelope())
	c.Abort()
}
