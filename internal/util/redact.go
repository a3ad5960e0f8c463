// Package util holds small helpers shared by the server, handlers and executor.
package util

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const redactedValue = "[REDACTED]"

// RedactSensitiveJSON replaces the values of credential-looking keys in a
// JSON payload. Payloads that are not JSON objects or arrays come back as is.
func RedactSensitiveJSON(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() && !root.IsArray() {
		return body
	}
	var paths []string
	collectSensitivePaths(root, "", &paths)
	out := body
	for _, p := range paths {
		if updated, err := sjson.SetBytes(out, p, redactedValue); err == nil {
			out = updated
		}
	}
	return out
}

func collectSensitivePaths(node gjson.Result, prefix string, paths *[]string) {
	i := 0
	node.ForEach(func(key, value gjson.Result) bool {
		var path string
		if node.IsArray() {
			path = joinPath(prefix, strconv.Itoa(i))
			i++
		} else {
			path = joinPath(prefix, escapePathKey(key.String()))
			if isSensitiveKey(key.String()) {
				*paths = append(*paths, path)
				return true
			}
		}
		if value.IsObject() || value.IsArray() {
			collectSensitivePaths(value, path, paths)
		}
		return true
	})
}

func joinPath(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}

// escapePathKey escapes characters with meaning in gjson/sjson paths.
func escapePathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(k, "authorization"),
		strings.Contains(k, "cookie"),
		strings.Contains(k, "api_key"),
		strings.Contains(k, "api-key"),
		strings.Contains(k, "apikey"),
		strings.Contains(k, "secret"),
		strings.Contains(k, "token") && !strings.HasSuffix(k, "_tokens"),
		strings.Contains(k, "password"):
		return true
	default:
		return false
	}
}

// MaskSecret keeps the first and last four characters of a credential.
func MaskSecret(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskSensitiveQuery redacts credential-looking query parameters.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	changed := false
	for k := range values {
		if isSensitiveKey(k) || strings.EqualFold(k, "key") {
			values[k] = []string{redactedValue}
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
