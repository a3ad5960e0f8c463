package util

import "strings"

// UpstreamModelName namespaces a front model name for the backend as
// "prefix/model". An empty prefix leaves the name unchanged.
func UpstreamModelName(prefix, model string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return model
	}
	return prefix + "/" + model
}

// IsModelInFamily reports whether model contains the family token, ignoring
// case. An empty family accepts every model.
func IsModelInFamily(model, family string) bool {
	family = strings.TrimSpace(family)
	if family == "" {
		return true
	}
	return strings.Contains(strings.ToLower(model), strings.ToLower(family))
}
