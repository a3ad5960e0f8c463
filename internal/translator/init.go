// Package translator registers the built-in format translators with the SDK
// registry. Import it for side effects.
package translator

import (
	_ "github.com/router-for-me/claudebridge/internal/translator/openai/claude"
)
