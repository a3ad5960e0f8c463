package claude

import (
	. "github.com/router-for-me/claudebridge/internal/constant"
	translator "github.com/router-for-me/claudebridge/sdk/translator"
)

func init() {
	translator.Register(
		Claude,
		OpenAI,
		ConvertClaudeRequestToOpenAI,
		translator.ResponseTransform{
			Stream:      ConvertOpenAIResponseToClaude,
			NonStream:   ConvertOpenAIResponseToClaudeNonStream,
			StreamStart: StartOpenAIStreamToClaude,
			StreamEnd:   FinishOpenAIStreamToClaude,
			TokenCount:  ClaudeTokenCount,
		},
	)
}
