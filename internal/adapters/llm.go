package adapters

import (
	"context"

	"github.com/iamwavecut/prime/internal/adapters/llm"
)

// LLM defines the interface for language model operations
type LLM interface {
	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error)
}

// Vision answers a prompt about an image or video payload.
type Vision interface {
	// DescribeMedia returns the raw model answer. Safety refusals are reported
	// as errors wrapping errors.ErrContentBlocked.
	DescribeMedia(ctx context.Context, data []byte, mimeType, prompt string) (string, error)
}
