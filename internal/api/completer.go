// Package api provides direct Anthropic API integration for the
// coordination core's language-model calls.
package api

import "context"

// ChatMessage is one role-tagged message in a chat-completion request.
type ChatMessage struct {
	// Role is "system", "user", or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// CompleteOptions carries optional per-request parameters.
type CompleteOptions struct {
	// Model overrides the client's configured model when non-empty.
	Model string
	// MaxTokens caps the generated output. Zero uses the client default.
	MaxTokens int64
	// Temperature sets sampling temperature when non-nil.
	Temperature *float64
}

// ChatCompleter is the chat-completion capability consumed by the
// dispatcher. It takes an ordered list of role-tagged messages and
// returns generated text.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage, opts *CompleteOptions) (string, error)
}
