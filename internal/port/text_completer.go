package port

import "context"

// CompletionInput carries a single prompt and its output budget.
type CompletionInput struct {
	Prompt          string
	MaxOutputTokens int
}

// CompletionOutput contains the raw text returned by a completion provider.
type CompletionOutput struct {
	Text         string
	ModelUsed    string
	FinishReason string
}

// TextCompleter abstracts a hosted text-completion model.
// CheckCredential reports a missing API key without touching the network.
type TextCompleter interface {
	CheckCredential() error
	Complete(ctx context.Context, input CompletionInput) (*CompletionOutput, error)
}
