package classify

import "context"

// CompletionRequest is the provider-neutral shape of one model call.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Backend is a text-completion provider. Implementations live under
// providers/ and must be safe for concurrent use.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
