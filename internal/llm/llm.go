package llm

import (
	"context"
	"errors"
)

// ErrCompletion marks any failure of the external completion service:
// transport errors, non-2xx responses, timeouts, or empty choices.
var ErrCompletion = errors.New("completion failed")

type CompletionRequest struct {
	System string
	User   string
}

// Client is the text-completion capability consumed by the generation and
// synthesis stages. Implementations must honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
