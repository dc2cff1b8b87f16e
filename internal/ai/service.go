package ai

import (
	"context"
	"encoding/json"
)

// Prompt is the {system, user} pair every LLM invocation is built from.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Service is the single call point for LLM interactions. Complete returns
// the extracted JSON payload of the response, or one of:
//
//   - *FormatError when no parseable JSON survived the retries (the raw
//     response text travels on the error for reflection),
//   - *FallbackError when transport attempts are exhausted (engines switch
//     to their rule-based path),
//   - the context error when cancelled.
type Service interface {
	Complete(ctx context.Context, operation string, p Prompt) (json.RawMessage, error)
	Enabled() bool
}

// Disabled is the Service used when no API key is configured. Every call
// reports ErrAIDisabled, which IsFallback treats as the local-rules signal.
type Disabled struct{}

// NewDisabled returns the no-op service.
func NewDisabled() Disabled { return Disabled{} }

func (Disabled) Complete(ctx context.Context, operation string, p Prompt) (json.RawMessage, error) {
	return nil, ErrAIDisabled
}

func (Disabled) Enabled() bool { return false }
