// Package normalize orchestrates the lead normalization pipeline: sanitize
// untrusted context, query the model, merge against ground truth, persist
// the canonical record, and leave an audit trail.
package normalize

import "context"

// TokenUsage mirrors the provider's token accounting.
type TokenUsage struct {
	InputTokens  int32 `json:"inputTokens"`
	OutputTokens int32 `json:"outputTokens"`
	TotalTokens  int32 `json:"totalTokens"`
}

// LLMRequest is a single-turn completion request. System carries trusted
// instructions; Prompt carries the assembled user turn including the fenced
// untrusted blocks.
type LLMRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// LLMResponse is the provider-agnostic completion result.
type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// LLMClient produces completions. Implementations must not retain or log
// the prompt, which can contain masked but still sensitive lead context.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
