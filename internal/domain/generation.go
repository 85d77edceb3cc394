package domain

import "context"

// GenerationRequest is a single-turn completion request.
type GenerationRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32 // zero requests deterministic sampling
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// GenerationResult carries the completion text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces free text from a prompt. Used by the synthesizer and the enrichment stage.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
