package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed or out-of-range request input.
	ErrValidation = errors.New("validation failed")
	// ErrRetrieval signals a failure while embedding the query or searching the index.
	ErrRetrieval = errors.New("candidate retrieval failed")
	// ErrSynthesis signals a failure while generating the narrative summary.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a text-generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrIndexUnavailable signals that the vector index could not serve a request.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Retrieval stages reported by RetrievalError.
const (
	StageEmbed  = "embed"
	StageSearch = "search"
)

// RetrievalError wraps an embedding or index failure with the stage it happened in.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrRetrieval.Error(), e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrieval, e.Err} }

// NewRetrievalError wraps err as a retrieval failure at the given stage.
func NewRetrievalError(stage string, err error) error {
	return &RetrievalError{Stage: stage, Err: err}
}

// SynthesisError wraps a text-generation failure.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSynthesis.Error(), e.Err)
}

func (e *SynthesisError) Unwrap() []error { return []error{ErrSynthesis, e.Err} }

// NewSynthesisError wraps err as a synthesis failure.
func NewSynthesisError(err error) error {
	return &SynthesisError{Err: err}
}
