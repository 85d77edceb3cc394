package dealscout

import "github.com/kailas-cloud/dealscout/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation              = domain.ErrValidation
	ErrRetrieval               = domain.ErrRetrieval
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrGenerationProviderError = domain.ErrGenerationProviderError
	ErrIndexUnavailable        = domain.ErrIndexUnavailable
	ErrVectorDimMismatch       = domain.ErrVectorDimMismatch
)

// ValidationError names the offending criteria field. Use errors.As() to extract it.
type ValidationError = domain.ValidationError
