package enrichment

import (
	"context"

	"github.com/kailas-cloud/dealscout/internal/domain"
)

// Generator classifies a deal from a prompt.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}
