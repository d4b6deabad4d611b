package ports

import (
	"context"

	"pvqc/domain/core"
)

// DefectScorer is the AI/ML scoring collaborator contract. The engine
// consumes the score as one opaque numeric input; model internals stay
// entirely on the other side of this interface. ok=false means no score
// exists for the sample, which is not an error.
type DefectScorer interface {
	Score(ctx context.Context, sampleID core.SampleID) (score float64, ok bool, err error)
}
