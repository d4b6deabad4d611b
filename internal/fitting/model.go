package fitting

import (
	"fmt"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// CandidateModel is one parametric curve the engine can estimate against a
// measurement series. Estimate performs bounded least squares and returns
// named parameters; Predict evaluates the curve so the engine can score
// goodness of fit uniformly across models. Parameter names come from the
// declared ModelSpec, pinned at definition load.
type CandidateModel interface {
	Name() protocol.ModelName
	Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error)
	Predict(params map[string]float64, x float64) float64
}

// modelFor resolves a declared candidate by name. Unknown names are a
// configuration fault the registry rejects at load, so hitting the default
// branch here means a definition bypassed validation.
func modelFor(spec protocol.ModelSpec) (CandidateModel, error) {
	switch spec.Name {
	case protocol.ModelCosineLoss:
		return &CosineLossModel{}, nil
	case protocol.ModelFresnel:
		return &FresnelModel{
			Iterations: defaultScalarIterations,
			Tolerance:  defaultScalarTolerance,
		}, nil
	case protocol.ModelPolynomial:
		return &PolynomialModel{}, nil
	case protocol.ModelLinear:
		return &LinearModel{}, nil
	case protocol.ModelExpDecay:
		return &ExpDecayModel{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownModel, spec.Name)
	}
}
