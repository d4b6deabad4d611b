package fitting

import (
	"fmt"
	"math"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// FresnelModel is the Martin-Ruiz air-glass reflection form:
//
//	IAM(theta) = (1 - exp(-cos(theta)/a_r)) / (1 - exp(-1/a_r))
//
// Nonlinear in the angular-losses coefficient a_r, but the residual surface
// over the physical range is unimodal, so a golden-section search within the
// declared bounds is sufficient. Angles are degrees.
type FresnelModel struct {
	Iterations int
	Tolerance  float64
}

func (m *FresnelModel) Name() protocol.ModelName { return protocol.ModelFresnel }

func (m *FresnelModel) Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error) {
	if len(x) < 2 {
		return nil, fmt.Errorf("%w: %d points", core.ErrInsufficientData, len(x))
	}

	bounds, ok := spec.Bounds["a_r"]
	if !ok {
		return nil, fmt.Errorf("%w: fresnel bounds missing a_r", core.ErrSingularFit)
	}
	lo := bounds.Min
	if lo <= 0 {
		lo = 1e-6
	}
	hi := bounds.Max
	if hi <= lo {
		return nil, fmt.Errorf("%w: empty a_r search interval [%g, %g]", core.ErrSingularFit, lo, hi)
	}

	objective := func(ar float64) float64 {
		return sumSquaredResiduals(x, y, func(theta float64) float64 {
			return fresnelIAM(theta, ar)
		})
	}
	ar := goldenSectionMin(objective, lo, hi, m.Tolerance, m.Iterations)
	if math.IsNaN(objective(ar)) {
		return nil, fmt.Errorf("%w: residuals not finite at a_r=%g", core.ErrSingularFit, ar)
	}

	params := map[string]float64{"a_r": ar}
	clampToBounds(params, spec)
	return params, nil
}

func (m *FresnelModel) Predict(params map[string]float64, x float64) float64 {
	return fresnelIAM(x, params["a_r"])
}

func fresnelIAM(thetaDeg, ar float64) float64 {
	if ar <= 0 {
		ar = 1e-6
	}
	cos := math.Cos(thetaDeg * math.Pi / 180)
	if cos < 0 {
		cos = 0
	}
	return (1 - math.Exp(-cos/ar)) / (1 - math.Exp(-1/ar))
}
