package fitting

import (
	"fmt"
	"math"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// ExpDecayModel fits y = a*exp(b*x), log-linearized to ln(y) = ln(a) + b*x.
// The transform requires a strictly positive response, which normalized
// power always satisfies short of total module failure.
type ExpDecayModel struct{}

func (m *ExpDecayModel) Name() protocol.ModelName { return protocol.ModelExpDecay }

func (m *ExpDecayModel) Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error) {
	logY := make([]float64, len(y))
	for i, v := range y {
		if v <= 0 {
			return nil, fmt.Errorf("%w: non-positive response %g at point %d", core.ErrSingularFit, v, i)
		}
		logY[i] = math.Log(v)
	}

	slope, intercept, err := linearLeastSquares(x, logY)
	if err != nil {
		return nil, err
	}

	params := map[string]float64{"a": math.Exp(intercept), "b": slope}
	clampToBounds(params, spec)
	return params, nil
}

func (m *ExpDecayModel) Predict(params map[string]float64, x float64) float64 {
	return params["a"] * math.Exp(params["b"]*x)
}
