package fitting

import (
	"pvqc/domain/protocol"
)

// LinearModel fits the degradation trend line y = slope*x + intercept
type LinearModel struct{}

func (m *LinearModel) Name() protocol.ModelName { return protocol.ModelLinear }

func (m *LinearModel) Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error) {
	slope, intercept, err := linearLeastSquares(x, y)
	if err != nil {
		return nil, err
	}
	params := map[string]float64{"slope": slope, "intercept": intercept}
	clampToBounds(params, spec)
	return params, nil
}

func (m *LinearModel) Predict(params map[string]float64, x float64) float64 {
	return params["slope"]*x + params["intercept"]
}
