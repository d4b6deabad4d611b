package fitting

import (
	"fmt"
	"math"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// minCosine floors cos(theta) so near-grazing angles cannot blow up the
// secant term. Points beyond ~89.9 degrees carry no usable signal.
const minCosine = 1e-3

// CosineLossModel is the ASHRAE single-parameter incidence-angle modifier:
//
//	IAM(theta) = 1 - b0*(1/cos(theta) - 1)
//
// Linear in b0, so the bounded least-squares estimate is closed form.
// Angles are degrees.
type CosineLossModel struct{}

func (m *CosineLossModel) Name() protocol.ModelName { return protocol.ModelCosineLoss }

func (m *CosineLossModel) Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error) {
	var sumUU, sumUD float64
	usable := 0
	for i := range x {
		cos := math.Cos(x[i] * math.Pi / 180)
		if cos < minCosine {
			continue
		}
		u := 1/cos - 1
		sumUU += u * u
		sumUD += u * (1 - y[i])
		usable++
	}
	if usable < 2 {
		return nil, fmt.Errorf("%w: %d usable angles below grazing", core.ErrInsufficientData, usable)
	}
	if sumUU == 0 {
		return nil, fmt.Errorf("%w: sweep has no off-normal angles", core.ErrSingularFit)
	}

	params := map[string]float64{"b0": sumUD / sumUU}
	clampToBounds(params, spec)
	return params, nil
}

func (m *CosineLossModel) Predict(params map[string]float64, x float64) float64 {
	cos := math.Cos(x * math.Pi / 180)
	if cos < minCosine {
		cos = minCosine
	}
	return 1 - params["b0"]*(1/cos-1)
}
