package fitting

import (
	"fmt"

	"pvqc/domain/core"
	"pvqc/domain/protocol"

	"gonum.org/v1/gonum/mat"
)

// PolynomialModel fits y = c0 + c1*x + ... + cN*x^N where the declared
// parameter list fixes the degree. The Vandermonde system is solved in the
// least-squares sense via QR.
type PolynomialModel struct{}

func (m *PolynomialModel) Name() protocol.ModelName { return protocol.ModelPolynomial }

func (m *PolynomialModel) Estimate(x, y []float64, spec protocol.ModelSpec) (map[string]float64, error) {
	coefCount := len(spec.Params)
	if len(x) < coefCount {
		return nil, fmt.Errorf("%w: %d points for %d coefficients", core.ErrInsufficientData, len(x), coefCount)
	}

	vandermonde := mat.NewDense(len(x), coefCount, nil)
	for i, xi := range x {
		pow := 1.0
		for j := 0; j < coefCount; j++ {
			vandermonde.Set(i, j, pow)
			pow *= xi
		}
	}
	rhs := mat.NewVecDense(len(y), y)

	var coef mat.VecDense
	if err := coef.SolveVec(vandermonde, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularFit, err)
	}

	params := make(map[string]float64, coefCount)
	for j, name := range spec.Params {
		params[name] = coef.AtVec(j)
	}
	clampToBounds(params, spec)
	return params, nil
}

func (m *PolynomialModel) Predict(params map[string]float64, x float64) float64 {
	sum, pow := 0.0, 1.0
	for j := 0; ; j++ {
		c, ok := params[fmt.Sprintf("c%d", j)]
		if !ok {
			break
		}
		sum += c * pow
		pow *= x
	}
	return sum
}
