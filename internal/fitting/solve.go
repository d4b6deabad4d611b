package fitting

import (
	"fmt"
	"math"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultScalarIterations = 200
	defaultScalarTolerance  = 1e-10
)

// linearLeastSquares solves y = slope*x + intercept in closed form from the
// normal equations. A zero-variance x axis is singular.
func linearLeastSquares(x, y []float64) (slope, intercept float64, err error) {
	n := float64(len(x))
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0, fmt.Errorf("%w: %d paired points", core.ErrInsufficientData, len(x))
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0, fmt.Errorf("%w: zero variance in independent values", core.ErrSingularFit)
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, nil
}

// rSquared computes the coefficient of determination. A constant observed
// series has no variance to explain and cannot discriminate between models.
func rSquared(observed, predicted []float64) (float64, error) {
	if len(observed) != len(predicted) || len(observed) == 0 {
		return 0, fmt.Errorf("%w: mismatched series", core.ErrInsufficientData)
	}

	var mean float64
	for _, v := range observed {
		mean += v
	}
	mean /= float64(len(observed))

	var ssTotal, ssResidual float64
	for i := range observed {
		ssTotal += (observed[i] - mean) * (observed[i] - mean)
		ssResidual += (observed[i] - predicted[i]) * (observed[i] - predicted[i])
	}
	if ssTotal == 0 {
		return 0, fmt.Errorf("%w: constant observed series", core.ErrSingularFit)
	}
	return 1 - ssResidual/ssTotal, nil
}

// fitDiagnostics summarizes residual quality: RMSE over residual degrees of
// freedom and the regression F-test p-value where defined
func fitDiagnostics(observed, predicted []float64, paramCount int) *analysis.FitDiagnostics {
	n := len(observed)
	dof := n - paramCount
	diag := &analysis.FitDiagnostics{DegreesOfFreedom: dof}
	if dof <= 0 {
		return diag
	}

	var mean float64
	for _, v := range observed {
		mean += v
	}
	mean /= float64(n)

	var ssTotal, ssResidual float64
	for i := range observed {
		ssTotal += (observed[i] - mean) * (observed[i] - mean)
		ssResidual += (observed[i] - predicted[i]) * (observed[i] - predicted[i])
	}
	diag.RMSE = math.Sqrt(ssResidual / float64(dof))

	if ssResidual > 0 && ssTotal > ssResidual {
		f := ((ssTotal - ssResidual) / float64(paramCount)) / (ssResidual / float64(dof))
		fDist := distuv.F{D1: float64(paramCount), D2: float64(dof)}
		pValue := 1 - fDist.CDF(f)
		diag.PValue = &pValue
	}
	return diag
}

// clampToBounds forces each estimated parameter into its declared range
func clampToBounds(params map[string]float64, spec protocol.ModelSpec) {
	for name, value := range params {
		bounds, ok := spec.Bounds[name]
		if !ok {
			continue
		}
		if value < bounds.Min {
			params[name] = bounds.Min
		} else if value > bounds.Max {
			params[name] = bounds.Max
		}
	}
}

// goldenSectionMin minimizes a unimodal objective over [lo, hi]
func goldenSectionMin(objective func(float64) float64, lo, hi, tolerance float64, maxIterations int) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	ratio := (math.Sqrt(5) - 1) / 2

	a, b := lo, hi
	c := b - ratio*(b-a)
	d := a + ratio*(b-a)
	fc, fd := objective(c), objective(d)

	for i := 0; i < maxIterations && b-a > tolerance; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - ratio*(b-a)
			fc = objective(c)
		} else {
			a, c, fc = c, d, fd
			d = a + ratio*(b-a)
			fd = objective(d)
		}
	}
	return (a + b) / 2
}

// sumSquaredResiduals scores one parameterization of a model
func sumSquaredResiduals(x, y []float64, predict func(float64) float64) float64 {
	var sse float64
	for i := range x {
		r := y[i] - predict(x[i])
		sse += r * r
	}
	return sse
}
