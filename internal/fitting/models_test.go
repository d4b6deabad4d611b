package fitting

import (
	"errors"
	"math"
	"testing"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// angleSweep generates 0..80 degrees in 5 degree steps with a response from
// the supplied curve plus a small alternating perturbation
func angleSweep(curve func(theta float64) float64, noise float64) (x, y []float64) {
	for theta := 0.0; theta <= 80; theta += 5 {
		x = append(x, theta)
		sign := 1.0
		if int(theta/5)%2 == 1 {
			sign = -1
		}
		y = append(y, curve(theta)+sign*noise)
	}
	return x, y
}

func cosineSpec() protocol.ModelSpec {
	return protocol.ModelSpec{
		Name:   protocol.ModelCosineLoss,
		Params: []string{"b0"},
		Bounds: map[string]protocol.ParamBounds{"b0": {Min: 0, Max: 0.3}},
	}
}

func TestCosineLossRecoversKnownParameter(t *testing.T) {
	const b0 = 0.05
	x, y := angleSweep(func(theta float64) float64 {
		return 1 - b0*(1/math.Cos(theta*math.Pi/180)-1)
	}, 0.0003)

	model := &CosineLossModel{}
	params, err := model.Estimate(x, y, cosineSpec())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if rel := math.Abs(params["b0"]-b0) / b0; rel > 0.05 {
		t.Errorf("Expected b0 within 5%% of %g, got %g (%.1f%% off)", b0, params["b0"], rel*100)
	}
}

func TestCosineLossClampsToBounds(t *testing.T) {
	// Steep loss implies b0 well above the declared maximum
	x, y := angleSweep(func(theta float64) float64 {
		return 1 - 0.5*(1/math.Cos(theta*math.Pi/180)-1)
	}, 0)

	model := &CosineLossModel{}
	params, err := model.Estimate(x, y, cosineSpec())
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if params["b0"] != 0.3 {
		t.Errorf("Expected b0 clamped to 0.3, got %g", params["b0"])
	}
}

func TestCosineLossNormalOnlySweepIsSingular(t *testing.T) {
	model := &CosineLossModel{}
	_, err := model.Estimate([]float64{0, 0, 0}, []float64{1, 1, 1}, cosineSpec())
	if err == nil {
		t.Fatal("Expected error for a sweep with no off-normal angles")
	}
	if !errors.Is(err, core.ErrSingularFit) {
		t.Errorf("Expected ErrSingularFit, got %v", err)
	}
}

func TestFresnelRecoversKnownParameter(t *testing.T) {
	const ar = 0.16
	x, y := angleSweep(func(theta float64) float64 {
		return fresnelIAM(theta, ar)
	}, 0.0003)

	model := &FresnelModel{Iterations: defaultScalarIterations, Tolerance: defaultScalarTolerance}
	spec := protocol.ModelSpec{
		Name:   protocol.ModelFresnel,
		Params: []string{"a_r"},
		Bounds: map[string]protocol.ParamBounds{"a_r": {Min: 0.05, Max: 0.4}},
	}
	params, err := model.Estimate(x, y, spec)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if rel := math.Abs(params["a_r"]-ar) / ar; rel > 0.05 {
		t.Errorf("Expected a_r within 5%% of %g, got %g", ar, params["a_r"])
	}
}

func TestPolynomialRecoversQuadratic(t *testing.T) {
	want := map[string]float64{"c0": 2.0, "c1": 0.5, "c2": -0.03}
	var x, y []float64
	for v := 0.0; v <= 10; v++ {
		x = append(x, v)
		y = append(y, want["c0"]+want["c1"]*v+want["c2"]*v*v)
	}

	model := &PolynomialModel{}
	spec := protocol.ModelSpec{
		Name:   protocol.ModelPolynomial,
		Params: []string{"c0", "c1", "c2"},
		Bounds: map[string]protocol.ParamBounds{
			"c0": {Min: -100, Max: 100},
			"c1": {Min: -100, Max: 100},
			"c2": {Min: -100, Max: 100},
		},
	}
	params, err := model.Estimate(x, y, spec)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	for name, expected := range want {
		if math.Abs(params[name]-expected) > 1e-6 {
			t.Errorf("Expected %s=%g, got %g", name, expected, params[name])
		}
	}

	if got := model.Predict(params, 4); math.Abs(got-(2.0+0.5*4-0.03*16)) > 1e-9 {
		t.Errorf("Predict at x=4 off: %g", got)
	}
}

func TestLinearRecoversTrend(t *testing.T) {
	x := []float64{0, 100, 200, 300, 400, 500}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 100 - 0.002*v
	}

	model := &LinearModel{}
	spec := protocol.ModelSpec{
		Name:   protocol.ModelLinear,
		Params: []string{"slope", "intercept"},
		Bounds: map[string]protocol.ParamBounds{
			"slope":     {Min: -1, Max: 1},
			"intercept": {Min: 0, Max: 200},
		},
	}
	params, err := model.Estimate(x, y, spec)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(params["slope"]+0.002) > 1e-9 {
		t.Errorf("Expected slope -0.002, got %g", params["slope"])
	}
	if math.Abs(params["intercept"]-100) > 1e-9 {
		t.Errorf("Expected intercept 100, got %g", params["intercept"])
	}
}

func TestLinearZeroVarianceIsSingular(t *testing.T) {
	model := &LinearModel{}
	_, err := model.Estimate([]float64{5, 5, 5}, []float64{1, 2, 3}, protocol.ModelSpec{Name: protocol.ModelLinear})
	if !errors.Is(err, core.ErrSingularFit) {
		t.Errorf("Expected ErrSingularFit, got %v", err)
	}
}

func TestExpDecayRecoversParameters(t *testing.T) {
	const a, b = 100.0, -0.0004
	var x, y []float64
	for h := 0.0; h <= 1000; h += 100 {
		x = append(x, h)
		y = append(y, a*math.Exp(b*h))
	}

	model := &ExpDecayModel{}
	spec := protocol.ModelSpec{
		Name:   protocol.ModelExpDecay,
		Params: []string{"a", "b"},
		Bounds: map[string]protocol.ParamBounds{
			"a": {Min: 50, Max: 150},
			"b": {Min: -0.01, Max: 0},
		},
	}
	params, err := model.Estimate(x, y, spec)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(params["a"]-a) > 1e-6 {
		t.Errorf("Expected a=%g, got %g", a, params["a"])
	}
	if math.Abs(params["b"]-b) > 1e-9 {
		t.Errorf("Expected b=%g, got %g", b, params["b"])
	}
}

func TestExpDecayRejectsNonPositiveResponse(t *testing.T) {
	model := &ExpDecayModel{}
	_, err := model.Estimate([]float64{0, 1, 2}, []float64{100, 0, 50}, protocol.ModelSpec{Name: protocol.ModelExpDecay})
	if !errors.Is(err, core.ErrSingularFit) {
		t.Errorf("Expected ErrSingularFit for zero response, got %v", err)
	}
}

func TestModelForRejectsUnknownName(t *testing.T) {
	_, err := modelFor(protocol.ModelSpec{Name: "spline"})
	if !errors.Is(err, core.ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

func TestRSquaredConstantSeriesIsSingular(t *testing.T) {
	_, err := rSquared([]float64{3, 3, 3}, []float64{3, 3, 3})
	if !errors.Is(err, core.ErrSingularFit) {
		t.Errorf("Expected ErrSingularFit, got %v", err)
	}
}
