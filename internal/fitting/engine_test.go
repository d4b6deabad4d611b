package fitting

import (
	"context"
	"math"
	"testing"
	"time"

	"pvqc/domain/analysis"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
)

func float64Ptr(v float64) *float64 { return &v }

func angularDefinition(models ...protocol.ModelSpec) *protocol.Definition {
	return &protocol.Definition{
		ProtocolID: "IAM-FIT",
		Version:    "1.0",
		Category:   protocol.CategoryAngular,
		RequiredFields: []protocol.FieldSpec{
			{Name: "incidence_angle", Type: protocol.FieldNumeric, Unit: "deg", Min: float64Ptr(0), Max: float64Ptr(90)},
			{Name: "relative_transmission", Type: protocol.FieldNumeric, Unit: "ratio"},
		},
		MinPoints:           5,
		IndependentVariable: "incidence_angle",
		Monotonicity:        &protocol.MonotonicitySpec{Field: "relative_transmission", Direction: protocol.MonotonicNonIncreasing},
		CandidateModels:     models,
	}
}

func angularSeries(curve func(theta float64) float64, noise float64) run.MeasurementSeries {
	x, y := angleSweep(curve, noise)
	points := make([]run.MeasurementPoint, len(x))
	for i := range x {
		points[i] = run.MeasurementPoint{
			Independent: x[i],
			Readings:    map[string]float64{"relative_transmission": y[i]},
		}
	}
	return run.NewMeasurementSeries("sweep", points)
}

// TestFitRecoversParameterAndPrefersSimplicity generates a sweep from the
// single-parameter incidence model and offers a cubic as competition. The
// cubic cannot beat the generating model by more than the selection epsilon,
// so the simpler model must win.
func TestFitRecoversParameterAndPrefersSimplicity(t *testing.T) {
	const b0 = 0.05
	series := angularSeries(func(theta float64) float64 {
		return 1 - b0*(1/math.Cos(theta*math.Pi/180)-1)
	}, 0.0003)

	def := angularDefinition(
		protocol.ModelSpec{
			Name:   protocol.ModelPolynomial,
			Params: []string{"c0", "c1", "c2", "c3"},
			Bounds: map[string]protocol.ParamBounds{
				"c0": {Min: -10, Max: 10}, "c1": {Min: -10, Max: 10},
				"c2": {Min: -10, Max: 10}, "c3": {Min: -10, Max: 10},
			},
		},
		cosineSpec(),
	)

	engine := NewEngine(4, time.Second)
	result := engine.Fit(context.Background(), series, def)

	if !result.Fitted() {
		t.Fatalf("Expected a fit, got no_fit=%s", result.NoFit)
	}
	if result.Model != protocol.ModelCosineLoss {
		t.Errorf("Expected cosine_loss to win on simplicity, got %s", result.Model)
	}
	got, ok := result.Parameter("b0")
	if !ok {
		t.Fatal("Selected fit missing b0")
	}
	if rel := math.Abs(got-b0) / b0; rel > 0.05 {
		t.Errorf("Expected b0 within 5%% of %g, got %g", b0, got)
	}
	if result.RSquared == nil || *result.RSquared < 0.99 {
		t.Errorf("Expected R-squared >= 0.99, got %v", result.RSquared)
	}
	if result.Diagnostics == nil || result.Diagnostics.DegreesOfFreedom != len(series.Points)-1 {
		t.Errorf("Expected diagnostics with dof %d, got %+v", len(series.Points)-1, result.Diagnostics)
	}
	if result.Stabilization != nil {
		t.Error("Angular fits must not carry a stabilization scan")
	}
}

func TestFitInsufficientData(t *testing.T) {
	series := run.NewMeasurementSeries("tiny", []run.MeasurementPoint{
		{Independent: 0, Readings: map[string]float64{"relative_transmission": 1.0}},
		{Independent: 40, Readings: map[string]float64{"relative_transmission": 0.97}},
	})

	engine := NewEngine(2, time.Second)
	result := engine.Fit(context.Background(), series, angularDefinition(cosineSpec()))

	if result.Fitted() {
		t.Fatal("Expected no fit for two points")
	}
	if result.NoFit != analysis.NoFitInsufficientData {
		t.Errorf("Expected insufficient_data, got %s", result.NoFit)
	}
}

func TestFitConstantSeriesIsSingular(t *testing.T) {
	series := angularSeries(func(theta float64) float64 { return 0.97 }, 0)

	engine := NewEngine(2, time.Second)
	result := engine.Fit(context.Background(), series, angularDefinition(cosineSpec()))

	if result.Fitted() {
		t.Fatal("Expected no fit for a constant series")
	}
	if result.NoFit != analysis.NoFitSingular {
		t.Errorf("Expected singular_fit, got %s", result.NoFit)
	}
}

func TestFitCandidateDeadlineYieldsTimeout(t *testing.T) {
	// A dense sweep makes the scalar search outlast a nanosecond budget
	points := make([]run.MeasurementPoint, 0, 50000)
	for i := 0; i < 50000; i++ {
		theta := float64(i) * 80 / 50000
		points = append(points, run.MeasurementPoint{
			Independent: theta,
			Readings:    map[string]float64{"relative_transmission": fresnelIAM(theta, 0.16)},
		})
	}
	series := run.NewMeasurementSeries("dense", points)

	def := angularDefinition(protocol.ModelSpec{
		Name:   protocol.ModelFresnel,
		Params: []string{"a_r"},
		Bounds: map[string]protocol.ParamBounds{"a_r": {Min: 0.05, Max: 0.4}},
	})

	engine := NewEngine(1, time.Nanosecond)
	result := engine.Fit(context.Background(), series, def)

	if result.Fitted() {
		t.Fatal("Expected the candidate to time out")
	}
	if result.NoFit != analysis.NoFitTimeout {
		t.Errorf("Expected timeout, got %s", result.NoFit)
	}
}

func TestFitTemporalNormalizesAndScansStabilization(t *testing.T) {
	// Exponential settling toward 97% of initial power
	const n = 240
	points := make([]run.MeasurementPoint, n)
	for i := 0; i < n; i++ {
		hours := float64(i) * 2
		power := 360.5 * (0.97 + 0.03*math.Exp(-float64(i)/20)) / 1.0
		points[i] = run.MeasurementPoint{
			Independent: hours,
			Readings:    map[string]float64{"pmax": power},
		}
	}
	series := run.NewMeasurementSeries("letid", points)

	def := &protocol.Definition{
		ProtocolID: "LETID-FIT",
		Version:    "1.0",
		Category:   protocol.CategoryTemporal,
		RequiredFields: []protocol.FieldSpec{
			{Name: "exposure_hours", Type: protocol.FieldNumeric, Unit: "h", Min: float64Ptr(0)},
			{Name: "pmax", Type: protocol.FieldNumeric, Unit: "W", Min: float64Ptr(0)},
		},
		MinPoints:           10,
		IndependentVariable: "exposure_hours",
		CandidateModels: []protocol.ModelSpec{
			{
				Name:   protocol.ModelLinear,
				Params: []string{"slope", "intercept"},
				Bounds: map[string]protocol.ParamBounds{
					"slope":     {Min: -1, Max: 1},
					"intercept": {Min: 0, Max: 200},
				},
			},
		},
	}

	engine := NewEngine(4, time.Second)
	result := engine.Fit(context.Background(), series, def)

	if !result.Fitted() {
		t.Fatalf("Expected a fit, got no_fit=%s", result.NoFit)
	}
	// Normalized response puts the intercept near 100 percent
	intercept, _ := result.Parameter("intercept")
	if intercept < 90 || intercept > 110 {
		t.Errorf("Expected normalized intercept near 100, got %g", intercept)
	}
	if result.Stabilization == nil {
		t.Fatal("Temporal fit must carry the stabilization scan")
	}
	if !result.Stabilization.Stabilized {
		t.Error("Expected the settling series to stabilize")
	}
	if result.Stabilization.AtHours == nil || *result.Stabilization.AtHours != float64(*result.Stabilization.AtIndex)*2 {
		t.Error("Stabilization hours must map back to the independent axis")
	}
}

func TestFitWithoutCandidatesIsEmpty(t *testing.T) {
	series := angularSeries(func(theta float64) float64 {
		return 1 - 0.05*(1/math.Cos(theta*math.Pi/180)-1)
	}, 0)

	engine := NewEngine(2, time.Second)
	result := engine.Fit(context.Background(), series, angularDefinition())

	if result.Fitted() || result.NoFit != "" {
		t.Errorf("Expected empty result without candidates, got %+v", result)
	}
}
