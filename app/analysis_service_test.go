package app_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
	"pvqc/internal/testkit"
)

func analyzedIAMRun(t *testing.T, kit *testkit.TestKit) *analysis.Result {
	t.Helper()
	ctx := context.Background()
	runs, _ := kit.Services()

	r, err := runs.CreateRun(ctx, "IAM-2104", "1.0", "MOD-77")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := runs.AttachSeries(ctx, r.ID, kit.Gen.IAMSweep(0.05, 0)); err != nil {
		t.Fatalf("AttachSeries failed: %v", err)
	}
	if _, err := runs.SubmitForValidation(ctx, r.ID); err != nil {
		t.Fatalf("SubmitForValidation failed: %v", err)
	}
	result, err := runs.Analyze(ctx, r.ID)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return result
}

func TestAnalyzeIAMRunEndToEnd(t *testing.T) {
	result := analyzedIAMRun(t, testkit.NewTestKit())

	if result.OverallStatus != analysis.OverallPass {
		t.Errorf("Expected pass, got %s (qc=%+v)", result.OverallStatus, result.QC)
	}
	if result.Validation.HasErrors() {
		t.Errorf("Clean sweep must validate cleanly: %+v", result.Validation.Errors)
	}
	if result.Fit.Model != protocol.ModelCosineLoss {
		t.Errorf("Expected cosine_loss to win, got %s", result.Fit.Model)
	}
	b0, ok := result.Fit.Parameter("b0")
	if !ok {
		t.Fatal("Fit missing b0")
	}
	if rel := math.Abs(b0-0.05) / 0.05; rel > 0.05 {
		t.Errorf("Expected b0 within 5%% of 0.05, got %g", b0)
	}
	if result.Fit.RSquared == nil || *result.Fit.RSquared < 0.99 {
		t.Errorf("Expected R-squared >= 0.99, got %v", result.Fit.RSquared)
	}

	// Sweep points carry no IV curve; fill factor must be marked, not omitted
	ff := result.Metrics[protocol.MetricFillFactor]
	if ff.Unavailable != analysis.UnavailableMissingInput {
		t.Errorf("Expected fill_factor missing_input, got %+v", ff)
	}
	// No score was supplied and no criterion asks for one
	if _, present := result.Metrics[protocol.MetricDefectSeverity]; present {
		t.Error("defect_severity_score must be absent without a score or targeting criterion")
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	kit := testkit.NewTestKit()
	ctx := context.Background()
	runs, analysisSvc := kit.Services()

	r, err := runs.CreateRun(ctx, "IAM-2104", "1.0", "MOD-12")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if _, err := runs.AttachSeries(ctx, r.ID, kit.Gen.IAMSweep(0.05, 0.0005)); err != nil {
		t.Fatalf("AttachSeries failed: %v", err)
	}
	loaded, err := runs.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	first, err := analysisSvc.Analyze(ctx, loaded)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := analysisSvc.Analyze(ctx, loaded)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !first.Equal(second) {
		t.Error("Analyzing an unchanged run twice must produce identical results")
	}
}

func TestAnalyzeLeTIDRun(t *testing.T) {
	kit := testkit.NewTestKit()
	ctx := context.Background()
	runs, _ := kit.Services()

	r, err := runs.CreateRun(ctx, "LETID-6892", "1.0", "MOD-31")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	series := kit.Gen.LeTIDSeries(360.5, 3, 40, 2, 240)
	if _, err := runs.AttachSeries(ctx, r.ID, series); err != nil {
		t.Fatalf("AttachSeries failed: %v", err)
	}
	if _, err := runs.SubmitForValidation(ctx, r.ID); err != nil {
		t.Fatalf("SubmitForValidation failed: %v", err)
	}
	result, err := runs.Analyze(ctx, r.ID)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	deg := result.Metrics[protocol.MetricDegradationPct]
	if !deg.IsAvailable() || math.Abs(*deg.Value-(-3.0)) > 0.01 {
		t.Errorf("Expected degradation near -3%%, got %+v", deg)
	}
	stab := result.Metrics[protocol.MetricStabilizationHrs]
	if !stab.IsAvailable() || *stab.Value != 54 {
		t.Errorf("Expected stabilization at 54 h, got %+v", stab)
	}
	normFinal := result.Metrics[protocol.MetricNormalizedFinal]
	if !normFinal.IsAvailable() || math.Abs(*normFinal.Value-97.0) > 0.01 {
		t.Errorf("Expected final power near 97%%, got %+v", normFinal)
	}
	if !result.Fit.Fitted() {
		t.Errorf("Expected a trend fit, got no_fit=%s", result.Fit.NoFit)
	}
	if result.Fit.Stabilization == nil || !result.Fit.Stabilization.Stabilized {
		t.Error("Fit must carry the stabilization scan")
	}

	// A settling curve defeats both straight-line and pure-decay trends, so
	// the info-severity fit quality criterion fails without degrading the run
	if result.OverallStatus != analysis.OverallPass {
		t.Errorf("Expected pass, got %s (qc=%+v)", result.OverallStatus, result.QC)
	}
	for _, qr := range result.QC {
		if qr.CriterionID == "LETID-R2" && qr.Passed {
			t.Error("Expected the fit quality criterion to fail on a settling curve")
		}
		if qr.CriterionID == "LETID-DEG" && !qr.Passed {
			t.Errorf("Expected degradation within limit, got %+v", qr)
		}
		if qr.CriterionID == "LETID-STAB" && !qr.Passed {
			t.Errorf("Expected stabilization within 500 h, got %+v", qr)
		}
	}
}

func TestAnalyzeBifacialDefectGate(t *testing.T) {
	cases := []struct {
		name    string
		score   float64
		overall analysis.OverallStatus
	}{
		{"score above gate fails the run", 5.1, analysis.OverallFail},
		{"score below gate passes the run", 4.9, analysis.OverallPass},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kit := testkit.NewTestKit()
			ctx := context.Background()
			runs, _ := kit.Services()

			sample := core.SampleID(fmt.Sprintf("MOD-%g", tc.score))
			kit.Scorer.SetScore(sample, tc.score)

			r, err := runs.CreateRun(ctx, "BIFI-1522", "1.0", sample)
			if err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			series := kit.Gen.BifacialSeries(400, 0.7, 200, 400, 600, 800, 1000)
			if _, err := runs.AttachSeries(ctx, r.ID, series); err != nil {
				t.Fatalf("AttachSeries failed: %v", err)
			}
			if _, err := runs.SubmitForValidation(ctx, r.ID); err != nil {
				t.Fatalf("SubmitForValidation failed: %v", err)
			}
			result, err := runs.Analyze(ctx, r.ID)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}

			if result.OverallStatus != tc.overall {
				t.Errorf("Expected %s, got %s (qc=%+v)", tc.overall, result.OverallStatus, result.QC)
			}
			score := result.Metrics[protocol.MetricDefectSeverity]
			if !score.IsAvailable() || *score.Value != tc.score {
				t.Errorf("Expected defect score %g in metrics, got %+v", tc.score, score)
			}
			phi := result.Metrics[protocol.MetricBifaciality]
			if !phi.IsAvailable() || math.Abs(*phi.Value-0.7) > 0.01 {
				t.Errorf("Expected bifaciality near 0.7, got %+v", phi)
			}
			// Paired protocols declare no candidate models
			if result.Fit.Fitted() || result.Fit.NoFit != "" {
				t.Errorf("Expected an empty fit, got %+v", result.Fit)
			}
		})
	}
}

func TestAnalyzeScorerOutageDoesNotAbort(t *testing.T) {
	kit := testkit.NewTestKit()
	ctx := context.Background()
	runs, _ := kit.Services()
	kit.Scorer.FailWith(fmt.Errorf("scoring backend unreachable"))

	r, err := runs.CreateRun(ctx, "BIFI-1522", "1.0", "MOD-9")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	series := kit.Gen.BifacialSeries(400, 0.7, 200, 600, 1000)
	if _, err := runs.AttachSeries(ctx, r.ID, series); err != nil {
		t.Fatalf("AttachSeries failed: %v", err)
	}
	if _, err := runs.SubmitForValidation(ctx, r.ID); err != nil {
		t.Fatalf("SubmitForValidation failed: %v", err)
	}

	result, err := runs.Analyze(ctx, r.ID)
	if err != nil {
		t.Fatalf("A scorer outage must not abort analysis, got: %v", err)
	}
	score := result.Metrics[protocol.MetricDefectSeverity]
	if score.Unavailable != analysis.UnavailableMissingInput {
		t.Errorf("Expected missing_input marker for the unscored sample, got %+v", score)
	}
	if result.OverallStatus != analysis.OverallFail {
		t.Errorf("Defect gate without a score must fail the run, got %s", result.OverallStatus)
	}
}

func TestAnalyzeRunWithoutSeries(t *testing.T) {
	kit := testkit.NewTestKit()
	ctx := context.Background()
	_, analysisSvc := kit.Services()

	r, err := run.NewTestRun("IAM-2104", "1.0", "MOD-1")
	if err != nil {
		t.Fatalf("NewTestRun failed: %v", err)
	}
	if _, err := analysisSvc.Analyze(ctx, r); err == nil {
		t.Fatal("Expected an error for a run without measurements")
	}
}

func TestAnalyzeUnknownProtocol(t *testing.T) {
	kit := testkit.NewTestKit()
	ctx := context.Background()
	_, analysisSvc := kit.Services()

	r, err := run.NewTestRun("GHOST-0000", "1.0", "MOD-1")
	if err != nil {
		t.Fatalf("NewTestRun failed: %v", err)
	}
	_, err = analysisSvc.Analyze(ctx, r)
	if !core.IsNotFoundError(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}
