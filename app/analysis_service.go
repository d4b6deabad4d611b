package app

import (
	"context"
	"fmt"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
	"pvqc/internal"
	"pvqc/internal/errors"
	"pvqc/internal/fitting"
	"pvqc/internal/metrics"
	"pvqc/internal/qc"
	"pvqc/internal/registry"
	"pvqc/internal/report"
	"pvqc/internal/validation"
	"pvqc/ports"
)

// AnalysisService runs the analysis pipeline over one test run: resolve the
// protocol, validate measurements, derive metrics, fit candidate models,
// evaluate QC and aggregate the immutable result. It never mutates the run;
// lifecycle transitions belong to RunService.
type AnalysisService struct {
	registry   *registry.Registry
	validator  *validation.Validator
	calculator *metrics.Calculator
	fitter     *fitting.Engine
	evaluator  *qc.Evaluator
	aggregator *report.Aggregator
	scorer     ports.DefectScorer
	logger     *internal.Logger
}

// NewAnalysisService wires the pipeline stages. scorer may be nil when no
// defect-scoring collaborator is deployed.
func NewAnalysisService(reg *registry.Registry, fitter *fitting.Engine, scorer ports.DefectScorer) *AnalysisService {
	return &AnalysisService{
		registry:   reg,
		validator:  validation.New(),
		calculator: metrics.NewCalculator(),
		fitter:     fitter,
		evaluator:  qc.New(),
		aggregator: report.New(),
		scorer:     scorer,
		logger:     internal.DefaultLogger.Prefixed("analysis"),
	}
}

// Definition resolves a protocol through the registry
func (s *AnalysisService) Definition(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	return s.registry.Get(ctx, id, version)
}

// Validate checks a run's primary series against its protocol definition.
// Data-level findings land in the outcome's report; only configuration
// faults return an error.
func (s *AnalysisService) Validate(ctx context.Context, r *run.TestRun) (validation.Outcome, error) {
	def, err := s.registry.Get(ctx, r.ProtocolID, r.ProtocolVersion)
	if err != nil {
		return validation.Outcome{}, err
	}
	primary, ok := r.Primary()
	if !ok {
		return validation.Outcome{}, errors.InvalidInput(fmt.Sprintf("run %s has no measurement series", r.ID))
	}
	return s.validator.Validate(primary, def)
}

// Analyze executes the full pipeline and returns the aggregated result. The
// result depends only on the run's measurements and the resolved definition,
// so analyzing an unchanged run twice produces a value-identical result.
func (s *AnalysisService) Analyze(ctx context.Context, r *run.TestRun) (*analysis.Result, error) {
	def, err := s.registry.Get(ctx, r.ProtocolID, r.ProtocolVersion)
	if err != nil {
		return nil, err
	}
	primary, ok := r.Primary()
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("run %s has no measurement series", r.ID))
	}

	outcome, err := s.validator.Validate(primary, def)
	if err != nil {
		return nil, err
	}

	score := s.defectScore(ctx, r.SampleID)
	computed := s.calculator.Derive(outcome.Usable, def, score)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fit := s.fitter.Fit(ctx, outcome.Usable, def)
	if def.Category == protocol.CategoryTemporal {
		computed[protocol.MetricStabilizationHrs] = metrics.StabilizationHours(fit.Stabilization)
	}

	qcResults := s.evaluator.Evaluate(computed, fit, def.Criteria)
	return s.aggregator.Aggregate(r, def, outcome.Report, computed, fit, qcResults), nil
}

// defectScore consults the scoring collaborator. Scorer outages degrade to
// an absent score so the pipeline still completes; QC surfaces the gap
// through an unavailable marker when a criterion needs the score.
func (s *AnalysisService) defectScore(ctx context.Context, sampleID core.SampleID) *float64 {
	if s.scorer == nil {
		return nil
	}
	score, ok, err := s.scorer.Score(ctx, sampleID)
	if err != nil {
		s.logger.Warn("Defect scorer unavailable for sample %s: %v", sampleID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &score
}
