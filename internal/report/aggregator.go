package report

import (
	"pvqc/domain/analysis"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
	"pvqc/internal"
)

// Aggregator composes the stage outputs of one analysis pass into the
// immutable result record. Composition is pure: no clocks, no counters, so
// re-running analysis on an unchanged run reproduces the identical value.
type Aggregator struct {
	logger *internal.Logger
}

// New creates a result aggregator
func New() *Aggregator {
	return &Aggregator{logger: internal.DefaultLogger.Prefixed("report")}
}

// Aggregate builds the analysis result for a run. The series fingerprint is
// taken over the submitted primary series and the definition fingerprint over
// the resolved protocol document, so a result can always be checked against
// the exact inputs that produced it. QC results keep the evaluator's
// declaration order; metric ordering is handled by canonical serialization.
func (a *Aggregator) Aggregate(
	r *run.TestRun,
	def *protocol.Definition,
	report analysis.ValidationReport,
	metrics analysis.Metrics,
	fit analysis.ModelFitResult,
	qc []analysis.QCResult,
) *analysis.Result {
	if metrics == nil {
		metrics = analysis.Metrics{}
	}
	if qc == nil {
		qc = []analysis.QCResult{}
	}

	result := &analysis.Result{
		RunID:                 r.ID,
		ProtocolID:            def.ProtocolID,
		ProtocolVersion:       def.Version,
		Validation:            report,
		Metrics:               metrics,
		Fit:                   fit,
		QC:                    qc,
		OverallStatus:         analysis.DeriveOverallStatus(qc),
		DefinitionFingerprint: def.Fingerprint(),
	}
	if primary, ok := r.Primary(); ok {
		result.SeriesFingerprint = primary.Fingerprint()
	}

	a.logger.Info("Run %s: overall %s (%d errors, %d warnings, %d criteria)",
		r.ID, result.OverallStatus, len(report.Errors), len(report.Warnings), len(qc))
	return result
}
