package qc

import (
	"math"
	"strings"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/internal"
)

// equalityTolerance bounds == and != comparisons. Metric values come out of
// floating-point pipelines; exact equality would trip on representation noise.
const equalityTolerance = 1e-9

// Evaluator classifies computed metrics and the selected model fit against a
// definition's QC criteria. Unknown targets and operators are rejected at
// definition load, so evaluation never fails: every criterion yields a verdict.
type Evaluator struct {
	logger *internal.Logger
}

// New creates a QC evaluator
func New() *Evaluator {
	return &Evaluator{logger: internal.DefaultLogger.Prefixed("qc")}
}

// Evaluate runs every criterion in declaration order. A criterion whose
// target has no usable value fails with the unavailability recorded; it is
// never silently skipped.
func (e *Evaluator) Evaluate(metrics analysis.Metrics, fit analysis.ModelFitResult, criteria []protocol.QCCriterion) []analysis.QCResult {
	results := make([]analysis.QCResult, 0, len(criteria))
	for _, c := range criteria {
		results = append(results, e.evaluateOne(metrics, fit, c))
	}
	return results
}

func (e *Evaluator) evaluateOne(metrics analysis.Metrics, fit analysis.ModelFitResult, c protocol.QCCriterion) analysis.QCResult {
	result := analysis.QCResult{
		CriterionID: c.ID,
		Target:      c.Target,
		Severity:    c.Severity,
	}

	actual, reason := resolveTarget(metrics, fit, c.Target)
	if actual == nil {
		result.Unavailable = reason
		e.logger.Debug("Criterion %s target %q unavailable: %s", c.ID, c.Target, reason)
		return result
	}

	result.Actual = actual
	result.Passed = compare(*actual, c.Operator, c.Threshold)
	if !result.Passed {
		e.logger.Info("Criterion %s failed: %s = %g, want %s %g", c.ID, c.Target, *actual, c.Operator, c.Threshold)
	}
	return result
}

// resolveTarget finds the value a criterion addresses: fit.r_squared, a
// fit.<param> of the selected model, or a named metric. Parameters that the
// selected model does not carry resolve as no_fit, the same as when no model
// survived at all.
func resolveTarget(metrics analysis.Metrics, fit analysis.ModelFitResult, target string) (*float64, analysis.UnavailableReason) {
	if target == protocol.FitTargetRSquared {
		if !fit.Fitted() || fit.RSquared == nil {
			return nil, analysis.UnavailableNoFit
		}
		v := *fit.RSquared
		return &v, ""
	}
	if strings.HasPrefix(target, protocol.FitTargetPrefix) {
		param := strings.TrimPrefix(target, protocol.FitTargetPrefix)
		v, ok := fit.Parameter(param)
		if !ok {
			return nil, analysis.UnavailableNoFit
		}
		return &v, ""
	}

	mv, ok := metrics[core.MetricName(target)]
	if !ok {
		return nil, analysis.UnavailableUnknownMetric
	}
	if !mv.IsAvailable() {
		return nil, mv.Unavailable
	}
	v := *mv.Value
	return &v, ""
}

// compare applies a tagged comparison operator between actual and threshold
func compare(actual float64, op protocol.Operator, threshold float64) bool {
	switch op {
	case protocol.OpLess:
		return actual < threshold
	case protocol.OpLessOrEqual:
		return actual <= threshold
	case protocol.OpGreater:
		return actual > threshold
	case protocol.OpGreaterOrEqual:
		return actual >= threshold
	case protocol.OpEqual:
		return math.Abs(actual-threshold) <= equalityTolerance
	case protocol.OpNotEqual:
		return math.Abs(actual-threshold) > equalityTolerance
	}
	// unknown operators are rejected when the definition loads
	return false
}
