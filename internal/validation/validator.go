package validation

import (
	"fmt"
	"math"

	"pvqc/domain/analysis"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
	"pvqc/internal"
	"pvqc/internal/errors"

	"github.com/montanaflynn/stats"
)

// Validator screens a measurement series against its protocol definition.
// It is a pure function over its inputs: the same series and definition
// always produce the same report, and the input series is never mutated.
// Data problems accumulate in the report; only a malformed definition
// returns an error.
type Validator struct {
	logger *internal.Logger
}

// New creates a validator
func New() *Validator {
	return &Validator{logger: internal.DefaultLogger.Prefixed("validator")}
}

// Outcome bundles the report with the cleaned series downstream stages
// consume. Usable holds the ascending-sorted points that passed every
// error-level check; warnings never remove points.
type Outcome struct {
	Report      analysis.ValidationReport
	Usable      run.MeasurementSeries
	WasUnsorted bool
}

// Validate runs the ordered checks, accumulating every applicable issue
// rather than stopping at the first: completeness, type/range, uniqueness,
// minimum count, stability, monotonicity.
func (v *Validator) Validate(series run.MeasurementSeries, def *protocol.Definition) (Outcome, error) {
	if def == nil {
		return Outcome{}, errors.ConfigurationError("definition", fmt.Errorf("definition is nil"))
	}
	if err := def.Validate(); err != nil {
		return Outcome{}, errors.ConfigurationError(def.Key(), err)
	}

	outcome := Outcome{Report: analysis.NewValidationReport()}

	sorted := series.Sorted()
	if !series.IsSorted() {
		outcome.WasUnsorted = true
		v.logger.Info("Series %q arrived unsorted (%d points), sorted by %s",
			series.Label, series.Len(), def.IndependentVariable)
	}

	// unusable marks points excluded from downstream stages. Only
	// error-level findings set it.
	unusable := make([]bool, len(sorted.Points))

	v.checkCompleteness(&sorted, def, &outcome.Report, unusable)
	v.checkRanges(&sorted, def, &outcome.Report, unusable)
	v.checkUniqueness(&sorted, def, &outcome.Report, unusable)

	usablePoints := make([]run.MeasurementPoint, 0, len(sorted.Points))
	for i, p := range sorted.Points {
		if !unusable[i] {
			usablePoints = append(usablePoints, p)
		}
	}
	outcome.Usable = run.NewMeasurementSeries(sorted.Label, usablePoints)

	if len(usablePoints) < def.MinPoints {
		outcome.Report.AddError(analysis.Issue{
			Code: analysis.IssueInsufficientDataPoints,
			Detail: fmt.Sprintf("%d usable of %d submitted points, protocol requires %d",
				len(usablePoints), len(sorted.Points), def.MinPoints),
		})
	}

	v.checkStability(&outcome.Usable, def, &outcome.Report)
	v.checkMonotonicity(&outcome.Usable, def, &outcome.Report)

	return outcome, nil
}

// checkCompleteness flags points missing a required reading. The independent
// variable lives on the point itself, not in the readings map.
func (v *Validator) checkCompleteness(series *run.MeasurementSeries, def *protocol.Definition,
	report *analysis.ValidationReport, unusable []bool) {

	for i, p := range series.Points {
		for _, f := range def.RequiredFields {
			if f.Name == def.IndependentVariable {
				continue
			}
			if _, ok := p.Readings[f.Name]; !ok {
				idx := i
				report.AddError(analysis.Issue{
					Code:       analysis.IssueMissingField,
					Field:      f.Name,
					PointIndex: &idx,
					Detail:     fmt.Sprintf("required field %q absent", f.Name),
				})
				unusable[i] = true
			}
		}
	}
}

// checkRanges flags non-finite or out-of-bounds values against the declared
// field bounds. Missing readings were already flagged by completeness.
func (v *Validator) checkRanges(series *run.MeasurementSeries, def *protocol.Definition,
	report *analysis.ValidationReport, unusable []bool) {

	for i, p := range series.Points {
		for _, f := range def.RequiredFields {
			value := p.Independent
			if f.Name != def.IndependentVariable {
				reading, ok := p.Readings[f.Name]
				if !ok {
					continue
				}
				value = reading
			}

			idx := i
			if math.IsNaN(value) || math.IsInf(value, 0) {
				report.AddError(analysis.Issue{
					Code:       analysis.IssueOutOfRange,
					Field:      f.Name,
					PointIndex: &idx,
					Detail:     fmt.Sprintf("%q must be finite, got %v", f.Name, value),
				})
				unusable[i] = true
				continue
			}
			if f.Min != nil && value < *f.Min {
				report.AddError(analysis.Issue{
					Code:       analysis.IssueOutOfRange,
					Field:      f.Name,
					PointIndex: &idx,
					Detail:     fmt.Sprintf("%q = %g below minimum %g", f.Name, value, *f.Min),
				})
				unusable[i] = true
			}
			if f.Max != nil && value > *f.Max {
				report.AddError(analysis.Issue{
					Code:       analysis.IssueOutOfRange,
					Field:      f.Name,
					PointIndex: &idx,
					Detail:     fmt.Sprintf("%q = %g above maximum %g", f.Name, value, *f.Max),
				})
				unusable[i] = true
			}
		}
	}
}

// checkUniqueness flags repeated independent-variable values. The first
// occurrence stays usable; later duplicates are excluded.
func (v *Validator) checkUniqueness(series *run.MeasurementSeries, def *protocol.Definition,
	report *analysis.ValidationReport, unusable []bool) {

	for i := 1; i < len(series.Points); i++ {
		if series.Points[i].Independent == series.Points[i-1].Independent {
			idx := i
			report.AddError(analysis.Issue{
				Code:       analysis.IssueDuplicateIndependent,
				Field:      def.IndependentVariable,
				PointIndex: &idx,
				Detail: fmt.Sprintf("%s = %g measured more than once",
					def.IndependentVariable, series.Points[i].Independent),
			})
			unusable[i] = true
		}
	}
}

// checkStability warns when a designated reading's coefficient of variation
// across the usable points exceeds the protocol threshold.
func (v *Validator) checkStability(usable *run.MeasurementSeries, def *protocol.Definition,
	report *analysis.ValidationReport) {

	for _, sf := range def.StabilityFields {
		values := usable.ReadingValues(sf.Name)
		if len(values) < 2 {
			continue
		}
		mean, _ := stats.Mean(values)
		if mean == 0 {
			v.logger.Debug("Stability field %q has zero mean, cv undefined", sf.Name)
			continue
		}
		stdDev, _ := stats.StandardDeviation(values)
		cv := math.Abs(stdDev / mean)
		if cv > sf.MaxCV {
			report.AddWarning(analysis.Issue{
				Code:   analysis.IssueStabilityViolation,
				Field:  sf.Name,
				Detail: fmt.Sprintf("cv %.4f exceeds %.4f across %d points", cv, sf.MaxCV, len(values)),
			})
		}
	}
}

// checkMonotonicity warns when the declared response trend is violated.
// Minor non-monotonicity is often measurement noise, so this never removes
// points and never escalates past a warning.
func (v *Validator) checkMonotonicity(usable *run.MeasurementSeries, def *protocol.Definition,
	report *analysis.ValidationReport) {

	if def.Monotonicity == nil {
		return
	}
	values := usable.ReadingValues(def.Monotonicity.Field)
	if len(values) < 2 {
		return
	}

	violations := 0
	firstIdx := -1
	for i := 1; i < len(values); i++ {
		broken := false
		switch def.Monotonicity.Direction {
		case protocol.MonotonicNonIncreasing:
			broken = values[i] > values[i-1]
		case protocol.MonotonicNonDecreasing:
			broken = values[i] < values[i-1]
		}
		if broken {
			violations++
			if firstIdx < 0 {
				firstIdx = i
			}
		}
	}

	if violations > 0 {
		idx := firstIdx
		report.AddWarning(analysis.Issue{
			Code:       analysis.IssueMonotonicityViolation,
			Field:      def.Monotonicity.Field,
			PointIndex: &idx,
			Detail: fmt.Sprintf("%q expected %s, %d of %d steps violate",
				def.Monotonicity.Field, def.Monotonicity.Direction, violations, len(values)-1),
		})
	}
}
