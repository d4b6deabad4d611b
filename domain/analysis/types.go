package analysis

import (
	"encoding/json"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// ============================================================================
// VALIDATION REPORT
// ============================================================================

// IssueCode identifies one class of data-level validation finding
type IssueCode string

const (
	IssueMissingField           IssueCode = "missing_field"
	IssueOutOfRange             IssueCode = "out_of_range"
	IssueDuplicateIndependent   IssueCode = "duplicate_independent_variable"
	IssueInsufficientDataPoints IssueCode = "insufficient_data_points"
	IssueStabilityViolation     IssueCode = "stability_violation"
	IssueMonotonicityViolation  IssueCode = "monotonicity_violation"
)

// Issue is one categorized finding against a measurement series
type Issue struct {
	Code       IssueCode `json:"code"`
	Field      string    `json:"field,omitempty"`
	PointIndex *int      `json:"point_index,omitempty"` // index into the ascending-sorted series
	Detail     string    `json:"detail"`
}

// ValidationReport accumulates every applicable finding for one series.
// Errors block fitting of the affected points; warnings never do.
type ValidationReport struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// NewValidationReport creates an empty report with non-nil slices so the
// serialized form is stable ([] rather than null)
func NewValidationReport() ValidationReport {
	return ValidationReport{Errors: []Issue{}, Warnings: []Issue{}}
}

// AddError appends an error-level issue
func (r *ValidationReport) AddError(issue Issue) {
	r.Errors = append(r.Errors, issue)
}

// AddWarning appends a warning-level issue
func (r *ValidationReport) AddWarning(issue Issue) {
	r.Warnings = append(r.Warnings, issue)
}

// HasErrors reports whether any error-level issue was found
func (r *ValidationReport) HasErrors() bool { return len(r.Errors) > 0 }

// HasIssue reports whether an issue with the given code is present at either
// level
func (r *ValidationReport) HasIssue(code IssueCode) bool {
	for _, i := range r.Errors {
		if i.Code == code {
			return true
		}
	}
	for _, i := range r.Warnings {
		if i.Code == code {
			return true
		}
	}
	return false
}

// ============================================================================
// METRICS
// ============================================================================

// UnavailableReason marks why a value could not be produced. Distinct from a
// failed threshold: QC reports these separately.
type UnavailableReason string

const (
	UnavailableDivisionByZero UnavailableReason = "division_by_zero"
	UnavailableMissingInput   UnavailableReason = "missing_input"
	UnavailableNotObserved    UnavailableReason = "not_observed"
	UnavailableNoFit          UnavailableReason = "no_fit"
	UnavailableUnknownMetric  UnavailableReason = "unknown_metric"
)

// MetricValue is one named metric outcome: either a finite value or an
// explicit unavailability marker, never a silent omission
type MetricValue struct {
	Value       *float64          `json:"value,omitempty"`
	Unavailable UnavailableReason `json:"unavailable,omitempty"`
}

// Available wraps a computed value
func Available(v float64) MetricValue {
	return MetricValue{Value: &v}
}

// NotAvailable marks a metric that could not be computed
func NotAvailable(reason UnavailableReason) MetricValue {
	return MetricValue{Unavailable: reason}
}

// IsAvailable reports whether the metric carries a value
func (m MetricValue) IsAvailable() bool { return m.Value != nil }

// Metrics maps metric names to outcomes. Serialization is deterministic:
// encoding/json emits map keys in sorted order.
type Metrics map[core.MetricName]MetricValue

// ============================================================================
// MODEL FIT
// ============================================================================

// NoFitReason explains why no candidate model was selected
type NoFitReason string

const (
	NoFitInsufficientData NoFitReason = "insufficient_data"
	NoFitSingular         NoFitReason = "singular_fit"
	NoFitTimeout          NoFitReason = "timeout"
)

// FitDiagnostics carries goodness-of-fit context beyond R-squared
type FitDiagnostics struct {
	RMSE             float64  `json:"rmse"`
	DegreesOfFreedom int      `json:"degrees_of_freedom"`
	PValue           *float64 `json:"p_value,omitempty"` // regression F-test, when df > 0
}

// StabilizationResult reports sliding-window stabilization detection on a
// degradation series. "not observed" is a value, not an error.
type StabilizationResult struct {
	Stabilized bool     `json:"stabilized"`
	AtIndex    *int     `json:"at_index,omitempty"` // window start index in the sorted series
	AtHours    *float64 `json:"at_hours,omitempty"` // independent value at AtIndex
	Window     int      `json:"window"`
	EpsilonPct float64  `json:"epsilon_pct"`
}

// ModelFitResult is the fitter's verdict: the selected model with its
// parameters and R-squared, or an explicit no-fit marker
type ModelFitResult struct {
	Model         protocol.ModelName   `json:"model,omitempty"`
	Parameters    map[string]float64   `json:"parameters,omitempty"`
	RSquared      *float64             `json:"r_squared,omitempty"`
	NoFit         NoFitReason          `json:"no_fit,omitempty"`
	Diagnostics   *FitDiagnostics      `json:"diagnostics,omitempty"`
	Stabilization *StabilizationResult `json:"stabilization,omitempty"`
}

// NewFit creates a successful fit result
func NewFit(model protocol.ModelName, params map[string]float64, rSquared float64, diag *FitDiagnostics) ModelFitResult {
	return ModelFitResult{
		Model:       model,
		Parameters:  params,
		RSquared:    &rSquared,
		Diagnostics: diag,
	}
}

// NewNoFit creates an explicit no-fit result
func NewNoFit(reason NoFitReason) ModelFitResult {
	return ModelFitResult{NoFit: reason}
}

// Fitted reports whether a model was selected
func (f *ModelFitResult) Fitted() bool { return f.NoFit == "" && f.Model != "" }

// Parameter resolves a fitted parameter by name
func (f *ModelFitResult) Parameter(name string) (float64, bool) {
	if !f.Fitted() {
		return 0, false
	}
	v, ok := f.Parameters[name]
	return v, ok
}

// ============================================================================
// QC
// ============================================================================

// QCResult is one criterion's verdict against the computed metrics
type QCResult struct {
	CriterionID string            `json:"criterion_id"`
	Target      string            `json:"target"`
	Actual      *float64          `json:"actual,omitempty"` // nil when the target was unavailable
	Passed      bool              `json:"passed"`
	Severity    protocol.Severity `json:"severity"`
	Unavailable UnavailableReason `json:"unavailable,omitempty"`
}

// OverallStatus is the single deterministic verdict for a run
type OverallStatus string

const (
	OverallPass    OverallStatus = "pass"
	OverallWarning OverallStatus = "warning"
	OverallFail    OverallStatus = "fail"
)

// DeriveOverallStatus folds QC verdicts by severity precedence: any failed
// fail-severity criterion wins, then failed warnings; info never degrades
// the verdict. Order-independent.
func DeriveOverallStatus(results []QCResult) OverallStatus {
	status := OverallPass
	for _, r := range results {
		if r.Passed {
			continue
		}
		switch r.Severity {
		case protocol.SeverityFail:
			return OverallFail
		case protocol.SeverityWarning:
			status = OverallWarning
		}
	}
	return status
}

// ============================================================================
// ANALYSIS RESULT
// ============================================================================

// Result is the immutable aggregate of one analyze() call. It carries no
// timestamps: re-running analyze() on an unchanged run must produce a
// value-identical Result.
type Result struct {
	RunID                 core.RunID          `json:"run_id"`
	ProtocolID            core.ProtocolID     `json:"protocol_id"`
	ProtocolVersion       string              `json:"protocol_version"`
	Validation            ValidationReport    `json:"validation"`
	Metrics               Metrics             `json:"metrics"`
	Fit                   ModelFitResult      `json:"fit"`
	QC                    []QCResult          `json:"qc"`
	OverallStatus         OverallStatus       `json:"overall_status"`
	SeriesFingerprint     core.SeriesHash     `json:"series_fingerprint"`
	DefinitionFingerprint core.DefinitionHash `json:"definition_fingerprint"`
}

// Fingerprint returns a deterministic hash of the serialized result
func (r *Result) Fingerprint() core.ResultHash {
	data, err := json.Marshal(r)
	if err != nil {
		return core.NewResultHash([]byte(r.RunID.String()))
	}
	return core.NewResultHash(data)
}

// Equal compares two results by canonical serialization
func (r *Result) Equal(other *Result) bool {
	if r == nil || other == nil {
		return r == other
	}
	return core.Hash(r.Fingerprint()).Equals(core.Hash(other.Fingerprint()))
}
