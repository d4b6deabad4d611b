package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"pvqc/domain/core"
)

// ============================================================================
// DEFINITION DOCUMENT
// ============================================================================

// Definition is the declarative rule set for one test protocol. It is the
// sole source of per-protocol behavior: one generic engine interprets it,
// there are no protocol-specific code paths. Immutable once loaded.
type Definition struct {
	ProtocolID          core.ProtocolID    `json:"protocol_id"`
	Version             string             `json:"version"`
	Category            Category           `json:"category"`
	RequiredFields      []FieldSpec        `json:"required_fields"`
	MinPoints           int                `json:"min_points"`
	IndependentVariable string             `json:"independent_variable"` // e.g. "incidence_angle", "elapsed_hours"
	Monotonicity        *MonotonicitySpec  `json:"monotonicity"`         // nil when the protocol declares none
	StabilityFields     []StabilityField   `json:"stability_fields"`
	CandidateModels     []ModelSpec        `json:"candidate_models"`
	Criteria            []QCCriterion      `json:"criteria"`
	Stabilization       *StabilizationSpec `json:"stabilization,omitempty"` // temporal protocols only
}

// Category groups protocols by measurement geometry
type Category string

const (
	CategoryAngular  Category = "angular"  // angle-resolved (IAM)
	CategoryTemporal Category = "temporal" // time-series degradation (LeTID, PID)
	CategoryPaired   Category = "paired"   // paired-sample (bifaciality)
)

// FieldSpec declares one required reading per measurement point
type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	Unit string    `json:"unit"`
	Min  *float64  `json:"min,omitempty"` // nil means unbounded below
	Max  *float64  `json:"max,omitempty"` // nil means unbounded above
}

// FieldType declares the value domain of a reading
type FieldType string

const (
	FieldNumeric FieldType = "numeric"
)

// MonotonicitySpec declares the expected direction of the primary response
// against the independent variable
type MonotonicitySpec struct {
	Field     string             `json:"field"`
	Direction MonotonicDirection `json:"direction"`
}

// MonotonicDirection is the declared trend of a response field
type MonotonicDirection string

const (
	MonotonicNonIncreasing MonotonicDirection = "non_increasing"
	MonotonicNonDecreasing MonotonicDirection = "non_decreasing"
)

// StabilityField designates a reading whose coefficient of variation across
// the series must stay below MaxCV (a fraction, e.g. 0.02 for 2%)
type StabilityField struct {
	Name  string  `json:"name"`
	MaxCV float64 `json:"max_cv"`
}

// ModelSpec names one candidate analytical model with its free parameters
// and per-parameter fit bounds
type ModelSpec struct {
	Name   ModelName              `json:"name"`
	Params []string               `json:"params"`
	Bounds map[string]ParamBounds `json:"bounds"`
}

// ModelName enumerates the analytical models the fitter can interpret
type ModelName string

const (
	ModelCosineLoss ModelName = "cosine_loss" // ASHRAE single-parameter incidence model
	ModelFresnel    ModelName = "fresnel"     // Martin-Ruiz air-glass reflection model
	ModelPolynomial ModelName = "polynomial"  // bounded low-order polynomial
	ModelLinear     ModelName = "linear"      // degradation trend line
	ModelExpDecay   ModelName = "exp_decay"   // exponential power decay
)

// ParamBounds is the closed interval a fitted parameter must fall in
type ParamBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// fixedModelParams pins the parameter names each fixed-arity model exposes.
// polynomial is absent: its coefficients run c0..cN up to MaxPolynomialDegree.
var fixedModelParams = map[ModelName][]string{
	ModelCosineLoss: {"b0"},
	ModelFresnel:    {"a_r"},
	ModelLinear:     {"slope", "intercept"},
	ModelExpDecay:   {"a", "b"},
}

// MaxPolynomialDegree caps declared polynomial candidates. Higher orders
// overfit the sparse sweeps these protocols produce.
const MaxPolynomialDegree = 6

// StabilizationSpec configures sliding-window stabilization detection on
// degradation series
type StabilizationSpec struct {
	Window     int     `json:"window"`      // window width in points (default 48)
	EpsilonPct float64 `json:"epsilon_pct"` // max deviation from window mean, percent (default 0.5)
}

// Stabilization defaults per IEC-style LeTID procedures
const (
	DefaultStabilizationWindow     = 48
	DefaultStabilizationEpsilonPct = 0.5
)

// ============================================================================
// QC CRITERIA
// ============================================================================

// QCCriterion is one named, severity-tagged pass/fail rule over a computed
// metric or fit parameter
type QCCriterion struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Target      string   `json:"target"` // metric name, "fit.r_squared", or "fit.<param>"
	Operator    Operator `json:"operator"`
	Threshold   float64  `json:"threshold"`
}

// Severity ranks how a failed criterion affects the overall verdict
type Severity string

const (
	SeverityFail    Severity = "fail"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Operator is the tagged comparison applied between actual and threshold
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
)

// ValidOperator reports whether op is a member of the operator table
func ValidOperator(op Operator) bool {
	switch op {
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known severity
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityFail, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// ============================================================================
// METRIC CATALOG
// ============================================================================

// Canonical metric names produced by the calculator and fitter. QC criterion
// targets are validated against these at load time.
const (
	MetricFillFactor       core.MetricName = "fill_factor"
	MetricFillFactorMean   core.MetricName = "fill_factor_mean"
	MetricDegradationPct   core.MetricName = "degradation_pct"
	MetricDegradationRate  core.MetricName = "degradation_rate"
	MetricNormalizedFinal  core.MetricName = "normalized_power_final"
	MetricNormalizedMin    core.MetricName = "normalized_power_min"
	MetricBifaciality      core.MetricName = "bifaciality_factor"
	MetricStabilizationHrs core.MetricName = "stabilization_hours"
	MetricDefectSeverity   core.MetricName = "defect_severity_score"
)

// FitTargetPrefix addresses fit outputs in QC criterion targets, e.g.
// "fit.b0" or "fit.r_squared"
const FitTargetPrefix = "fit."

// FitTargetRSquared addresses the selected model's goodness of fit
const FitTargetRSquared = "fit.r_squared"

// CategoryMetrics returns the metric names derivable for a category.
// defect_severity_score is available to every category since the scoring
// collaborator is protocol-agnostic.
func CategoryMetrics(c Category) []core.MetricName {
	common := []core.MetricName{MetricFillFactor, MetricFillFactorMean, MetricDefectSeverity}
	switch c {
	case CategoryAngular:
		return common
	case CategoryTemporal:
		return append(common,
			MetricDegradationPct, MetricDegradationRate,
			MetricNormalizedFinal, MetricNormalizedMin, MetricStabilizationHrs)
	case CategoryPaired:
		return append(common, MetricBifaciality)
	}
	return nil
}

// ============================================================================
// STRUCTURAL VALIDATION
// ============================================================================

// Validate checks the definition's structural invariants. Any violation is a
// configuration fault: the definition must be rejected at load, never
// interpreted in a degraded mode.
func (d *Definition) Validate() error {
	if d.ProtocolID.String() == "" {
		return core.NewDefinitionError("protocol_id", "must not be empty")
	}
	if d.Version == "" {
		return core.NewDefinitionError("version", "must not be empty")
	}
	if err := d.validateCategory(); err != nil {
		return err
	}
	if err := d.validateFields(); err != nil {
		return err
	}
	if d.MinPoints < 1 {
		return core.NewDefinitionError("min_points", fmt.Sprintf("must be >= 1, got %d", d.MinPoints))
	}
	if d.IndependentVariable == "" {
		return core.NewDefinitionError("independent_variable", "must not be empty")
	}
	if err := d.validateMonotonicity(); err != nil {
		return err
	}
	if err := d.validateStabilityFields(); err != nil {
		return err
	}
	if err := d.validateModels(); err != nil {
		return err
	}
	if err := d.validateStabilization(); err != nil {
		return err
	}
	return d.validateCriteria()
}

func (d *Definition) validateCategory() error {
	switch d.Category {
	case CategoryAngular, CategoryTemporal, CategoryPaired:
		return nil
	}
	return core.NewDefinitionError("category", fmt.Sprintf("unknown category %q", d.Category))
}

func (d *Definition) validateFields() error {
	if len(d.RequiredFields) == 0 {
		return core.NewDefinitionError("required_fields", "at least one field is required")
	}
	seen := make(map[string]bool, len(d.RequiredFields))
	for i, f := range d.RequiredFields {
		elem := fmt.Sprintf("required_fields[%d]", i)
		if f.Name == "" {
			return core.NewDefinitionError(elem, "field name must not be empty")
		}
		if seen[f.Name] {
			return core.NewDefinitionError(elem, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
		if f.Type != FieldNumeric {
			return core.NewDefinitionError(elem, fmt.Sprintf("unsupported field type %q", f.Type))
		}
		if f.Min != nil && !isFinite(*f.Min) {
			return core.NewDefinitionError(elem, "min must be finite")
		}
		if f.Max != nil && !isFinite(*f.Max) {
			return core.NewDefinitionError(elem, "max must be finite")
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return core.NewDefinitionError(elem, fmt.Sprintf("min %g exceeds max %g", *f.Min, *f.Max))
		}
	}
	return nil
}

func (d *Definition) validateMonotonicity() error {
	if d.Monotonicity == nil {
		return nil
	}
	if !d.hasField(d.Monotonicity.Field) {
		return core.NewDefinitionError("monotonicity.field",
			fmt.Sprintf("%q is not a declared field", d.Monotonicity.Field))
	}
	switch d.Monotonicity.Direction {
	case MonotonicNonIncreasing, MonotonicNonDecreasing:
		return nil
	}
	return core.NewDefinitionError("monotonicity.direction",
		fmt.Sprintf("unknown direction %q", d.Monotonicity.Direction))
}

func (d *Definition) validateStabilityFields() error {
	for i, sf := range d.StabilityFields {
		elem := fmt.Sprintf("stability_fields[%d]", i)
		if !d.hasField(sf.Name) {
			return core.NewDefinitionError(elem, fmt.Sprintf("%q is not a declared field", sf.Name))
		}
		if !isFinite(sf.MaxCV) || sf.MaxCV <= 0 {
			return core.NewDefinitionError(elem, fmt.Sprintf("max_cv must be finite and > 0, got %g", sf.MaxCV))
		}
	}
	return nil
}

func (d *Definition) validateModels() error {
	seen := make(map[ModelName]bool, len(d.CandidateModels))
	for i, m := range d.CandidateModels {
		elem := fmt.Sprintf("candidate_models[%d]", i)
		switch m.Name {
		case ModelCosineLoss, ModelFresnel, ModelPolynomial, ModelLinear, ModelExpDecay:
		default:
			return fmt.Errorf("%w: %s: %q", core.ErrUnknownModel, elem, m.Name)
		}
		if seen[m.Name] {
			return core.NewDefinitionError(elem, fmt.Sprintf("duplicate model %q", m.Name))
		}
		seen[m.Name] = true
		if len(m.Params) == 0 {
			return core.NewDefinitionError(elem, "params must not be empty")
		}
		if err := validateModelParams(elem, m); err != nil {
			return err
		}
		for _, p := range m.Params {
			b, ok := m.Bounds[p]
			if !ok {
				return core.NewDefinitionError(elem, fmt.Sprintf("missing bounds for parameter %q", p))
			}
			if !isFinite(b.Min) || !isFinite(b.Max) {
				return core.NewDefinitionError(elem, fmt.Sprintf("bounds for %q must be finite", p))
			}
			if b.Min > b.Max {
				return core.NewDefinitionError(elem, fmt.Sprintf("bounds for %q inverted: %g > %g", p, b.Min, b.Max))
			}
		}
	}
	return nil
}

// validateModelParams pins declared parameter names to what the fitter
// estimates, so fit bounds and fit.<param> criterion targets cannot drift
// from the model's actual output
func validateModelParams(elem string, m ModelSpec) error {
	if want, fixed := fixedModelParams[m.Name]; fixed {
		if len(m.Params) != len(want) {
			return core.NewDefinitionError(elem,
				fmt.Sprintf("model %q takes params %v, got %v", m.Name, want, m.Params))
		}
		for i := range want {
			if m.Params[i] != want[i] {
				return core.NewDefinitionError(elem,
					fmt.Sprintf("model %q takes params %v, got %v", m.Name, want, m.Params))
			}
		}
		return nil
	}

	// polynomial: ordered coefficients c0..cN, bounded degree
	if len(m.Params) > MaxPolynomialDegree+1 {
		return core.NewDefinitionError(elem,
			fmt.Sprintf("polynomial degree capped at %d, got %d coefficients", MaxPolynomialDegree, len(m.Params)))
	}
	for i, p := range m.Params {
		if p != fmt.Sprintf("c%d", i) {
			return core.NewDefinitionError(elem,
				fmt.Sprintf("polynomial params must be c0..cN in order, got %q at %d", p, i))
		}
	}
	return nil
}

func (d *Definition) validateStabilization() error {
	if d.Stabilization == nil {
		return nil
	}
	if d.Stabilization.Window < 2 {
		return core.NewDefinitionError("stabilization.window",
			fmt.Sprintf("must be >= 2, got %d", d.Stabilization.Window))
	}
	if !isFinite(d.Stabilization.EpsilonPct) || d.Stabilization.EpsilonPct <= 0 {
		return core.NewDefinitionError("stabilization.epsilon_pct",
			fmt.Sprintf("must be finite and > 0, got %g", d.Stabilization.EpsilonPct))
	}
	return nil
}

func (d *Definition) validateCriteria() error {
	targets := d.targetSet()
	seen := make(map[string]bool, len(d.Criteria))
	for i, c := range d.Criteria {
		elem := fmt.Sprintf("criteria[%d]", i)
		if c.ID == "" {
			return core.NewDefinitionError(elem, "id must not be empty")
		}
		if seen[c.ID] {
			return core.NewDefinitionError(elem, fmt.Sprintf("duplicate criterion id %q", c.ID))
		}
		seen[c.ID] = true
		if !ValidSeverity(c.Severity) {
			return core.NewDefinitionError(elem, fmt.Sprintf("unknown severity %q", c.Severity))
		}
		if !ValidOperator(c.Operator) {
			return fmt.Errorf("%w: %s: %q", core.ErrUnknownOperator, elem, c.Operator)
		}
		if !isFinite(c.Threshold) {
			return core.NewDefinitionError(elem, fmt.Sprintf("threshold must be finite, got %g", c.Threshold))
		}
		if c.Target == "" {
			return core.NewDefinitionError(elem, "target must not be empty")
		}
		if !targets[c.Target] {
			return fmt.Errorf("%w: %s: %q", core.ErrUnknownTarget, elem, c.Target)
		}
	}
	return nil
}

// targetSet enumerates every name a criterion may legally reference: the
// category's metric catalog plus fit addressing for declared model params.
func (d *Definition) targetSet() map[string]bool {
	set := make(map[string]bool)
	for _, m := range CategoryMetrics(d.Category) {
		set[m.String()] = true
	}
	set[FitTargetRSquared] = true
	for _, m := range d.CandidateModels {
		for _, p := range m.Params {
			set[FitTargetPrefix+p] = true
		}
	}
	return set
}

func (d *Definition) hasField(name string) bool {
	for _, f := range d.RequiredFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ============================================================================
// ACCESSORS
// ============================================================================

// StabilizationOrDefault returns the configured stabilization parameters,
// falling back to the standard window/epsilon when the document omits them
func (d *Definition) StabilizationOrDefault() StabilizationSpec {
	spec := StabilizationSpec{
		Window:     DefaultStabilizationWindow,
		EpsilonPct: DefaultStabilizationEpsilonPct,
	}
	if d.Stabilization != nil {
		if d.Stabilization.Window > 0 {
			spec.Window = d.Stabilization.Window
		}
		if d.Stabilization.EpsilonPct > 0 {
			spec.EpsilonPct = d.Stabilization.EpsilonPct
		}
	}
	return spec
}

// ResponseField names the primary response reading that model fitting runs
// against: the monotonicity field when declared, otherwise the first required
// field that is neither the independent variable nor a stability field.
func (d *Definition) ResponseField() string {
	if d.Monotonicity != nil {
		return d.Monotonicity.Field
	}
	stability := make(map[string]bool, len(d.StabilityFields))
	for _, sf := range d.StabilityFields {
		stability[sf.Name] = true
	}
	for _, f := range d.RequiredFields {
		if f.Name == d.IndependentVariable || stability[f.Name] {
			continue
		}
		return f.Name
	}
	return ""
}

// Field returns the spec for a declared field name
func (d *Definition) Field(name string) (FieldSpec, bool) {
	for _, f := range d.RequiredFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Model returns the spec for a declared candidate model
func (d *Definition) Model(name ModelName) (ModelSpec, bool) {
	for _, m := range d.CandidateModels {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// Key identifies a definition in caches and stores
func (d *Definition) Key() string {
	return d.ProtocolID.String() + "@" + d.Version
}

// Fingerprint returns a deterministic hash of the definition document
func (d *Definition) Fingerprint() core.DefinitionHash {
	data, err := json.Marshal(d)
	if err != nil {
		// Marshal of a validated definition cannot fail; guard anyway
		return core.NewDefinitionHash([]byte(d.Key()))
	}
	return core.NewDefinitionHash(data)
}
