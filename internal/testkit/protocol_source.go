package testkit

import (
	"context"
	"sort"
	"sync"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// StaticProtocolSource is a ports.ProtocolSource double serving definitions
// from a map
type StaticProtocolSource struct {
	mu   sync.RWMutex
	defs map[string]*protocol.Definition
}

// NewStaticProtocolSource creates a source preloaded with definitions
func NewStaticProtocolSource(defs ...*protocol.Definition) *StaticProtocolSource {
	s := &StaticProtocolSource{defs: make(map[string]*protocol.Definition)}
	for _, d := range defs {
		s.Add(d)
	}
	return s
}

// Add registers a definition, replacing any previous version
func (s *StaticProtocolSource) Add(def *protocol.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Key()] = def
}

// Fetch returns the definition for id@version
func (s *StaticProtocolSource) Fetch(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := id.String() + "@" + version
	def, ok := s.defs[key]
	if !ok {
		return nil, core.NewNotFoundError("protocol definition", key)
	}
	return def, nil
}

// List returns every definition in key order
func (s *StaticProtocolSource) List(ctx context.Context) ([]*protocol.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.defs))
	for k := range s.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*protocol.Definition, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.defs[k])
	}
	return out, nil
}

func floatPtr(v float64) *float64 { return &v }

// IAMDefinition returns the angle-resolved incidence protocol the suites
// test against: a cosine-loss/Fresnel candidate pair over a 0-90 degree
// sweep under stable irradiance.
func IAMDefinition() *protocol.Definition {
	return &protocol.Definition{
		ProtocolID: "IAM-2104",
		Version:    "1.0",
		Category:   protocol.CategoryAngular,
		RequiredFields: []protocol.FieldSpec{
			{Name: "incidence_angle", Type: protocol.FieldNumeric, Unit: "deg", Min: floatPtr(0), Max: floatPtr(90)},
			{Name: "relative_transmission", Type: protocol.FieldNumeric, Unit: "ratio", Min: floatPtr(0), Max: floatPtr(1.2)},
			{Name: "irradiance", Type: protocol.FieldNumeric, Unit: "W/m2", Min: floatPtr(0), Max: floatPtr(1500)},
		},
		MinPoints:           5,
		IndependentVariable: "incidence_angle",
		Monotonicity: &protocol.MonotonicitySpec{
			Field:     "relative_transmission",
			Direction: protocol.MonotonicNonIncreasing,
		},
		StabilityFields: []protocol.StabilityField{{Name: "irradiance", MaxCV: 0.02}},
		CandidateModels: []protocol.ModelSpec{
			{
				Name:   protocol.ModelCosineLoss,
				Params: []string{"b0"},
				Bounds: map[string]protocol.ParamBounds{"b0": {Min: 0, Max: 0.3}},
			},
			{
				Name:   protocol.ModelFresnel,
				Params: []string{"a_r"},
				Bounds: map[string]protocol.ParamBounds{"a_r": {Min: 0.05, Max: 0.4}},
			},
		},
		Criteria: []protocol.QCCriterion{
			{
				ID: "IAM-R2", Description: "selected model explains the sweep",
				Severity: protocol.SeverityFail, Target: "fit.r_squared",
				Operator: protocol.OpGreaterOrEqual, Threshold: 0.99,
			},
			{
				ID: "IAM-B0", Description: "incidence loss coefficient in range",
				Severity: protocol.SeverityWarning, Target: "fit.b0",
				Operator: protocol.OpLessOrEqual, Threshold: 0.07,
			},
		},
	}
}

// LeTIDDefinition returns the temporal degradation protocol: power tracked
// over exposure hours at held module temperature, with trend candidates and
// stabilization detection.
func LeTIDDefinition() *protocol.Definition {
	return &protocol.Definition{
		ProtocolID: "LETID-6892",
		Version:    "1.0",
		Category:   protocol.CategoryTemporal,
		RequiredFields: []protocol.FieldSpec{
			{Name: "exposure_hours", Type: protocol.FieldNumeric, Unit: "h", Min: floatPtr(0)},
			{Name: "pmax", Type: protocol.FieldNumeric, Unit: "W", Min: floatPtr(0), Max: floatPtr(1000)},
			{Name: "vmp", Type: protocol.FieldNumeric, Unit: "V", Min: floatPtr(0), Max: floatPtr(100)},
			{Name: "imp", Type: protocol.FieldNumeric, Unit: "A", Min: floatPtr(0), Max: floatPtr(25)},
			{Name: "voc", Type: protocol.FieldNumeric, Unit: "V", Min: floatPtr(0), Max: floatPtr(100)},
			{Name: "isc", Type: protocol.FieldNumeric, Unit: "A", Min: floatPtr(0), Max: floatPtr(25)},
			{Name: "module_temp", Type: protocol.FieldNumeric, Unit: "C", Min: floatPtr(0), Max: floatPtr(100)},
		},
		MinPoints:           10,
		IndependentVariable: "exposure_hours",
		StabilityFields:     []protocol.StabilityField{{Name: "module_temp", MaxCV: 0.02}},
		CandidateModels: []protocol.ModelSpec{
			{
				Name:   protocol.ModelLinear,
				Params: []string{"slope", "intercept"},
				Bounds: map[string]protocol.ParamBounds{
					"slope":     {Min: -1, Max: 1},
					"intercept": {Min: 0, Max: 200},
				},
			},
			{
				Name:   protocol.ModelExpDecay,
				Params: []string{"a", "b"},
				Bounds: map[string]protocol.ParamBounds{
					"a": {Min: 0, Max: 200},
					"b": {Min: -0.1, Max: 0},
				},
			},
		},
		Stabilization: &protocol.StabilizationSpec{Window: 48, EpsilonPct: 0.5},
		Criteria: []protocol.QCCriterion{
			{
				ID: "LETID-DEG", Description: "power loss within limit",
				Severity: protocol.SeverityFail, Target: "degradation_pct",
				Operator: protocol.OpGreaterOrEqual, Threshold: -5,
			},
			{
				ID: "LETID-STAB", Description: "power stabilizes within the test window",
				Severity: protocol.SeverityWarning, Target: "stabilization_hours",
				Operator: protocol.OpLessOrEqual, Threshold: 500,
			},
			{
				ID: "LETID-R2", Description: "trend model quality",
				Severity: protocol.SeverityInfo, Target: "fit.r_squared",
				Operator: protocol.OpGreaterOrEqual, Threshold: 0.8,
			},
		},
	}
}

// BifacialDefinition returns the paired-sample bifaciality protocol:
// front/rear power pairs across irradiance levels, no model fitting, with a
// defect-score gate.
func BifacialDefinition() *protocol.Definition {
	return &protocol.Definition{
		ProtocolID: "BIFI-1522",
		Version:    "1.0",
		Category:   protocol.CategoryPaired,
		RequiredFields: []protocol.FieldSpec{
			{Name: "irradiance", Type: protocol.FieldNumeric, Unit: "W/m2", Min: floatPtr(0), Max: floatPtr(1500)},
			{Name: "front_pmax", Type: protocol.FieldNumeric, Unit: "W", Min: floatPtr(0), Max: floatPtr(1000)},
			{Name: "rear_pmax", Type: protocol.FieldNumeric, Unit: "W", Min: floatPtr(0), Max: floatPtr(1000)},
		},
		MinPoints:           3,
		IndependentVariable: "irradiance",
		Monotonicity: &protocol.MonotonicitySpec{
			Field:     "front_pmax",
			Direction: protocol.MonotonicNonDecreasing,
		},
		Criteria: []protocol.QCCriterion{
			{
				ID: "BIFI-PHI", Description: "bifaciality factor floor",
				Severity: protocol.SeverityFail, Target: "bifaciality_factor",
				Operator: protocol.OpGreaterOrEqual, Threshold: 0.65,
			},
			{
				ID: "BIFI-DEFECT", Description: "defect severity within acceptance",
				Severity: protocol.SeverityFail, Target: "defect_severity_score",
				Operator: protocol.OpLessOrEqual, Threshold: 5.0,
			},
		},
	}
}
