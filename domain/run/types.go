package run

import (
	"fmt"
	"sort"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
)

// ============================================================================
// LIFECYCLE
// ============================================================================

// Status is the lifecycle state of a test run
type Status string

const (
	StatusDraft     Status = "draft"
	StatusDataEntry Status = "data_entry"
	StatusValidated Status = "validated"
	StatusAnalyzed  Status = "analyzed"
	StatusReported  Status = "reported"
	StatusArchived  Status = "archived"
	StatusError     Status = "error"
)

// forwardTransitions is the allowed forward edge set. error is reachable only
// from the states where a configuration fault can surface; ordinary data
// issues keep a run in validated.
var forwardTransitions = map[Status][]Status{
	StatusDraft:     {StatusDataEntry},
	StatusDataEntry: {StatusValidated, StatusError},
	StatusValidated: {StatusAnalyzed, StatusError},
	StatusAnalyzed:  {StatusReported},
	StatusReported:  {StatusArchived},
}

// revertibleStates are the states revert_to_draft may leave. Published runs
// (reported, archived) stay immutable.
var revertibleStates = map[Status]bool{
	StatusDataEntry: true,
	StatusValidated: true,
	StatusAnalyzed:  true,
	StatusError:     true,
}

// ValidStatus reports whether s is a known lifecycle state
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusDataEntry, StatusValidated, StatusAnalyzed,
		StatusReported, StatusArchived, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether the forward edge s -> to exists
func (s Status) CanTransition(to Status) bool {
	for _, next := range forwardTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ============================================================================
// MEASUREMENTS
// ============================================================================

// MeasurementPoint is one observation: an independent-variable value with
// its named readings
type MeasurementPoint struct {
	Independent float64            `json:"independent_value"`
	Readings    map[string]float64 `json:"readings"`
}

// MeasurementSeries is an ordered sequence of points for one scan/exposure.
// Points are kept ascending by independent value once validated.
type MeasurementSeries struct {
	Label  string             `json:"label"`
	Points []MeasurementPoint `json:"points"`
}

// NewMeasurementSeries creates a labeled series
func NewMeasurementSeries(label string, points []MeasurementPoint) MeasurementSeries {
	return MeasurementSeries{Label: label, Points: points}
}

// Len returns the point count
func (s *MeasurementSeries) Len() int { return len(s.Points) }

// IsSorted reports whether points are ascending by independent value
func (s *MeasurementSeries) IsSorted() bool {
	return sort.SliceIsSorted(s.Points, func(i, j int) bool {
		return s.Points[i].Independent < s.Points[j].Independent
	})
}

// Sorted returns a copy of the series with points ascending by independent
// value. The receiver is never mutated.
func (s *MeasurementSeries) Sorted() MeasurementSeries {
	points := make([]MeasurementPoint, len(s.Points))
	copy(points, s.Points)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Independent < points[j].Independent
	})
	return MeasurementSeries{Label: s.Label, Points: points}
}

// IndependentValues returns the independent values in point order
func (s *MeasurementSeries) IndependentValues() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Independent
	}
	return out
}

// ReadingValues returns one field's values in point order. Missing readings
// are skipped; callers needing presence checks walk Points directly.
func (s *MeasurementSeries) ReadingValues(field string) []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if v, ok := p.Readings[field]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Fingerprint returns a deterministic hash of the series content
func (s *MeasurementSeries) Fingerprint() core.SeriesHash {
	independent := s.IndependentValues()
	readings := make([]map[string]float64, len(s.Points))
	for i, p := range s.Points {
		readings[i] = p.Readings
	}
	return core.ComputeSeriesHash(independent, readings)
}

// ============================================================================
// TEST RUN
// ============================================================================

// TestRun binds a sample to a protocol and carries its measurements through
// the lifecycle. Stages never mutate a run concurrently.
type TestRun struct {
	ID              core.RunID          `json:"id"`
	ProtocolID      core.ProtocolID     `json:"protocol_id"`
	ProtocolVersion string              `json:"protocol_version"`
	SampleID        core.SampleID       `json:"sample_id"`
	Status          Status              `json:"status"`
	Series          []MeasurementSeries `json:"series"`
	Result          *analysis.Result    `json:"result,omitempty"` // set once analyzed
	ErrorMessage    string              `json:"error_message,omitempty"`
	CreatedAt       core.Timestamp      `json:"created_at"`
	UpdatedAt       core.Timestamp      `json:"updated_at"`
}

// NewTestRun creates a draft run bound to a protocol and sample
func NewTestRun(protocolID core.ProtocolID, protocolVersion string, sampleID core.SampleID) (*TestRun, error) {
	if protocolID.String() == "" {
		return nil, core.NewDefinitionError("protocol_id", "must not be empty")
	}
	if protocolVersion == "" {
		return nil, core.NewDefinitionError("protocol_version", "must not be empty")
	}
	if sampleID.String() == "" {
		return nil, fmt.Errorf("sample ID cannot be empty")
	}
	now := core.Now()
	return &TestRun{
		ID:              core.RunID(core.NewID()),
		ProtocolID:      protocolID,
		ProtocolVersion: protocolVersion,
		SampleID:        sampleID,
		Status:          StatusDraft,
		Series:          []MeasurementSeries{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Transition advances the run along a forward edge
func (r *TestRun) Transition(to Status) error {
	if !ValidStatus(to) {
		return core.NewTransitionError(string(r.Status), string(to))
	}
	if !r.Status.CanTransition(to) {
		return core.NewTransitionError(string(r.Status), string(to))
	}
	r.Status = to
	r.UpdatedAt = core.Now()
	return nil
}

// AttachSeries adds measurement data. The first attachment moves a draft run
// into data_entry; later lifecycle states reject new measurements.
func (r *TestRun) AttachSeries(series MeasurementSeries) error {
	if r.Status != StatusDraft && r.Status != StatusDataEntry {
		return fmt.Errorf("%w: status %s", core.ErrRunImmutable, r.Status)
	}
	r.Series = append(r.Series, series)
	if r.Status == StatusDraft {
		r.Status = StatusDataEntry
	}
	r.UpdatedAt = core.Now()
	return nil
}

// ReplaceSeries swaps the series at index i during data correction
func (r *TestRun) ReplaceSeries(i int, series MeasurementSeries) error {
	if r.Status != StatusDraft && r.Status != StatusDataEntry {
		return fmt.Errorf("%w: status %s", core.ErrRunImmutable, r.Status)
	}
	if i < 0 || i >= len(r.Series) {
		return core.ErrSeriesNotFound
	}
	r.Series[i] = series
	if r.Status == StatusDraft {
		r.Status = StatusDataEntry
	}
	r.UpdatedAt = core.Now()
	return nil
}

// Primary returns the series the analysis pipeline operates on
func (r *TestRun) Primary() (MeasurementSeries, bool) {
	if len(r.Series) == 0 {
		return MeasurementSeries{}, false
	}
	return r.Series[0], true
}

// SetResult records the analysis outcome on an analyzed run
func (r *TestRun) SetResult(result *analysis.Result) {
	r.Result = result
	r.UpdatedAt = core.Now()
}

// MarkError records a fatal configuration fault. Only reachable from
// data_entry and validated.
func (r *TestRun) MarkError(msg string) error {
	if err := r.Transition(StatusError); err != nil {
		return err
	}
	r.ErrorMessage = msg
	return nil
}

// RevertToDraft is the single backward transition: it returns the run to
// draft for correction and resubmission, clearing downstream analysis state.
// Measurements are retained so the caller can fix them in place.
func (r *TestRun) RevertToDraft() error {
	if !revertibleStates[r.Status] {
		return core.NewTransitionError(string(r.Status), string(StatusDraft))
	}
	r.Status = StatusDraft
	r.Result = nil
	r.ErrorMessage = ""
	r.UpdatedAt = core.Now()
	return nil
}
