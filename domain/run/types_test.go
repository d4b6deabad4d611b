package run

import (
	"errors"
	"testing"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
)

func newDraftRun(t *testing.T) *TestRun {
	t.Helper()
	r, err := NewTestRun(core.ProtocolID("LETID-6892"), "2.1", core.SampleID("MOD-0042"))
	if err != nil {
		t.Fatalf("NewTestRun failed: %v", err)
	}
	return r
}

func pointsFor(independent ...float64) []MeasurementPoint {
	pts := make([]MeasurementPoint, len(independent))
	for i, iv := range independent {
		pts[i] = MeasurementPoint{
			Independent: iv,
			Readings:    map[string]float64{"pmax": 360.0 - iv*0.01},
		}
	}
	return pts
}

// TestLifecycleHappyPath walks a run through every forward state.
func TestLifecycleHappyPath(t *testing.T) {
	r := newDraftRun(t)
	if r.Status != StatusDraft {
		t.Fatalf("Expected draft, got %s", r.Status)
	}

	if err := r.AttachSeries(NewMeasurementSeries("exposure", pointsFor(0, 24, 48))); err != nil {
		t.Fatalf("AttachSeries failed: %v", err)
	}
	if r.Status != StatusDataEntry {
		t.Fatalf("Expected data_entry after first attach, got %s", r.Status)
	}

	for _, next := range []Status{StatusValidated, StatusAnalyzed, StatusReported, StatusArchived} {
		if err := r.Transition(next); err != nil {
			t.Fatalf("Transition to %s failed: %v", next, err)
		}
	}
}

// TestTransitionRejectsSkips verifies states cannot be skipped or replayed.
func TestTransitionRejectsSkips(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"draft cannot jump to analyzed", StatusDraft, StatusAnalyzed},
		{"draft cannot error", StatusDraft, StatusError},
		{"validated cannot go back to data_entry", StatusValidated, StatusDataEntry},
		{"analyzed cannot error", StatusAnalyzed, StatusError},
		{"archived is terminal", StatusArchived, StatusReported},
		{"reported cannot revert by transition", StatusReported, StatusDraft},
		{"unknown state", StatusValidated, Status("frozen")},
	}

	for _, test := range tests {
		r := newDraftRun(t)
		r.Status = test.from
		err := r.Transition(test.to)
		if err == nil {
			t.Errorf("%s: expected transition error", test.name)
			continue
		}
		if !core.IsTransitionError(err) {
			t.Errorf("%s: expected transition error, got %v", test.name, err)
		}
	}
}

// TestErrorOnlyFromConfigFaultStates verifies error is reachable from
// data_entry and validated only.
func TestErrorOnlyFromConfigFaultStates(t *testing.T) {
	for _, from := range []Status{StatusDataEntry, StatusValidated} {
		r := newDraftRun(t)
		r.Status = from
		if err := r.MarkError("criterion QC-9 references unknown target"); err != nil {
			t.Errorf("MarkError from %s failed: %v", from, err)
		}
		if r.ErrorMessage == "" {
			t.Errorf("Expected error message recorded from %s", from)
		}
	}

	for _, from := range []Status{StatusDraft, StatusAnalyzed, StatusReported, StatusArchived} {
		r := newDraftRun(t)
		r.Status = from
		if err := r.MarkError("boom"); err == nil {
			t.Errorf("Expected MarkError from %s to fail", from)
		}
	}
}

// TestRevertToDraftClearsAnalysisState checks the single backward edge.
func TestRevertToDraftClearsAnalysisState(t *testing.T) {
	r := newDraftRun(t)
	if err := r.AttachSeries(NewMeasurementSeries("exposure", pointsFor(0, 24, 48))); err != nil {
		t.Fatal(err)
	}
	r.Status = StatusAnalyzed
	r.SetResult(&analysis.Result{RunID: r.ID, OverallStatus: analysis.OverallPass})

	if err := r.RevertToDraft(); err != nil {
		t.Fatalf("RevertToDraft failed: %v", err)
	}
	if r.Status != StatusDraft {
		t.Errorf("Expected draft, got %s", r.Status)
	}
	if r.Result != nil {
		t.Error("Expected analysis result cleared")
	}
	if len(r.Series) != 1 {
		t.Error("Expected measurements retained for correction")
	}

	// Published runs stay immutable
	for _, from := range []Status{StatusReported, StatusArchived} {
		rr := newDraftRun(t)
		rr.Status = from
		if err := rr.RevertToDraft(); err == nil {
			t.Errorf("Expected revert from %s to fail", from)
		}
	}
}

// TestAttachSeriesRejectedAfterValidation verifies measurement immutability
// past data entry.
func TestAttachSeriesRejectedAfterValidation(t *testing.T) {
	r := newDraftRun(t)
	r.Status = StatusValidated

	err := r.AttachSeries(NewMeasurementSeries("late", pointsFor(72)))
	if !errors.Is(err, core.ErrRunImmutable) {
		t.Fatalf("Expected ErrRunImmutable, got %v", err)
	}
}

// TestReplaceSeries verifies in-place correction during data entry.
func TestReplaceSeries(t *testing.T) {
	r := newDraftRun(t)
	if err := r.AttachSeries(NewMeasurementSeries("exposure", pointsFor(0, 24))); err != nil {
		t.Fatal(err)
	}

	if err := r.ReplaceSeries(0, NewMeasurementSeries("exposure", pointsFor(0, 24, 48))); err != nil {
		t.Fatalf("ReplaceSeries failed: %v", err)
	}
	if r.Series[0].Len() != 3 {
		t.Errorf("Expected 3 points after replace, got %d", r.Series[0].Len())
	}

	if err := r.ReplaceSeries(5, NewMeasurementSeries("exposure", nil)); !errors.Is(err, core.ErrSeriesNotFound) {
		t.Errorf("Expected ErrSeriesNotFound, got %v", err)
	}
}

// TestSortedDoesNotMutate verifies Sorted returns a copy.
func TestSortedDoesNotMutate(t *testing.T) {
	series := NewMeasurementSeries("scan", pointsFor(60, 0, 30))

	sorted := series.Sorted()
	if !sorted.IsSorted() {
		t.Error("Expected sorted copy to be ascending")
	}
	if series.Points[0].Independent != 60 {
		t.Error("Sorted must not mutate the receiver")
	}
	if got := sorted.IndependentValues(); got[0] != 0 || got[1] != 30 || got[2] != 60 {
		t.Errorf("Unexpected order: %v", got)
	}
}

// TestSeriesFingerprintTracksContent checks fingerprints move with the data.
func TestSeriesFingerprintTracksContent(t *testing.T) {
	a := NewMeasurementSeries("scan", pointsFor(0, 30, 60))
	b := NewMeasurementSeries("scan", pointsFor(0, 30, 60))

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Identical series must share a fingerprint")
	}

	b.Points[2].Readings["pmax"] = 1.0
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("Changed reading must change the fingerprint")
	}
}
