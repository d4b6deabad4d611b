package testkit

import (
	"context"
	"sync"

	"pvqc/domain/core"
)

// FakeScorer is a ports.DefectScorer double with per-sample canned scores
// and optional failure injection
type FakeScorer struct {
	mu     sync.RWMutex
	scores map[core.SampleID]float64
	err    error
}

// NewFakeScorer creates a scorer with no scores
func NewFakeScorer() *FakeScorer {
	return &FakeScorer{scores: make(map[core.SampleID]float64)}
}

// SetScore registers the score returned for a sample
func (f *FakeScorer) SetScore(id core.SampleID, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[id] = score
}

// FailWith makes every Score call return err until cleared with nil
func (f *FakeScorer) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Score returns the canned score for the sample, ok=false when none is set
func (f *FakeScorer) Score(ctx context.Context, sampleID core.SampleID) (float64, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return 0, false, f.err
	}
	score, ok := f.scores[sampleID]
	return score, ok, nil
}
