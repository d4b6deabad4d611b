package testkit

import (
	"context"
	"sort"
	"sync"

	"pvqc/domain/core"
	"pvqc/domain/run"
)

// InMemoryRunStore is a ports.RunStore double backed by a map. Loads and
// saves exchange deep copies, so callers cannot reach the stored state
// through retained pointers, matching how a database adapter behaves.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[core.RunID]*run.TestRun
}

// NewInMemoryRunStore creates an empty store
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[core.RunID]*run.TestRun)}
}

// Load returns a copy of the stored run
func (s *InMemoryRunStore) Load(ctx context.Context, id core.RunID) (*run.TestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("test run", id.String())
	}
	return cloneRun(r), nil
}

// Save stores a copy of the run, inserting or replacing
func (s *InMemoryRunStore) Save(ctx context.Context, testRun *run.TestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[testRun.ID] = cloneRun(testRun)
	return nil
}

// ListByStatus returns copies of all runs in the given status, ordered by
// creation time then ID for deterministic sweeps
func (s *InMemoryRunStore) ListByStatus(ctx context.Context, status run.Status) ([]*run.TestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*run.TestRun
	for _, r := range s.runs {
		if r.Status == status {
			out = append(out, cloneRun(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Before(out[j].CreatedAt) {
			return true
		}
		if out[j].CreatedAt.Before(out[i].CreatedAt) {
			return false
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Delete removes a run
func (s *InMemoryRunStore) Delete(ctx context.Context, id core.RunID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return core.NewNotFoundError("test run", id.String())
	}
	delete(s.runs, id)
	return nil
}

// Count returns the number of stored runs
func (s *InMemoryRunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// cloneRun copies a run's mutable collections. The analysis result is shared
// by reference: results are immutable once set.
func cloneRun(r *run.TestRun) *run.TestRun {
	clone := *r
	clone.Series = make([]run.MeasurementSeries, len(r.Series))
	for i, s := range r.Series {
		points := make([]run.MeasurementPoint, len(s.Points))
		for j, p := range s.Points {
			readings := make(map[string]float64, len(p.Readings))
			for k, v := range p.Readings {
				readings[k] = v
			}
			points[j] = run.MeasurementPoint{Independent: p.Independent, Readings: readings}
		}
		clone.Series[i] = run.MeasurementSeries{Label: s.Label, Points: points}
	}
	return &clone
}
