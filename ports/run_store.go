package ports

import (
	"context"

	"pvqc/domain/core"
	"pvqc/domain/run"
)

// RunStore defines the storage collaborator contract for test runs. The
// engine never persists anything itself; callers load a run, invoke the
// pipeline, and save the mutated run back.
type RunStore interface {
	Load(ctx context.Context, id core.RunID) (*run.TestRun, error)
	Save(ctx context.Context, testRun *run.TestRun) error
	ListByStatus(ctx context.Context, status run.Status) ([]*run.TestRun, error)
	Delete(ctx context.Context, id core.RunID) error
}
