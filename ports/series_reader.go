package ports

import (
	"context"

	"pvqc/domain/run"
)

// SeriesReader ingests measurement series from an external file source
// (spreadsheet or CSV exports from test-bench software)
type SeriesReader interface {
	Read(ctx context.Context, path string) (run.MeasurementSeries, error)
}
