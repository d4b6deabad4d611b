package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/run"
	"pvqc/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunStore for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run store
func NewRunRepository(db *sqlx.DB) ports.RunStore {
	return &RunRepositoryImpl{db: db}
}

// Save upserts the whole run row. Series and result travel as JSONB documents;
// a series carrying non-finite readings cannot be encoded and fails the save.
func (r *RunRepositoryImpl) Save(ctx context.Context, testRun *run.TestRun) error {
	seriesJSON, err := json.Marshal(testRun.Series)
	if err != nil {
		return fmt.Errorf("failed to encode series for run %s: %w", testRun.ID, err)
	}

	var resultJSON []byte
	if testRun.Result != nil {
		resultJSON, err = json.Marshal(testRun.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result for run %s: %w", testRun.ID, err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO test_runs (
			id, protocol_id, protocol_version, sample_id, status,
			series, result, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			series = EXCLUDED.series,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`,
		testRun.ID.String(), testRun.ProtocolID.String(), testRun.ProtocolVersion,
		testRun.SampleID.String(), string(testRun.Status),
		seriesJSON, resultJSON, testRun.ErrorMessage,
		testRun.CreatedAt.Time(), testRun.UpdatedAt.Time())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", testRun.ID, err)
	}
	return nil
}

// Load retrieves a run by ID
func (r *RunRepositoryImpl) Load(ctx context.Context, id core.RunID) (*run.TestRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, protocol_id, protocol_version, sample_id, status,
		       series, result, error_message, created_at, updated_at
		FROM test_runs
		WHERE id = $1`, id.String())

	testRun, err := scanRun(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("test run", id.String())
		}
		return nil, err
	}
	return testRun, nil
}

// ListByStatus returns all runs in the given lifecycle state, oldest first
func (r *RunRepositoryImpl) ListByStatus(ctx context.Context, status run.Status) ([]*run.TestRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, protocol_id, protocol_version, sample_id, status,
		       series, result, error_message, created_at, updated_at
		FROM test_runs
		WHERE status = $1
		ORDER BY created_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs by status %s: %w", status, err)
	}
	defer rows.Close()

	var runs []*run.TestRun
	for rows.Next() {
		testRun, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, testRun)
	}
	return runs, rows.Err()
}

// Delete removes a run
func (r *RunRepositoryImpl) Delete(ctx context.Context, id core.RunID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM test_runs WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NewNotFoundError("test run", id.String())
	}
	return nil
}

func scanRun(scan func(dest ...interface{}) error) (*run.TestRun, error) {
	var (
		testRun              run.TestRun
		id, protocolID       string
		sampleID, status     string
		seriesJSON           []byte
		resultJSON           []byte
		createdAt, updatedAt time.Time
	)

	err := scan(&id, &protocolID, &testRun.ProtocolVersion, &sampleID, &status,
		&seriesJSON, &resultJSON, &testRun.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	testRun.ID = core.RunID(id)
	testRun.ProtocolID = core.ProtocolID(protocolID)
	testRun.SampleID = core.SampleID(sampleID)
	testRun.Status = run.Status(status)
	testRun.CreatedAt = core.NewTimestamp(createdAt)
	testRun.UpdatedAt = core.NewTimestamp(updatedAt)

	if err := json.Unmarshal(seriesJSON, &testRun.Series); err != nil {
		return nil, fmt.Errorf("failed to decode series for run %s: %w", id, err)
	}
	if len(resultJSON) > 0 {
		var result analysis.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode result for run %s: %w", id, err)
		}
		testRun.Result = &result
	}
	return &testRun, nil
}
