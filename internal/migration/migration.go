package migration

import (
	"context"
	"fmt"

	"pvqc/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createProtocolDefinitionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create protocol_definitions table")
	}

	if err := r.createTestRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create test_runs table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createProtocolDefinitionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS protocol_definitions (
			protocol_id VARCHAR(100) NOT NULL,
			version VARCHAR(20) NOT NULL,
			definition JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (protocol_id, version)
		)
	`)
	return err
}

func (r *MigrationRunner) createTestRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS test_runs (
			id UUID PRIMARY KEY,
			protocol_id VARCHAR(100) NOT NULL,
			protocol_version VARCHAR(20) NOT NULL,
			sample_id VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			series JSONB NOT NULL DEFAULT '[]'::jsonb,
			result JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_test_runs_status ON test_runs(status)",
		"CREATE INDEX IF NOT EXISTS idx_test_runs_sample_id ON test_runs(sample_id)",
		"CREATE INDEX IF NOT EXISTS idx_test_runs_protocol ON test_runs(protocol_id, protocol_version)",
		"CREATE INDEX IF NOT EXISTS idx_test_runs_created_at ON test_runs(created_at DESC)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
