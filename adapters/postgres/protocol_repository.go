package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pvqc/domain/core"
	"pvqc/domain/protocol"

	"github.com/jmoiron/sqlx"
)

// ProtocolRepositoryImpl implements ProtocolSource for PostgreSQL. Definitions
// are stored as JSONB documents keyed by (protocol_id, version); the registry
// validates them after fetch, so rows are persisted as-is.
type ProtocolRepositoryImpl struct {
	db *sqlx.DB
}

// NewProtocolRepository creates a new PostgreSQL protocol source
func NewProtocolRepository(db *sqlx.DB) *ProtocolRepositoryImpl {
	return &ProtocolRepositoryImpl{db: db}
}

// Fetch retrieves one definition document by id and version
func (r *ProtocolRepositoryImpl) Fetch(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error) {
	var definitionJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT definition FROM protocol_definitions
		WHERE protocol_id = $1 AND version = $2`, id.String(), version).Scan(&definitionJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("protocol definition", fmt.Sprintf("%s@%s", id, version))
		}
		return nil, fmt.Errorf("failed to fetch protocol %s@%s: %w", id, version, err)
	}

	var def protocol.Definition
	if err := json.Unmarshal(definitionJSON, &def); err != nil {
		return nil, fmt.Errorf("failed to decode protocol %s@%s: %w", id, version, err)
	}
	return &def, nil
}

// List returns every stored definition, ordered by id then version
func (r *ProtocolRepositoryImpl) List(ctx context.Context) ([]*protocol.Definition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT definition FROM protocol_definitions
		ORDER BY protocol_id ASC, version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	defer rows.Close()

	var defs []*protocol.Definition
	for rows.Next() {
		var definitionJSON []byte
		if err := rows.Scan(&definitionJSON); err != nil {
			return nil, err
		}
		var def protocol.Definition
		if err := json.Unmarshal(definitionJSON, &def); err != nil {
			return nil, fmt.Errorf("failed to decode protocol row: %w", err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// Store upserts a definition document, used when registering or amending
// protocols from files
func (r *ProtocolRepositoryImpl) Store(ctx context.Context, def *protocol.Definition) error {
	definitionJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode protocol %s: %w", def.Key(), err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO protocol_definitions (protocol_id, version, definition, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (protocol_id, version) DO UPDATE SET
			definition = EXCLUDED.definition,
			updated_at = NOW()`,
		def.ProtocolID.String(), def.Version, definitionJSON)
	if err != nil {
		return fmt.Errorf("failed to store protocol %s: %w", def.Key(), err)
	}
	return nil
}
