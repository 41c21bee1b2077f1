package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/KevinKickass/GiraIoTCore/internal/units"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS gira_sessions (
	id          UUID PRIMARY KEY,
	host        TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	stopped_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS gira_functions (
	function_id  TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	trade        TEXT NOT NULL,
	data_points  JSONB NOT NULL,
	session_id   UUID NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS gira_point_values (
	function_id TEXT NOT NULL,
	point_id    TEXT NOT NULL,
	raw_value   TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (function_id, point_id)
);
`

// EnsureSchema creates the tables when they do not exist.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// StartSession records a new session.
func (p *PostgresClient) StartSession(ctx context.Context, id uuid.UUID, host string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO gira_sessions (id, host, started_at)
		VALUES ($1, $2, $3)
	`, id, host, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// StopSession marks a session as stopped.
func (p *PostgresClient) StopSession(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE gira_sessions SET stopped_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// SaveCatalog upserts the function descriptors of a session in one transaction.
func (p *PostgresClient) SaveCatalog(ctx context.Context, sessionID uuid.UUID, functions []*types.FunctionDescriptor) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, fn := range functions {
		dataPoints, err := json.Marshal(fn.DataPoints)
		if err != nil {
			return fmt.Errorf("failed to marshal data points of %s: %w", fn.ID, err)
		}
		batch.Queue(`
			INSERT INTO gira_functions (function_id, display_name, trade, data_points, session_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (function_id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				trade        = EXCLUDED.trade,
				data_points  = EXCLUDED.data_points,
				session_id   = EXCLUDED.session_id,
				updated_at   = EXCLUDED.updated_at
		`, fn.ID, fn.DisplayName, string(fn.Trade), dataPoints, sessionID, now)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert catalog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveValues upserts the latest raw value of every point. No history is kept.
func (p *PostgresClient) SaveValues(ctx context.Context, functionID string, values types.PointValues) error {
	if len(values) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for pid, raw := range values {
		batch.Queue(`
			INSERT INTO gira_point_values (function_id, point_id, raw_value, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (function_id, point_id) DO UPDATE SET
				raw_value  = EXCLUDED.raw_value,
				updated_at = EXCLUDED.updated_at
		`, functionID, pid, units.RawString(raw), now)
	}

	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert values of %s: %w", functionID, err)
	}
	return nil
}

// LoadValues returns the persisted snapshot.
func (p *PostgresClient) LoadValues(ctx context.Context) (types.ValueSnapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT function_id, point_id, raw_value FROM gira_point_values
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	snapshot := make(types.ValueSnapshot)
	for rows.Next() {
		var fid, pid, raw string
		if err := rows.Scan(&fid, &pid, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		if snapshot[fid] == nil {
			snapshot[fid] = make(types.PointValues)
		}
		snapshot[fid][pid] = raw
	}
	return snapshot, rows.Err()
}
