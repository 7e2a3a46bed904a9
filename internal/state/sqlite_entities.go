package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// SaveEntities stores the entities of a run in one transaction. Saving an
// entity twice replaces it.
func (s *SQLiteStore) SaveEntities(runID string, entities []*core.EntityRecord) error {
	if s.db == nil {
		return errNotOpened
	}

	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx(),
		`INSERT OR REPLACE INTO entities (run_id, entity_id, entity_type, name, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entities {
		if _, err := stmt.ExecContext(ctx(), runID, string(e.ID), string(e.Type), e.Name, e.Payload); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	s.logger.Debug("saved entities", slog.String("run", runID), slog.Int("count", len(entities)))
	return nil
}

// ListEntities returns the entities of a run ordered by type, then name.
func (s *SQLiteStore) ListEntities(runID string) ([]*core.EntityRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT entity_id, entity_type, name, payload FROM entities WHERE run_id = ? ORDER BY entity_type, name, entity_id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.EntityRecord
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntity retrieves one entity of a run.
func (s *SQLiteStore) GetEntity(runID string, id core.EntityID) (*core.EntityRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	e, err := scanEntity(s.db.QueryRowContext(ctx(),
		`SELECT entity_id, entity_type, name, payload FROM entities WHERE run_id = ? AND entity_id = ?`,
		runID, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

func scanEntity(row scanner) (*core.EntityRecord, error) {
	var (
		e       core.EntityRecord
		id, typ string
	)
	if err := row.Scan(&id, &typ, &e.Name, &e.Payload); err != nil {
		return nil, err
	}
	e.ID = core.EntityID(id)
	e.Type = core.EntityType(typ)
	return &e, nil
}
