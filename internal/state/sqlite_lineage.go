package state

import (
	"fmt"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// SaveEdges stores the lineage edges of a run. Duplicate edges are ignored.
func (s *SQLiteStore) SaveEdges(runID string, edges []core.LineageEdge) error {
	if s.db == nil {
		return errNotOpened
	}

	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx(),
		`INSERT OR IGNORE INTO lineage_edges (run_id, from_id, to_id, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx(), runID, string(e.From), string(e.To), string(e.Kind)); err != nil {
			return fmt.Errorf("failed to save edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edges: %w", err)
	}
	return nil
}

// ListEdges returns the lineage edges of a run.
func (s *SQLiteStore) ListEdges(runID string) ([]core.LineageEdge, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT from_id, to_id, kind FROM lineage_edges WHERE run_id = ? ORDER BY from_id, to_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []core.LineageEdge
	for rows.Next() {
		var from, to, kind string
		if err := rows.Scan(&from, &to, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, core.LineageEdge{From: core.EntityID(from), To: core.EntityID(to), Kind: core.EdgeKind(kind)})
	}
	return edges, rows.Err()
}
