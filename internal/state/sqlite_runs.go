package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

const runColumns = `id, manifest_uri, manifest_hash, schema_version, status, started_at, completed_at, warnings, error`

// CreateRun records the start of an extraction.
func (s *SQLiteStore) CreateRun(source core.RunSource) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &core.Run{
		ID:        generateID(),
		RunSource: source,
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("manifest", source.ManifestURI))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO runs (id, manifest_uri, manifest_hash, schema_version, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, source.ManifestURI, source.ManifestHash, source.SchemaVersion, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, warnings int, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.db.ExecContext(ctx(),
		`UPDATE runs SET status = ?, completed_at = ?, warnings = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), warnings, nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %w: %s", core.ErrNotFound, id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run, or nil if there is none.
func (s *SQLiteStore) GetLatestRun() (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(),
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*core.Run, error) {
	var (
		run         core.Run
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	err := row.Scan(&run.ID, &run.ManifestURI, &run.ManifestHash, &run.SchemaVersion,
		&status, &run.StartedAt, &completedAt, &run.Warnings, &errMsg)
	if err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return &run, nil
}
