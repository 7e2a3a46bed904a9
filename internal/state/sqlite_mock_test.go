package state

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	errDisk := errors.New("disk I/O error")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *SQLiteStore) error
		errMsg    string
	}{
		{
			name: "create run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO runs").WillReturnError(errDisk)
			},
			call: func(s *SQLiteStore) error {
				_, err := s.CreateRun(core.RunSource{ManifestURI: "m.json"})
				return err
			},
			errMsg: "failed to create run",
		},
		{
			name: "complete unknown run",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			call: func(s *SQLiteStore) error {
				return s.CompleteRun("missing", core.RunStatusCompleted, 0, "")
			},
			errMsg: "run not found",
		},
		{
			name: "entity insert rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare("INSERT OR REPLACE INTO entities").
					ExpectExec().WillReturnError(errDisk)
				mock.ExpectRollback()
			},
			call: func(s *SQLiteStore) error {
				return s.SaveEntities("run", []*core.EntityRecord{{ID: "DATASET~A", Type: core.EntityTypeDataset}})
			},
			errMsg: "failed to save entity DATASET~A",
		},
		{
			name: "edge commit fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare("INSERT OR IGNORE INTO lineage_edges").
					ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit().WillReturnError(errDisk)
			},
			call: func(s *SQLiteStore) error {
				return s.SaveEdges("run", []core.LineageEdge{{From: "A", To: "B", Kind: core.EdgeSourceModel}})
			},
			errMsg: "failed to commit edges",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMock(mock)

			err = tt.call(NewWithDB(db, nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
