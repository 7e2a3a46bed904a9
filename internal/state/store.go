// Package state persists extraction runs in SQLite: one row per run, the
// finalized entities of each run, and its lineage edges.
package state

import "github.com/leapstack-labs/leapmeta/pkg/core"

var _ core.Store = (*SQLiteStore)(nil)
