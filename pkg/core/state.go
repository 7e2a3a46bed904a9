package core

import "time"

// Store defines the interface for run history persistence.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(source RunSource) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, warnings int, errMsg string) error
	GetLatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Entity operations
	SaveEntities(runID string, entities []*EntityRecord) error
	ListEntities(runID string) ([]*EntityRecord, error)
	GetEntity(runID string, id EntityID) (*EntityRecord, error)

	// Lineage operations
	SaveEdges(runID string, edges []LineageEdge) error
	ListEdges(runID string) ([]LineageEdge, error)
}

// RunStatus represents the status of an extraction run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDegraded  RunStatus = "degraded"
	RunStatusFailed    RunStatus = "failed"
)

// RunSource describes the artifact an extraction run read.
type RunSource struct {
	ManifestURI   string
	ManifestHash  string
	SchemaVersion string
}

// Run represents one extraction of a manifest.
type Run struct {
	ID string
	RunSource
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Warnings    int
}

// EntityRecord is a finalized entity as stored for a run.
// Payload is the JSON encoding of its MetadataChangeEvent.
type EntityRecord struct {
	ID      EntityID
	Type    EntityType
	Name    string
	Payload []byte
}

// EdgeKind classifies a lineage edge.
type EdgeKind string

// Edge kinds.
const (
	EdgeSourceDataset   EdgeKind = "source_dataset"   // view or metric reads a dataset
	EdgeSourceModel     EdgeKind = "source_model"     // view or metric reads a model
	EdgeDatasetUpstream EdgeKind = "dataset_upstream" // dataset is derived from a dataset
)

// LineageEdge is a directed depends-on relation: To depends on From.
type LineageEdge struct {
	From EntityID `json:"from"`
	To   EntityID `json:"to"`
	Kind EdgeKind `json:"kind"`
}
