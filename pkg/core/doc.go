// Package core defines the shared language of the metadata harvester.
//
// This package contains:
//   - Logical identities (DatasetLogicalID, VirtualViewLogicalID, ...)
//   - Catalog entities (Dataset, VirtualView, Metric) and their dbt facets
//   - The MetadataChangeEvent envelope handed to output sinks
//   - The error taxonomy shared by parsers and extractors
//   - Run history types used by the state store
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
