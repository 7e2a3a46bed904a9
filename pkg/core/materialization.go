package core

import "strings"

// MaterializationType is how dbt persists a model.
type MaterializationType string

// Materialization types. Anything dbt reports that is not listed maps to
// MaterializationOther.
const (
	MaterializationTable       MaterializationType = "TABLE"
	MaterializationView        MaterializationType = "VIEW"
	MaterializationIncremental MaterializationType = "INCREMENTAL"
	MaterializationEphemeral   MaterializationType = "EPHEMERAL"
	MaterializationSnapshot    MaterializationType = "SNAPSHOT"
	MaterializationOther       MaterializationType = "OTHER"
)

// ParseMaterialization maps a free-text materialization (e.g. "table",
// "materialized_view") to a MaterializationType. It never fails.
func ParseMaterialization(s string) MaterializationType {
	switch t := MaterializationType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MaterializationTable, MaterializationView, MaterializationIncremental,
		MaterializationEphemeral, MaterializationSnapshot:
		return t
	default:
		return MaterializationOther
	}
}

// Persisted reports whether the materialization produces a physical dataset.
func (t MaterializationType) Persisted() bool {
	return t != MaterializationEphemeral && t != MaterializationOther
}
