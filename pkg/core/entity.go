package core

import "strings"

// EntityType is the kind of a catalog entity. Its name prefixes every EntityID.
type EntityType string

// Entity type constants.
const (
	EntityTypeDataset       EntityType = "DATASET"
	EntityTypeVirtualView   EntityType = "VIRTUAL_VIEW"
	EntityTypePerson        EntityType = "PERSON"
	EntityTypeGroup         EntityType = "GROUP"
	EntityTypeKnowledgeCard EntityType = "KNOWLEDGE_CARD"
	EntityTypeMetric        EntityType = "METRIC"
)

// EntityID is the opaque, stable identifier of a catalog entity, formatted as
// "{type}~{DIGEST}". It is comparable and used as the join key for lineage.
type EntityID string

// Type returns the entity type prefix of the ID, or "" for a malformed ID.
func (id EntityID) Type() EntityType {
	kind, _, ok := strings.Cut(string(id), "~")
	if !ok {
		return ""
	}
	return EntityType(kind)
}

// String implements fmt.Stringer.
func (id EntityID) String() string { return string(id) }

// LogicalKey is a typed logical identity that can be turned into an EntityID.
// Attributes must omit absent values; identity derivation relies on it.
type LogicalKey interface {
	EntityType() EntityType
	Attributes() map[string]any
}

// DataPlatform identifies the physical platform hosting a dataset.
type DataPlatform string

// Known data platforms.
const (
	PlatformBigQuery   DataPlatform = "BIGQUERY"
	PlatformDatabricks DataPlatform = "DATABRICKS"
	PlatformMSSQL      DataPlatform = "MSSQL"
	PlatformMySQL      DataPlatform = "MYSQL"
	PlatformPostgreSQL DataPlatform = "POSTGRESQL"
	PlatformRedshift   DataPlatform = "REDSHIFT"
	PlatformSnowflake  DataPlatform = "SNOWFLAKE"
	PlatformSynapse    DataPlatform = "SYNAPSE"
	PlatformTrino      DataPlatform = "TRINO"
	PlatformUnknown    DataPlatform = "UNKNOWN"
)

var knownPlatforms = map[DataPlatform]struct{}{
	PlatformBigQuery:   {},
	PlatformDatabricks: {},
	PlatformMSSQL:      {},
	PlatformMySQL:      {},
	PlatformPostgreSQL: {},
	PlatformRedshift:   {},
	PlatformSnowflake:  {},
	PlatformSynapse:    {},
	PlatformTrino:      {},
	PlatformUnknown:    {},
}

// adapterAliases maps dbt adapter names that differ from the platform name.
var adapterAliases = map[string]DataPlatform{
	"POSTGRES":  PlatformPostgreSQL,
	"SQLSERVER": PlatformMSSQL,
	"SPARK":     PlatformDatabricks,
}

// ParsePlatform maps a dbt adapter type (e.g. "snowflake", "postgres") to a
// DataPlatform. The boolean is false when the adapter is not recognised, in
// which case PlatformUnknown is returned.
func ParsePlatform(adapterType string) (DataPlatform, bool) {
	upper := strings.ToUpper(strings.TrimSpace(adapterType))
	if p, ok := adapterAliases[upper]; ok {
		return p, true
	}
	p := DataPlatform(upper)
	if _, ok := knownPlatforms[p]; ok && p != PlatformUnknown {
		return p, true
	}
	return PlatformUnknown, false
}

// VirtualViewType distinguishes the kinds of non-physical views.
type VirtualViewType string

// Virtual view types.
const (
	VirtualViewDbtModel          VirtualViewType = "DBT_MODEL"
	VirtualViewLookerExplore     VirtualViewType = "LOOKER_EXPLORE"
	VirtualViewLookerView        VirtualViewType = "LOOKER_VIEW"
	VirtualViewTableauDatasource VirtualViewType = "TABLEAU_DATASOURCE"
)

// MetricType distinguishes metric definitions by origin.
type MetricType string

// MetricDbtMetric is a metric defined in a dbt project.
const MetricDbtMetric MetricType = "DBT_METRIC"

// DatasetLogicalID identifies a physical dataset.
type DatasetLogicalID struct {
	// Name is the normalized dotted name (database.schema.table, lowercase)
	Name     string       `json:"name"`
	Platform DataPlatform `json:"platform"`
	// Account qualifies the platform connection (e.g. Snowflake account)
	Account string `json:"account,omitempty"`
}

// EntityType implements LogicalKey.
func (DatasetLogicalID) EntityType() EntityType { return EntityTypeDataset }

// Attributes implements LogicalKey.
func (l DatasetLogicalID) Attributes() map[string]any {
	attrs := map[string]any{"name": l.Name, "platform": string(l.Platform)}
	if l.Account != "" {
		attrs["account"] = l.Account
	}
	return attrs
}

// VirtualViewLogicalID identifies a virtual view.
type VirtualViewLogicalID struct {
	Name string          `json:"name"`
	Type VirtualViewType `json:"type"`
}

// EntityType implements LogicalKey.
func (VirtualViewLogicalID) EntityType() EntityType { return EntityTypeVirtualView }

// Attributes implements LogicalKey.
func (l VirtualViewLogicalID) Attributes() map[string]any {
	return map[string]any{"name": l.Name, "type": string(l.Type)}
}

// PersonLogicalID identifies a person by email.
type PersonLogicalID struct {
	Email string `json:"email"`
}

// EntityType implements LogicalKey.
func (PersonLogicalID) EntityType() EntityType { return EntityTypePerson }

// Attributes implements LogicalKey.
func (l PersonLogicalID) Attributes() map[string]any {
	return map[string]any{"email": l.Email}
}

// GroupLogicalID identifies a group by name.
type GroupLogicalID struct {
	GroupName string `json:"groupName"`
}

// EntityType implements LogicalKey.
func (GroupLogicalID) EntityType() EntityType { return EntityTypeGroup }

// Attributes implements LogicalKey.
func (l GroupLogicalID) Attributes() map[string]any {
	return map[string]any{"groupName": l.GroupName}
}

// KnowledgeCardLogicalID identifies a knowledge card.
type KnowledgeCardLogicalID struct {
	ID string `json:"id"`
}

// EntityType implements LogicalKey.
func (KnowledgeCardLogicalID) EntityType() EntityType { return EntityTypeKnowledgeCard }

// Attributes implements LogicalKey.
func (l KnowledgeCardLogicalID) Attributes() map[string]any {
	return map[string]any{"id": l.ID}
}

// MetricLogicalID identifies a metric definition.
type MetricLogicalID struct {
	Name string     `json:"name"`
	Type MetricType `json:"type"`
}

// EntityType implements LogicalKey.
func (MetricLogicalID) EntityType() EntityType { return EntityTypeMetric }

// Attributes implements LogicalKey.
func (l MetricLogicalID) Attributes() map[string]any {
	return map[string]any{"name": l.Name, "type": string(l.Type)}
}
