package core

import "time"

// Dataset is a physical table or view on a data platform.
// Every facet is optional; passes fill in what they know and never clear
// what an earlier pass already set.
type Dataset struct {
	LogicalID           DatasetLogicalID      `json:"logicalId"`
	Schema              *DatasetSchema        `json:"schema,omitempty"`
	Documentation       *DatasetDocumentation `json:"documentation,omitempty"`
	Statistics          *DatasetStatistics    `json:"statistics,omitempty"`
	OwnershipAssignment *OwnershipAssignment  `json:"ownershipAssignment,omitempty"`
	TagAssignment       *TagAssignment        `json:"tagAssignment,omitempty"`
	Upstream            *DatasetUpstream      `json:"upstream,omitempty"`
}

// SchemaType describes the kind of schema a dataset carries.
type SchemaType string

// SchemaTypeSQL is the schema type of relational tables.
const SchemaTypeSQL SchemaType = "SQL"

// DatasetSchema holds the columns of a dataset.
type DatasetSchema struct {
	SchemaType  SchemaType    `json:"schemaType,omitempty"`
	Description string        `json:"description,omitempty"`
	Fields      []SchemaField `json:"fields,omitempty"`
}

// SchemaField is one column. FieldPath is the lower-cased column name.
type SchemaField struct {
	FieldPath   string `json:"fieldPath"`
	Description string `json:"description,omitempty"`
	NativeType  string `json:"nativeType,omitempty"`
}

// NativeTypeNotSet is recorded when the source does not declare a column type.
const NativeTypeNotSet = "Not Set"

// DatasetDocumentation holds free-text documentation for a dataset.
type DatasetDocumentation struct {
	DatasetDocumentations []string             `json:"datasetDocumentations,omitempty"`
	FieldDocumentations   []FieldDocumentation `json:"fieldDocumentations,omitempty"`
}

// FieldDocumentation documents a single column.
type FieldDocumentation struct {
	FieldPath     string `json:"fieldPath"`
	Documentation string `json:"documentation,omitempty"`
}

// DatasetStatistics holds table-level statistics. DataSize is in megabytes.
type DatasetStatistics struct {
	RecordCount *float64   `json:"recordCount,omitempty"`
	DataSize    *float64   `json:"dataSize,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// DatasetUpstream records physical lineage of a dataset.
type DatasetUpstream struct {
	SourceDatasets []string `json:"sourceDatasets,omitempty"`
	SourceCodeURL  string   `json:"sourceCodeUrl,omitempty"`
}

// Ownership assigns a person to an entity under a named ownership type.
type Ownership struct {
	ContactDesignationName string `json:"contactDesignationName"`
	Person                 string `json:"person"`
	Type                   string `json:"type,omitempty"`
}

// OwnershipAssignment groups the ownerships of an entity.
type OwnershipAssignment struct {
	Ownerships []Ownership `json:"ownerships,omitempty"`
}

// TagAssignment groups the governance tags of an entity.
type TagAssignment struct {
	TagNames []string `json:"tagNames,omitempty"`
}

// VirtualView is a non-physical, dataset-like entity such as a dbt model.
type VirtualView struct {
	LogicalID VirtualViewLogicalID `json:"logicalId"`
	DbtModel  *DbtModel            `json:"dbtModel,omitempty"`
}

// DbtModel is the dbt facet of a VirtualView.
type DbtModel struct {
	Name            string              `json:"name,omitempty"`
	PackageName     string              `json:"packageName,omitempty"`
	Description     string              `json:"description,omitempty"`
	URL             string              `json:"url,omitempty"`
	DocsURL         string              `json:"docsUrl,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
	RawSQL          string              `json:"rawSql,omitempty"`
	CompiledSQL     string              `json:"compiledSql,omitempty"`
	Materialization *DbtMaterialization `json:"materialization,omitempty"`
	Fields          []SchemaField       `json:"fields,omitempty"`
	SourceDatasets  []string            `json:"sourceDatasets,omitempty"`
	SourceModels    []string            `json:"sourceModels,omitempty"`
	Macros          []DbtMacro          `json:"macros,omitempty"`
	Tests           []DbtTest           `json:"tests,omitempty"`
}

// DbtMaterialization describes how a model is persisted.
type DbtMaterialization struct {
	Type MaterializationType `json:"type"`
	// TargetDataset is the EntityID of the Dataset the model writes to
	TargetDataset string `json:"targetDataset,omitempty"`
}

// DbtMacro is a resolved macro record. It travels with dependency edges so
// consumers see the macro body, not just its ID.
type DbtMacro struct {
	Name            string             `json:"name"`
	UniqueID        string             `json:"uniqueId"`
	PackageName     string             `json:"packageName,omitempty"`
	Description     string             `json:"description,omitempty"`
	Arguments       []DbtMacroArgument `json:"arguments,omitempty"`
	SQL             string             `json:"sql,omitempty"`
	DependsOnMacros []string           `json:"dependsOnMacros,omitempty"`
}

// DbtMacroArgument is one declared macro argument.
type DbtMacroArgument struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// TestStatus is the outcome of the latest run of a dbt test.
type TestStatus string

// Test status constants.
const (
	TestStatusPass    TestStatus = "PASS"
	TestStatusWarn    TestStatus = "WARN"
	TestStatusFail    TestStatus = "FAIL"
	TestStatusError   TestStatus = "ERROR"
	TestStatusSkipped TestStatus = "SKIPPED"
	TestStatusUnknown TestStatus = "UNKNOWN"
)

// DbtTest is a lightweight test record attached to the model it tests.
type DbtTest struct {
	Name            string     `json:"name"`
	UniqueID        string     `json:"uniqueId"`
	Columns         []string   `json:"columns,omitempty"`
	DependsOnMacros []string   `json:"dependsOnMacros,omitempty"`
	SQL             string     `json:"sql,omitempty"`
	Status          TestStatus `json:"status,omitempty"`
	LastRunAt       *time.Time `json:"lastRunAt,omitempty"`
}

// Metric is a business metric definition.
type Metric struct {
	LogicalID MetricLogicalID `json:"logicalId"`
	DbtMetric *DbtMetric      `json:"dbtMetric,omitempty"`
}

// DbtMetric is the dbt facet of a Metric.
type DbtMetric struct {
	PackageName    string         `json:"packageName,omitempty"`
	Description    string         `json:"description,omitempty"`
	Label          string         `json:"label,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	TimeGrains     []string       `json:"timeGrains,omitempty"`
	Dimensions     []string       `json:"dimensions,omitempty"`
	Filters        []MetricFilter `json:"filters,omitempty"`
	URL            string         `json:"url,omitempty"`
	SQL            string         `json:"sql,omitempty"`
	Type           string         `json:"type,omitempty"`
	SourceDatasets []string       `json:"sourceDatasets,omitempty"`
	SourceModels   []string       `json:"sourceModels,omitempty"`
}

// MetricFilter is a field/operator/value predicate on a metric.
type MetricFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}
