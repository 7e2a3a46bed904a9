package manifest

import (
	"fmt"
	"strings"
)

// NodeKind classifies a manifest node by its resource_type.
type NodeKind int

// Node kinds.
const (
	KindUnknown NodeKind = iota
	KindModel
	KindTest
	KindSeed
	KindSnapshot
	KindSource
	KindMacro
	KindMetric
	KindAnalysis
	KindOperation
)

var kindNames = map[string]NodeKind{
	"model":     KindModel,
	"test":      KindTest,
	"seed":      KindSeed,
	"snapshot":  KindSnapshot,
	"source":    KindSource,
	"macro":     KindMacro,
	"metric":    KindMetric,
	"analysis":  KindAnalysis,
	"operation": KindOperation,
	"rpc":       KindOperation,
	"sql":       KindOperation,
}

// ParseKind maps a resource_type to a NodeKind.
func ParseKind(resourceType string) NodeKind {
	return kindNames[strings.ToLower(resourceType)]
}

func (k NodeKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindTest:
		return "test"
	case KindSeed:
		return "seed"
	case KindSnapshot:
		return "snapshot"
	case KindSource:
		return "source"
	case KindMacro:
		return "macro"
	case KindMetric:
		return "metric"
	case KindAnalysis:
		return "analysis"
	case KindOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// Opaque ID prefixes used in depends_on lists.
const (
	PrefixModel  = "model."
	PrefixSource = "source."
	PrefixMacro  = "macro."
	PrefixMetric = "metric."
)

// Manifest is the unified, version-independent form of manifest.json.
// All cross-references are opaque ID strings.
type Manifest struct {
	Schema   Descriptor         `mapstructure:"-"`
	Metadata Metadata           `mapstructure:"metadata"`
	Nodes    map[string]*Node   `mapstructure:"nodes"`
	Sources  map[string]*Source `mapstructure:"sources"`
	Macros   map[string]*Macro  `mapstructure:"macros"`
	Metrics  map[string]*Metric `mapstructure:"metrics"`

	// Invalid lists entries dropped during decoding.
	Invalid []*EntryError `mapstructure:"-"`
}

// EntryError reports a single manifest entry that did not match the schema.
type EntryError struct {
	Section string
	ID      string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s entry %s does not match schema: %v", e.Section, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Metadata is the artifact metadata block.
type Metadata struct {
	DbtSchemaVersion string `mapstructure:"dbt_schema_version"`
	DbtVersion       string `mapstructure:"dbt_version"`
	GeneratedAt      string `mapstructure:"generated_at"`
	InvocationID     string `mapstructure:"invocation_id"`
	ProjectID        string `mapstructure:"project_id"`
	AdapterType      string `mapstructure:"adapter_type"`
}

// DependsOn lists the opaque IDs a node depends on.
type DependsOn struct {
	Nodes  []string `mapstructure:"nodes"`
	Macros []string `mapstructure:"macros"`
}

// Column is a declared column of a node or source.
type Column struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	DataType    string         `mapstructure:"data_type"`
	Meta        map[string]any `mapstructure:"meta"`
	Tags        []string       `mapstructure:"tags"`
}

// NodeConfig is the subset of node config the harvester reads.
type NodeConfig struct {
	Enabled      *bool          `mapstructure:"enabled"`
	Materialized string         `mapstructure:"materialized"`
	Alias        string         `mapstructure:"alias"`
	Schema       string         `mapstructure:"schema"`
	Database     string         `mapstructure:"database"`
	Meta         map[string]any `mapstructure:"meta"`
	Tags         []string       `mapstructure:"tags"`
}

// Node is any entry of the manifest nodes map: model, test, seed, snapshot,
// analysis or operation. Fields that moved between schema versions are read
// through accessors.
type Node struct {
	UniqueID         string            `mapstructure:"unique_id"`
	ResourceType     string            `mapstructure:"resource_type"`
	Name             string            `mapstructure:"name"`
	Alias            string            `mapstructure:"alias"`
	Database         string            `mapstructure:"database"`
	Schema           string            `mapstructure:"schema"`
	PackageName      string            `mapstructure:"package_name"`
	Path             string            `mapstructure:"path"`
	OriginalFilePath string            `mapstructure:"original_file_path"`
	Description      string            `mapstructure:"description"`
	Tags             []string          `mapstructure:"tags"`
	Meta             map[string]any    `mapstructure:"meta"`
	Config           *NodeConfig       `mapstructure:"config"`
	Columns          map[string]Column `mapstructure:"columns"`
	DependsOn        *DependsOn        `mapstructure:"depends_on"`
	ColumnName       string            `mapstructure:"column_name"`
	Language         string            `mapstructure:"language"`

	RawSQLField       string `mapstructure:"raw_sql"`
	CompiledSQLField  string `mapstructure:"compiled_sql"`
	RawCodeField      string `mapstructure:"raw_code"`
	CompiledCodeField string `mapstructure:"compiled_code"`

	Kind NodeKind  `mapstructure:"-"`
	code CodeStyle `mapstructure:"-"`
}

// RawSQL returns the uncompiled source text, wherever the schema version keeps it.
func (n *Node) RawSQL() string {
	if n.code == CodeCode {
		return n.RawCodeField
	}
	return n.RawSQLField
}

// CompiledSQL returns the compiled source text, wherever the schema version keeps it.
func (n *Node) CompiledSQL() string {
	if n.code == CodeCode {
		return n.CompiledCodeField
	}
	return n.CompiledSQLField
}

// EffectiveMeta returns config.meta when set, otherwise the top-level meta.
// Early schemas only have the latter.
func (n *Node) EffectiveMeta() map[string]any {
	if n.Config != nil && len(n.Config.Meta) > 0 {
		return n.Config.Meta
	}
	return n.Meta
}

// RelationName returns the alias when set, otherwise the node name.
func (n *Node) RelationName() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// DependencyNodes returns depends_on.nodes, or nil.
func (n *Node) DependencyNodes() []string {
	if n.DependsOn == nil {
		return nil
	}
	return n.DependsOn.Nodes
}

// DependencyMacros returns depends_on.macros, or nil.
func (n *Node) DependencyMacros() []string {
	if n.DependsOn == nil {
		return nil
	}
	return n.DependsOn.Macros
}

// Source is a declared source table.
type Source struct {
	UniqueID         string            `mapstructure:"unique_id"`
	Name             string            `mapstructure:"name"`
	SourceName       string            `mapstructure:"source_name"`
	Identifier       string            `mapstructure:"identifier"`
	Database         string            `mapstructure:"database"`
	Schema           string            `mapstructure:"schema"`
	PackageName      string            `mapstructure:"package_name"`
	OriginalFilePath string            `mapstructure:"original_file_path"`
	Description      string            `mapstructure:"description"`
	Loader           string            `mapstructure:"loader"`
	Tags             []string          `mapstructure:"tags"`
	Meta             map[string]any    `mapstructure:"meta"`
	Columns          map[string]Column `mapstructure:"columns"`
}

// Table returns the physical table name: the identifier, or the source name.
func (s *Source) Table() string {
	if s.Identifier != "" {
		return s.Identifier
	}
	return s.Name
}

// MacroArgument is a declared macro argument.
type MacroArgument struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Description string `mapstructure:"description"`
}

// Macro is a macro definition.
type Macro struct {
	UniqueID    string          `mapstructure:"unique_id"`
	Name        string          `mapstructure:"name"`
	PackageName string          `mapstructure:"package_name"`
	Description string          `mapstructure:"description"`
	MacroSQL    string          `mapstructure:"macro_sql"`
	Arguments   []MacroArgument `mapstructure:"arguments"`
	DependsOn   *DependsOn      `mapstructure:"depends_on"`
}

// DependencyMacros returns depends_on.macros, or nil.
func (m *Macro) DependencyMacros() []string {
	if m.DependsOn == nil {
		return nil
	}
	return m.DependsOn.Macros
}

// MetricFilter is a field/operator/value predicate. Value is rendered as text
// whatever its JSON type.
type MetricFilter struct {
	Field    string `mapstructure:"field"`
	Operator string `mapstructure:"operator"`
	Value    string `mapstructure:"value"`
}

// Metric is a metric definition in any of the metric shapes.
type Metric struct {
	UniqueID    string         `mapstructure:"unique_id"`
	Name        string         `mapstructure:"name"`
	PackageName string         `mapstructure:"package_name"`
	Description string         `mapstructure:"description"`
	Label       string         `mapstructure:"label"`
	Tags        []string       `mapstructure:"tags"`
	Meta        map[string]any `mapstructure:"meta"`
	Timestamp   string         `mapstructure:"timestamp"`
	TimeGrains  []string       `mapstructure:"time_grains"`
	Dimensions  []string       `mapstructure:"dimensions"`
	Filters     []MetricFilter `mapstructure:"filters"`
	DependsOn   *DependsOn     `mapstructure:"depends_on"`

	SQL               string         `mapstructure:"sql"`
	Type              string         `mapstructure:"type"`
	Expression        string         `mapstructure:"expression"`
	CalculationMethod string         `mapstructure:"calculation_method"`
	TypeParams        map[string]any `mapstructure:"type_params"`

	shape MetricShape `mapstructure:"-"`
}

// Definition returns the metric's defining text and its calculation type,
// reading whichever fields the metric shape uses.
func (m *Metric) Definition() (sql, calculation string) {
	switch m.shape {
	case MetricsLegacy:
		return m.SQL, m.Type
	case MetricsExpression:
		return m.Expression, m.CalculationMethod
	case MetricsSemantic:
		return semanticExpression(m.TypeParams), m.Type
	default:
		return "", ""
	}
}

func semanticExpression(params map[string]any) string {
	if expr, ok := params["expr"].(string); ok && expr != "" {
		return expr
	}
	switch measure := params["measure"].(type) {
	case string:
		return measure
	case map[string]any:
		if name, ok := measure["name"].(string); ok {
			return name
		}
	}
	return ""
}

// DependencyNodes returns depends_on.nodes, or nil.
func (m *Metric) DependencyNodes() []string {
	if m.DependsOn == nil {
		return nil
	}
	return m.DependsOn.Nodes
}
