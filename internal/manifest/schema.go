// Package manifest decodes dbt artifacts (manifest.json, catalog.json,
// run_results.json) of every supported schema version into one unified model.
package manifest

import (
	"strings"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// CodeStyle tells which physical fields hold model source text.
type CodeStyle int

// Code styles.
const (
	// CodeSQL uses raw_sql / compiled_sql (schema v1 to v6).
	CodeSQL CodeStyle = iota
	// CodeCode uses raw_code / compiled_code (schema v7 and later).
	CodeCode
)

// MetricShape tells how metric definitions are laid out.
type MetricShape int

// Metric shapes.
const (
	// MetricsNone means the manifest has no metrics section.
	MetricsNone MetricShape = iota
	// MetricsLegacy metrics carry sql and type.
	MetricsLegacy
	// MetricsExpression metrics carry expression and calculation_method.
	MetricsExpression
	// MetricsSemantic metrics carry type and type_params (semantic layer).
	MetricsSemantic
)

// Descriptor is the structural shape of one or more manifest schema versions.
type Descriptor struct {
	// Name is the shape name, e.g. "v5" for tags v4 and v5
	Name string
	// Tag is the version tag the document declared
	Tag     string
	Code    CodeStyle
	Metrics MetricShape
	// DropDocs empties the top-level docs map before decoding
	DropDocs bool
}

var (
	shapeV3  = Descriptor{Name: "v3", Code: CodeSQL, Metrics: MetricsNone}
	shapeV5  = Descriptor{Name: "v5", Code: CodeSQL, Metrics: MetricsLegacy}
	shapeV6  = Descriptor{Name: "v6", Code: CodeSQL, Metrics: MetricsLegacy}
	shapeV7  = Descriptor{Name: "v7", Code: CodeCode, Metrics: MetricsExpression}
	shapeV8  = Descriptor{Name: "v8", Code: CodeCode, Metrics: MetricsExpression}
	shapeV9  = Descriptor{Name: "v9", Code: CodeCode, Metrics: MetricsExpression}
	shapeV10 = Descriptor{Name: "v10", Code: CodeCode, Metrics: MetricsSemantic, DropDocs: true}
)

// Several tags share one shape; schema evolution is not linear.
var versionTable = []struct {
	tags  []string
	shape Descriptor
}{
	{[]string{"v1", "v2", "v3"}, shapeV3},
	{[]string{"v4", "v5"}, shapeV5},
	{[]string{"v6"}, shapeV6},
	{[]string{"v7"}, shapeV7},
	{[]string{"v8"}, shapeV8},
	{[]string{"v9"}, shapeV9},
	{[]string{"v10", "v11", "v12"}, shapeV10},
}

var versionIndex = func() map[string]Descriptor {
	idx := make(map[string]Descriptor)
	for _, row := range versionTable {
		for _, tag := range row.tags {
			idx[tag] = row.shape
		}
	}
	return idx
}()

// SupportedVersions returns the version tags LookupVersion accepts, oldest first.
func SupportedVersions() []string {
	var tags []string
	for _, row := range versionTable {
		tags = append(tags, row.tags...)
	}
	return tags
}

// VersionTag extracts the version segment of a schema URL:
// "https://schemas.getdbt.com/dbt/manifest/v7.json" yields "v7".
func VersionTag(schemaURL string) string {
	last := schemaURL
	if i := strings.LastIndex(schemaURL, "/"); i >= 0 {
		last = schemaURL[i+1:]
	}
	tag, _, _ := strings.Cut(last, ".")
	return tag
}

// LookupVersion returns the descriptor for a version tag.
func LookupVersion(tag string) (Descriptor, error) {
	d, ok := versionIndex[tag]
	if !ok {
		return Descriptor{}, &core.UnsupportedSchemaVersionError{Tag: tag}
	}
	d.Tag = tag
	return d, nil
}

// SelectSchema picks the descriptor for a raw manifest tree from its
// metadata.dbt_schema_version (or metadata.schema_version) field.
func SelectSchema(doc map[string]any) (Descriptor, error) {
	url, err := schemaURL(doc)
	if err != nil {
		return Descriptor{}, err
	}
	return LookupVersion(VersionTag(url))
}

func schemaURL(doc map[string]any) (string, error) {
	raw, ok := doc["metadata"]
	if !ok || raw == nil {
		return "", &core.MalformedDocumentError{Reason: "missing metadata block"}
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		return "", &core.MalformedDocumentError{Reason: "metadata is not an object"}
	}
	for _, key := range []string{"dbt_schema_version", "schema_version"} {
		if v, ok := meta[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", &core.MalformedDocumentError{Reason: "metadata has no schema version"}
}
