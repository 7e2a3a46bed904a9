package registry

import (
	"strings"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
)

// Accumulator holds every entity of one extraction run. Datasets are keyed
// by EntityID (normalized name, platform and account); virtual views and
// metrics by their opaque source ID.
type Accumulator struct {
	Platform core.DataPlatform
	Account  string

	Datasets     *Arena[core.Dataset]
	VirtualViews *Arena[core.VirtualView]
	Metrics      *Arena[core.Metric]
}

// NewAccumulator creates an empty accumulator for datasets on platform.
func NewAccumulator(platform core.DataPlatform, account string) *Accumulator {
	return &Accumulator{
		Platform:     platform,
		Account:      account,
		Datasets:     NewArena[core.Dataset](),
		VirtualViews: NewArena[core.VirtualView](),
		Metrics:      NewArena[core.Metric](),
	}
}

// DatasetID returns the EntityID of the dataset at database.schema.table.
func (a *Accumulator) DatasetID(database, schema, table string) core.EntityID {
	return identity.DatasetIDFor(a.Platform, a.Account, database, schema, table)
}

// Dataset returns the dataset at database.schema.table, creating it if needed.
func (a *Accumulator) Dataset(database, schema, table string) *core.Dataset {
	logical := core.DatasetLogicalID{
		Name:     identity.NormalizedName(database, schema, table),
		Platform: a.Platform,
		Account:  a.Account,
	}
	return a.Datasets.GetOrCreate(string(identity.Of(logical)), func() *core.Dataset {
		return &core.Dataset{LogicalID: logical}
	})
}

// ModelViewName returns the virtual view name of a model: its unique ID
// without the "model." prefix.
func ModelViewName(uniqueID string) string {
	return strings.TrimPrefix(uniqueID, "model.")
}

// VirtualViewID returns the EntityID of the view declared for a model ID.
func VirtualViewID(uniqueID string) core.EntityID {
	return identity.VirtualViewID(ModelViewName(uniqueID), core.VirtualViewDbtModel)
}

// DeclareVirtualView creates the empty view for a model ID. The boolean
// reports whether the view is new.
func (a *Accumulator) DeclareVirtualView(uniqueID string) (*core.VirtualView, bool) {
	return a.VirtualViews.Declare(uniqueID, func() *core.VirtualView {
		return &core.VirtualView{LogicalID: core.VirtualViewLogicalID{
			Name: ModelViewName(uniqueID),
			Type: core.VirtualViewDbtModel,
		}}
	})
}

// Metric returns the metric for a metric ID, creating it if needed.
func (a *Accumulator) Metric(uniqueID string) *core.Metric {
	return a.Metrics.GetOrCreate(uniqueID, func() *core.Metric {
		return &core.Metric{LogicalID: core.MetricLogicalID{Name: uniqueID, Type: core.MetricDbtMetric}}
	})
}

// Entities is the finalized output of a run.
type Entities struct {
	Datasets     []*core.Dataset
	VirtualViews []*core.VirtualView
	Metrics      []*core.Metric
}

// Drain hands every entity to the caller and empties the accumulator.
func (a *Accumulator) Drain() Entities {
	return Entities{
		Datasets:     a.Datasets.Drain(),
		VirtualViews: a.VirtualViews.Drain(),
		Metrics:      a.Metrics.Drain(),
	}
}

// Len returns the total number of entities.
func (e Entities) Len() int {
	return len(e.Datasets) + len(e.VirtualViews) + len(e.Metrics)
}

// Events converts the entities to metadata change events, datasets first.
func (e Entities) Events() []core.MetadataChangeEvent {
	events := make([]core.MetadataChangeEvent, 0, e.Len())
	for _, d := range e.Datasets {
		events = append(events, core.MetadataChangeEvent{Dataset: d})
	}
	for _, v := range e.VirtualViews {
		events = append(events, core.MetadataChangeEvent{VirtualView: v})
	}
	for _, m := range e.Metrics {
		events = append(events, core.MetadataChangeEvent{Metric: m})
	}
	return events
}

// MergeField merges f into fields by FieldPath. Description and native type
// are filled only where missing; NativeTypeNotSet counts as missing.
func MergeField(fields []core.SchemaField, f core.SchemaField) []core.SchemaField {
	return Upsert(fields, f,
		func(s core.SchemaField) string { return s.FieldPath },
		func(existing *core.SchemaField, v core.SchemaField) {
			SetString(&existing.Description, v.Description)
			if existing.NativeType == core.NativeTypeNotSet && v.NativeType != core.NativeTypeNotSet && v.NativeType != "" {
				existing.NativeType = v.NativeType
			}
			SetString(&existing.NativeType, v.NativeType)
		})
}

// MergeFieldDoc merges a column documentation by FieldPath.
func MergeFieldDoc(docs []core.FieldDocumentation, d core.FieldDocumentation) []core.FieldDocumentation {
	return Upsert(docs, d,
		func(f core.FieldDocumentation) string { return f.FieldPath },
		func(existing *core.FieldDocumentation, v core.FieldDocumentation) {
			SetString(&existing.Documentation, v.Documentation)
		})
}

// MergeOwnership adds an ownership unless the same person already holds the
// same designation.
func MergeOwnership(owners []core.Ownership, o core.Ownership) []core.Ownership {
	return Upsert(owners, o,
		func(x core.Ownership) string { return x.ContactDesignationName + "\x00" + x.Person },
		func(*core.Ownership, core.Ownership) {})
}

// MergeTest merges a test record by unique ID.
func MergeTest(tests []core.DbtTest, t core.DbtTest) []core.DbtTest {
	return Upsert(tests, t,
		func(x core.DbtTest) string { return x.UniqueID },
		func(existing *core.DbtTest, v core.DbtTest) {
			SetString(&existing.Name, v.Name)
			SetString(&existing.SQL, v.SQL)
			existing.Columns = AppendUnique(existing.Columns, v.Columns...)
			existing.DependsOnMacros = AppendUnique(existing.DependsOnMacros, v.DependsOnMacros...)
		})
}

// MergeMacro merges a macro record by unique ID.
func MergeMacro(macros []core.DbtMacro, m core.DbtMacro) []core.DbtMacro {
	return Upsert(macros, m,
		func(x core.DbtMacro) string { return x.UniqueID },
		func(*core.DbtMacro, core.DbtMacro) {})
}
