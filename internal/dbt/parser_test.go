package dbt

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/manifest"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/internal/testutil"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rawEventsID     = identity.DatasetIDFor(core.PlatformSnowflake, "", "DB", "PUBLIC", "raw_events")
	summaryTableID  = identity.DatasetIDFor(core.PlatformSnowflake, "", "DB", "ANALYTICS", "events_summary")
	summaryViewID   = registry.VirtualViewID("model.proj.events_summary")
	stagingViewID   = registry.VirtualViewID("model.proj.stg_events")
	summaryModelKey = "model.proj.events_summary"
)

func fixtureDoc(t *testing.T) map[string]any {
	t.Helper()
	doc, err := manifest.ParseJSON([]byte(testutil.ManifestV7))
	require.NoError(t, err)
	return doc
}

func nodeOf(t *testing.T, doc map[string]any, id string) map[string]any {
	t.Helper()
	node, ok := doc["nodes"].(map[string]any)[id].(map[string]any)
	require.True(t, ok, "fixture node %s", id)
	return node
}

func parseFixture(t *testing.T, cfg ParserConfig, doc map[string]any) (*registry.Accumulator, *Report) {
	t.Helper()
	acc := registry.NewAccumulator("", "")
	p, err := NewParser(cfg, acc)
	require.NoError(t, err)
	report, err := p.Parse(doc)
	require.NoError(t, err)
	return acc, report
}

func TestParser_Report(t *testing.T) {
	_, report := parseFixture(t, ParserConfig{}, fixtureDoc(t))

	assert.Equal(t, "v7", report.SchemaVersion)
	assert.Equal(t, "v7", report.Shape)
	assert.Equal(t, core.PlatformSnowflake, report.Platform)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 1, report.Macros)
	assert.Equal(t, 2, report.Models)
	assert.Equal(t, 1, report.Tests)
	assert.Equal(t, 1, report.SkippedTests)
	assert.Equal(t, 1, report.Metrics)
	assert.Empty(t, report.Diagnostics)
	assert.False(t, report.Degraded())
}

func TestParser_EndToEnd(t *testing.T) {
	cfg := ParserConfig{
		DocsBaseURL:      "https://docs.example.com/",
		ProjectSourceURL: "https://git.example.com/proj/blob/main",
	}
	acc, _ := parseFixture(t, cfg, fixtureDoc(t))

	view, ok := acc.VirtualViews.Get(summaryModelKey)
	require.True(t, ok)
	assert.Equal(t, "proj.events_summary", view.LogicalID.Name)
	assert.Equal(t, core.VirtualViewDbtModel, view.LogicalID.Type)

	dm := view.DbtModel
	require.NotNil(t, dm)
	assert.Equal(t, "events_summary", dm.Name)
	assert.Equal(t, "proj", dm.PackageName)
	assert.Equal(t, "Daily event counts", dm.Description)
	assert.Equal(t, "https://git.example.com/proj/blob/main/models/events_summary.sql", dm.URL)
	assert.Equal(t, "https://docs.example.com/#!/model/model.proj.events_summary", dm.DocsURL)
	assert.Equal(t, []string{"daily"}, dm.Tags)
	assert.Equal(t, "select * from {{ ref('stg_events') }}", dm.RawSQL)
	assert.Equal(t, "select * from DB.PUBLIC.raw_events", dm.CompiledSQL)

	require.NotNil(t, dm.Materialization)
	assert.Equal(t, core.MaterializationTable, dm.Materialization.Type)
	assert.Equal(t, string(summaryTableID), dm.Materialization.TargetDataset)

	assert.Equal(t, []core.SchemaField{
		{FieldPath: "event_date", Description: "Day", NativeType: "date"},
		{FieldPath: "count", Description: "Events per day", NativeType: core.NativeTypeNotSet},
	}, dm.Fields)

	assert.Equal(t, []string{string(rawEventsID)}, dm.SourceDatasets)
	assert.Equal(t, []string{string(stagingViewID)}, dm.SourceModels)
	require.Len(t, dm.Macros, 1)
	assert.Equal(t, "macro.proj.cents_to_dollars", dm.Macros[0].UniqueID)
	assert.Equal(t, []core.DbtMacroArgument{{Name: "col", Type: "string", Description: "column"}}, dm.Macros[0].Arguments)

	require.Len(t, dm.Tests, 1)
	assert.Equal(t, core.DbtTest{
		Name:            "not_null_events_summary_count",
		UniqueID:        "test.proj.not_null_events_summary_count",
		Columns:         []string{"count"},
		DependsOnMacros: []string{"macro.dbt.test_not_null"},
		SQL:             "select * from DB.ANALYTICS.events_summary where count is null",
	}, dm.Tests[0])

	staging, ok := acc.VirtualViews.Get("model.proj.stg_events")
	require.True(t, ok)
	require.NotNil(t, staging.DbtModel)
	assert.Equal(t, core.MaterializationEphemeral, staging.DbtModel.Materialization.Type)
	assert.Equal(t, []string{string(rawEventsID)}, staging.DbtModel.SourceDatasets)

	source, ok := acc.Datasets.Get(string(rawEventsID))
	require.True(t, ok)
	assert.Equal(t, "db.public.raw_events", source.LogicalID.Name)
	require.NotNil(t, source.Documentation)
	assert.Equal(t, []string{"Raw event stream"}, source.Documentation.DatasetDocumentations)
	assert.Equal(t, []core.FieldDocumentation{{FieldPath: "id", Documentation: "Event id"}}, source.Documentation.FieldDocumentations)

	table, ok := acc.Datasets.Get(string(summaryTableID))
	require.True(t, ok)
	require.NotNil(t, table.Upstream)
	assert.Equal(t, []string{string(rawEventsID)}, table.Upstream.SourceDatasets)
	assert.Equal(t, dm.URL, table.Upstream.SourceCodeURL)

	metric := acc.Metric("metric.proj.total_events")
	require.NotNil(t, metric.DbtMetric)
	assert.Equal(t, "count", metric.DbtMetric.SQL)
	assert.Equal(t, "sum", metric.DbtMetric.Type)
	assert.Equal(t, "Total events", metric.DbtMetric.Label)
	assert.Equal(t, "https://docs.example.com/#!/metric/metric.proj.total_events", metric.DbtMetric.URL)
	assert.Equal(t, []core.MetricFilter{{Field: "is_bot", Operator: "=", Value: "false"}}, metric.DbtMetric.Filters)
	assert.Equal(t, []string{string(summaryViewID)}, metric.DbtMetric.SourceModels)
	assert.Empty(t, metric.DbtMetric.SourceDatasets)
}

func TestParser_ForwardReferenceResolves(t *testing.T) {
	doc := fixtureDoc(t)
	// declared last in sorted order, referenced by a model sorted first
	nodeOf(t, doc, "model.proj.stg_events")["depends_on"] = map[string]any{
		"nodes": []any{"model.proj.zz_late"},
	}
	doc["nodes"].(map[string]any)["model.proj.zz_late"] = map[string]any{
		"unique_id":     "model.proj.zz_late",
		"resource_type": "model",
		"name":          "zz_late",
		"database":      "DB",
		"schema":        "STAGING",
		"config":        map[string]any{"materialized": "view"},
	}

	acc, report := parseFixture(t, ParserConfig{}, doc)
	assert.Empty(t, report.Diagnostics)

	staging, _ := acc.VirtualViews.Get("model.proj.stg_events")
	assert.Equal(t, []string{string(registry.VirtualViewID("model.proj.zz_late"))}, staging.DbtModel.SourceModels)
}

func TestParser_DanglingReferenceDegrades(t *testing.T) {
	doc := fixtureDoc(t)
	deps := nodeOf(t, doc, summaryModelKey)["depends_on"].(map[string]any)
	deps["nodes"] = append(deps["nodes"].([]any), "model.proj.ghost", "source.proj.db.ghost")

	logger, logs := testutil.NewCaptureLogger()
	acc, report := parseFixture(t, ParserConfig{Logger: logger}, doc)

	require.Len(t, report.Diagnostics, 2)
	assert.True(t, report.Degraded())
	var dr *core.DanglingReferenceError
	require.True(t, errors.As(report.Diagnostics[0].Err, &dr))
	assert.Equal(t, summaryModelKey, dr.Node)
	assert.Equal(t, "model.proj.ghost", dr.Missing)

	view, _ := acc.VirtualViews.Get(summaryModelKey)
	assert.Equal(t, []string{string(rawEventsID)}, view.DbtModel.SourceDatasets)
	assert.Equal(t, []string{string(stagingViewID)}, view.DbtModel.SourceModels)

	warnings := logs.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "dropping dangling reference", warnings[0].Message)
	assert.Equal(t, "model.proj.ghost", warnings[0].Attrs["missing"])
}

func TestParser_DanglingTestTarget(t *testing.T) {
	doc := fixtureDoc(t)
	test := nodeOf(t, doc, "test.proj.not_null_events_summary_count")
	test["depends_on"] = map[string]any{"nodes": []any{"model.proj.ghost"}}

	_, report := parseFixture(t, ParserConfig{}, doc)
	assert.Equal(t, 0, report.Tests)
	assert.Equal(t, 2, report.SkippedTests)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "test.proj.not_null_events_summary_count", report.Diagnostics[0].Node)
}

func TestParser_SharedAccumulatorIsIdempotent(t *testing.T) {
	acc := registry.NewAccumulator("", "")
	for range 2 {
		p, err := NewParser(ParserConfig{}, acc)
		require.NoError(t, err)
		_, err = p.Parse(fixtureDoc(t))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, acc.Datasets.Len())
	assert.Equal(t, 2, acc.VirtualViews.Len())
	assert.Equal(t, 1, acc.Metrics.Len())

	view, _ := acc.VirtualViews.Get(summaryModelKey)
	assert.Len(t, view.DbtModel.Fields, 2)
	assert.Len(t, view.DbtModel.Tests, 1)
	assert.Len(t, view.DbtModel.Macros, 1)
	assert.Len(t, view.DbtModel.SourceDatasets, 1)
	assert.Len(t, view.DbtModel.Tags, 1)

	metric := acc.Metric("metric.proj.total_events")
	assert.Len(t, metric.DbtMetric.Filters, 1)
	assert.Len(t, metric.DbtMetric.TimeGrains, 2)
}

func TestParser_SingleUse(t *testing.T) {
	p, err := NewParser(ParserConfig{}, registry.NewAccumulator("", ""))
	require.NoError(t, err)
	_, err = p.Parse(fixtureDoc(t))
	require.NoError(t, err)

	_, err = p.Parse(fixtureDoc(t))
	assert.ErrorIs(t, err, core.ErrParserUsed)
	assert.True(t, core.IsFatal(err))
}

func TestParser_MalformedEntryIsDropped(t *testing.T) {
	doc := fixtureDoc(t)
	doc["nodes"].(map[string]any)["seed.proj.broken"] = map[string]any{
		"unique_id":     "seed.proj.broken",
		"resource_type": "seed",
		"name":          "broken",
		"columns":       []any{"x"},
	}

	logger, logs := testutil.NewCaptureLogger()
	acc, report := parseFixture(t, ParserConfig{Logger: logger}, doc)

	assert.Equal(t, 2, report.Models)
	assert.Equal(t, 1, report.Tests)
	_, ok := acc.VirtualViews.Get(summaryModelKey)
	assert.True(t, ok)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "seed.proj.broken", report.Diagnostics[0].Node)
	var entryErr *manifest.EntryError
	require.True(t, errors.As(report.Diagnostics[0].Err, &entryErr))
	assert.Equal(t, "nodes", entryErr.Section)

	warnings := logs.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "dropping malformed entry", warnings[0].Message)
}

func TestParser_ModelWritingItsOwnSource(t *testing.T) {
	doc := fixtureDoc(t)
	model := nodeOf(t, doc, summaryModelKey)
	model["schema"] = "PUBLIC"
	model["alias"] = "raw_events"
	model["config"] = map[string]any{"materialized": "incremental"}

	acc, report := parseFixture(t, ParserConfig{ProjectSourceURL: "https://git.example.com/proj"}, doc)
	assert.Empty(t, report.Diagnostics)

	view, _ := acc.VirtualViews.Get(summaryModelKey)
	assert.Equal(t, string(rawEventsID), view.DbtModel.Materialization.TargetDataset)
	assert.Equal(t, []string{string(rawEventsID)}, view.DbtModel.SourceDatasets)

	ds, ok := acc.Datasets.Get(string(rawEventsID))
	require.True(t, ok)
	require.NotNil(t, ds.Upstream)
	assert.NotContains(t, ds.Upstream.SourceDatasets, string(rawEventsID))
	assert.Equal(t, "https://git.example.com/proj/models/events_summary.sql", ds.Upstream.SourceCodeURL)
}

func TestParser_ColumnsDifferingInCaseMerge(t *testing.T) {
	doc := fixtureDoc(t)
	nodeOf(t, doc, "model.proj.stg_events")["columns"] = map[string]any{
		"ID": map[string]any{"name": "ID", "data_type": "number"},
		"id": map[string]any{"name": "id", "description": "Event id"},
	}

	acc, _ := parseFixture(t, ParserConfig{}, doc)

	staging, ok := acc.VirtualViews.Get("model.proj.stg_events")
	require.True(t, ok)
	assert.Equal(t, []core.SchemaField{
		{FieldPath: "id", Description: "Event id", NativeType: "number"},
	}, staging.DbtModel.Fields)
}

func TestParser_FatalDocuments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		check  func(t *testing.T, err error)
	}{
		{
			name: "unsupported version",
			mutate: func(doc map[string]any) {
				doc["metadata"].(map[string]any)["dbt_schema_version"] = "https://schemas.getdbt.com/dbt/manifest/v99.json"
			},
			check: func(t *testing.T, err error) {
				var unsupported *core.UnsupportedSchemaVersionError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, "v99", unsupported.Tag)
			},
		},
		{
			name:   "missing metadata",
			mutate: func(doc map[string]any) { delete(doc, "metadata") },
			check: func(t *testing.T, err error) {
				var malformed *core.MalformedDocumentError
				assert.True(t, errors.As(err, &malformed))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := fixtureDoc(t)
			tt.mutate(doc)
			acc := registry.NewAccumulator("", "")
			p, err := NewParser(ParserConfig{}, acc)
			require.NoError(t, err)

			_, err = p.Parse(doc)
			require.Error(t, err)
			assert.True(t, core.IsFatal(err))
			tt.check(t, err)
			assert.Zero(t, acc.VirtualViews.Len())

			_, err = p.Parse(fixtureDoc(t))
			assert.ErrorIs(t, err, core.ErrParserUsed)
		})
	}
}

func TestParser_ParseBytesInvalidJSON(t *testing.T) {
	p, err := NewParser(ParserConfig{}, registry.NewAccumulator("", ""))
	require.NoError(t, err)
	_, err = p.ParseBytes([]byte("{not json"))
	var malformed *core.MalformedDocumentError
	assert.True(t, errors.As(err, &malformed))
}

func TestParser_SkipsModelWithoutDatabase(t *testing.T) {
	doc := fixtureDoc(t)
	delete(nodeOf(t, doc, "model.proj.stg_events"), "database")

	logger, logs := testutil.NewCaptureLogger()
	acc, report := parseFixture(t, ParserConfig{Logger: logger}, doc)

	assert.Equal(t, 1, report.Models)
	assert.Equal(t, 1, report.SkippedModels)
	require.Len(t, logs.Warnings(), 1)
	assert.Equal(t, "model.proj.stg_events", logs.Warnings()[0].Attrs["model"])

	staging, ok := acc.VirtualViews.Get("model.proj.stg_events")
	require.True(t, ok)
	assert.Nil(t, staging.DbtModel)
	assert.Equal(t, registry.Declared, acc.VirtualViews.State("model.proj.stg_events"))

	// references to a declared view still resolve
	summary, _ := acc.VirtualViews.Get(summaryModelKey)
	assert.Equal(t, []string{string(stagingViewID)}, summary.DbtModel.SourceModels)
}

func TestParser_MetaOwnershipsAndTags(t *testing.T) {
	cfg := ParserConfig{
		MetaOwnerships: []config.MetaOwnership{{MetaKey: "owner", OwnershipType: "Maintainer", EmailDomain: "acme.com"}},
		MetaTags: []config.MetaTag{
			{MetaKey: "pii", MetaValueMatcher: "true", TagType: "PII"},
			{MetaKey: "pii", MetaValueMatcher: "false", TagType: "Public"},
			{MetaKey: "absent", TagType: "Never"},
		},
	}
	acc, _ := parseFixture(t, cfg, fixtureDoc(t))

	table, ok := acc.Datasets.Get(string(summaryTableID))
	require.True(t, ok)
	require.NotNil(t, table.OwnershipAssignment)
	assert.Equal(t, []core.Ownership{{
		ContactDesignationName: "Maintainer",
		Person:                 string(identity.PersonID("jane@acme.com")),
	}}, table.OwnershipAssignment.Ownerships)
	require.NotNil(t, table.TagAssignment)
	assert.Equal(t, []string{"PII"}, table.TagAssignment.TagNames)
}

func TestParserConfigFrom_Platform(t *testing.T) {
	tests := []struct {
		platform string
		want     core.DataPlatform
	}{
		{"", ""},
		{"snowflake", core.PlatformSnowflake},
		{"postgres", core.PlatformPostgreSQL},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			cfg := ParserConfigFrom(&config.Config{Platform: tt.platform}, nil)
			assert.Equal(t, tt.want, cfg.Platform)
		})
	}
}

func TestParser_PlatformOverride(t *testing.T) {
	acc, report := parseFixture(t, ParserConfig{Platform: core.PlatformBigQuery, Account: "acme"}, fixtureDoc(t))
	assert.Equal(t, core.PlatformBigQuery, report.Platform)

	want := identity.DatasetIDFor(core.PlatformBigQuery, "acme", "DB", "PUBLIC", "raw_events")
	assert.True(t, acc.Datasets.Has(string(want)))
}

func TestParser_UnknownAdapter(t *testing.T) {
	doc := fixtureDoc(t)
	doc["metadata"].(map[string]any)["adapter_type"] = "fancydb"

	acc, report := parseFixture(t, ParserConfig{}, doc)
	assert.Equal(t, core.PlatformUnknown, acc.Platform)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "metadata", report.Diagnostics[0].Node)
}

func TestNewParser_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		cfg  ParserConfig
	}{
		{name: "bad matcher", cfg: ParserConfig{MetaTags: []config.MetaTag{{MetaKey: "pii", MetaValueMatcher: "(", TagType: "PII"}}}},
		{name: "bad tag type", cfg: ParserConfig{MetaTags: []config.MetaTag{{MetaKey: "pii", TagType: "!"}}}},
		{name: "bad ownership", cfg: ParserConfig{MetaOwnerships: []config.MetaOwnership{{OwnershipType: "Maintainer"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(tt.cfg, registry.NewAccumulator("", ""))
			var ce *core.ConfigurationError
			assert.True(t, errors.As(err, &ce))
		})
	}

	_, err := NewParser(ParserConfig{}, nil)
	assert.Error(t, err)
}
