package lineage

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *Index {
	idx := NewIndex()
	idx.Sources["source.p.raw.events"] = "DATASET~EVENTS"
	idx.Sources["source.p.raw.users"] = "DATASET~USERS"
	idx.Models["model.p.a"] = "VIRTUAL_VIEW~A"
	idx.Models["model.p.b"] = "VIRTUAL_VIEW~B"
	idx.Targets["model.p.a"] = "DATASET~A"
	idx.Macros["macro.p.cents"] = core.DbtMacro{Name: "cents", UniqueID: "macro.p.cents", SQL: "{{ x }} / 100"}
	return idx
}

func TestBuild_PartitionsAndDeduplicates(t *testing.T) {
	edges, errs := Build("model.p.c", []string{
		"model.p.b",
		"source.p.raw.users",
		"model.p.a",
		"source.p.raw.events",
		"model.p.b",
		"source.p.raw.users",
		"seed.p.countries",
	}, []string{"macro.p.cents", "macro.p.cents"}, testIndex())

	assert.Empty(t, errs)
	assert.Equal(t, []string{"DATASET~USERS", "DATASET~EVENTS"}, edges.SourceDatasets)
	assert.Equal(t, []string{"VIRTUAL_VIEW~B", "VIRTUAL_VIEW~A"}, edges.SourceModels)
	require.Len(t, edges.Macros, 1)
	assert.Equal(t, "{{ x }} / 100", edges.Macros[0].SQL)
}

func TestBuild_DanglingReferences(t *testing.T) {
	edges, errs := Build("model.p.c", []string{
		"model.missing",
		"model.p.a",
		"source.p.raw.gone",
	}, []string{"macro.p.nope"}, testIndex())

	assert.Equal(t, []string{"VIRTUAL_VIEW~A"}, edges.SourceModels)
	assert.Empty(t, edges.SourceDatasets)
	assert.Empty(t, edges.Macros)

	require.Len(t, errs, 3)
	var missing []string
	for _, err := range errs {
		var dangling *core.DanglingReferenceError
		require.True(t, errors.As(err, &dangling))
		assert.Equal(t, "model.p.c", dangling.Node)
		missing = append(missing, dangling.Missing)
	}
	assert.Equal(t, []string{"model.missing", "source.p.raw.gone", "macro.p.nope"}, missing)
}

func TestBuild_SelfLoopPassesThrough(t *testing.T) {
	edges, errs := Build("model.p.a", []string{"model.p.a"}, nil, testIndex())
	assert.Empty(t, errs)
	assert.Equal(t, []string{"VIRTUAL_VIEW~A"}, edges.SourceModels)
}

func TestBuild_Empty(t *testing.T) {
	edges, errs := Build("model.p.a", nil, nil, testIndex())
	assert.Empty(t, errs)
	assert.True(t, edges.Empty())
}

func TestDatasetUpstream(t *testing.T) {
	got := DatasetUpstream([]string{
		"model.p.b", // not persisted
		"source.p.raw.events",
		"model.p.a",
		"source.p.raw.events",
		"model.missing",
	}, testIndex())
	assert.Equal(t, []string{"DATASET~EVENTS", "DATASET~A"}, got)
}

func TestCollect(t *testing.T) {
	acc := registry.NewAccumulator(core.PlatformSnowflake, "")
	target := acc.Dataset("db", "s", "a")
	target.Upstream = &core.DatasetUpstream{SourceDatasets: []string{"DATASET~EVENTS"}}

	view, _ := acc.DeclareVirtualView("model.p.a")
	view.DbtModel = &core.DbtModel{SourceDatasets: []string{"DATASET~EVENTS"}, SourceModels: []string{"VIRTUAL_VIEW~B"}}
	acc.DeclareVirtualView("model.p.empty")

	metric := acc.Metric("metric.p.m")
	metric.DbtMetric = &core.DbtMetric{SourceModels: []string{"VIRTUAL_VIEW~B"}}

	edges := Collect(acc.Drain())
	viewID := identity.Of(view.LogicalID)
	assert.Equal(t, []core.LineageEdge{
		{From: "DATASET~EVENTS", To: identity.Of(target.LogicalID), Kind: core.EdgeDatasetUpstream},
		{From: "DATASET~EVENTS", To: viewID, Kind: core.EdgeSourceDataset},
		{From: "VIRTUAL_VIEW~B", To: viewID, Kind: core.EdgeSourceModel},
		{From: "VIRTUAL_VIEW~B", To: identity.Of(metric.LogicalID), Kind: core.EdgeSourceModel},
	}, edges)
}
