package dbt

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/manifest"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

const bytesPerMegabyte = 1024 * 1024

// ApplyCatalog merges warehouse-observed schemas and statistics into the
// datasets of acc. It fills gaps only; values already harvested from the
// manifest are kept. Returns the number of relations merged.
func ApplyCatalog(acc *registry.Accumulator, cat *manifest.Catalog, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	merged := 0
	for _, tables := range []map[string]*manifest.CatalogTable{cat.Nodes, cat.Sources} {
		for _, id := range sortedKeys(tables) {
			t := tables[id]
			if t.Metadata.Name == "" {
				logger.Debug("skipping catalog entry without relation name", "node", id)
				continue
			}
			mergeCatalogTable(acc.Dataset(t.Metadata.Database, t.Metadata.Schema, t.Metadata.Name), t)
			merged++
		}
	}
	logger.Debug("applied catalog", "relations", merged)
	return merged
}

func mergeCatalogTable(ds *core.Dataset, t *manifest.CatalogTable) {
	schema := registry.Facet(&ds.Schema)
	if schema.SchemaType == "" {
		schema.SchemaType = core.SchemaTypeSQL
	}
	registry.SetString(&schema.Description, t.Metadata.Comment)
	for _, col := range catalogColumns(t) {
		schema.Fields = registry.MergeField(schema.Fields, core.SchemaField{
			FieldPath:   strings.ToLower(col.Name),
			Description: col.Comment,
			NativeType:  col.Type,
		})
	}

	if !t.HasStats() {
		return
	}
	stats := registry.Facet(&ds.Statistics)
	if rows, ok := t.Number(manifest.StatRowCount); ok {
		registry.SetPtr(&stats.RecordCount, &rows)
	}
	if size, ok := t.Number(manifest.StatBytes); ok {
		mb := size / bytesPerMegabyte
		registry.SetPtr(&stats.DataSize, &mb)
	}
	if ts, ok := t.Time(manifest.StatLastModified); ok {
		registry.SetPtr(&stats.LastUpdated, &ts)
	}
}

// catalogColumns returns columns in warehouse ordinal order.
func catalogColumns(t *manifest.CatalogTable) []manifest.CatalogColumn {
	cols := make([]manifest.CatalogColumn, 0, len(t.Columns))
	for key, c := range t.Columns {
		if c.Name == "" {
			c.Name = key
		}
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Index != cols[j].Index {
			return cols[i].Index < cols[j].Index
		}
		return cols[i].Name < cols[j].Name
	})
	return cols
}
