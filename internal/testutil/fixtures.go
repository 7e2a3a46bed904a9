package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ManifestV7 is a small dbt project: one source, an ephemeral staging model,
// a table model that references the staging model before it is declared,
// a macro, two tests and a metric.
const ManifestV7 = `{
  "metadata": {
    "dbt_schema_version": "https://schemas.getdbt.com/dbt/manifest/v7.json",
    "dbt_version": "1.3.0",
    "adapter_type": "snowflake"
  },
  "sources": {
    "source.proj.db.raw_events": {
      "unique_id": "source.proj.db.raw_events",
      "resource_type": "source",
      "name": "raw_events",
      "source_name": "db",
      "identifier": "raw_events",
      "database": "DB",
      "schema": "PUBLIC",
      "package_name": "proj",
      "description": "Raw event stream",
      "columns": {
        "ID": {"name": "ID", "description": "Event id"},
        "COUNTRY": {"name": "COUNTRY", "description": ""}
      }
    }
  },
  "macros": {
    "macro.proj.cents_to_dollars": {
      "unique_id": "macro.proj.cents_to_dollars",
      "name": "cents_to_dollars",
      "package_name": "proj",
      "description": "Converts cents",
      "macro_sql": "{% macro cents_to_dollars(col) %}{{ col }} / 100{% endmacro %}",
      "arguments": [{"name": "col", "type": "string", "description": "column"}],
      "depends_on": {"macros": []}
    }
  },
  "nodes": {
    "model.proj.events_summary": {
      "unique_id": "model.proj.events_summary",
      "resource_type": "model",
      "name": "events_summary",
      "database": "DB",
      "schema": "ANALYTICS",
      "package_name": "proj",
      "original_file_path": "models/events_summary.sql",
      "description": "Daily event counts",
      "tags": ["daily"],
      "config": {"materialized": "table", "meta": {"owner": "jane", "pii": true}},
      "columns": {
        "EVENT_DATE": {"name": "EVENT_DATE", "description": "Day", "data_type": "date"},
        "event_date": {"name": "event_date", "description": ""},
        "count": {"name": "count", "description": "Events per day"}
      },
      "depends_on": {
        "nodes": ["source.proj.db.raw_events", "model.proj.stg_events", "source.proj.db.raw_events"],
        "macros": ["macro.proj.cents_to_dollars"]
      },
      "raw_code": "select * from {{ ref('stg_events') }}",
      "compiled_code": "select * from DB.PUBLIC.raw_events"
    },
    "model.proj.stg_events": {
      "unique_id": "model.proj.stg_events",
      "resource_type": "model",
      "name": "stg_events",
      "database": "DB",
      "schema": "STAGING",
      "package_name": "proj",
      "config": {"materialized": "ephemeral"},
      "depends_on": {"nodes": ["source.proj.db.raw_events"], "macros": []},
      "raw_code": "select * from {{ source('db', 'raw_events') }}"
    },
    "test.proj.not_null_events_summary_count": {
      "unique_id": "test.proj.not_null_events_summary_count",
      "resource_type": "test",
      "name": "not_null_events_summary_count",
      "column_name": "count",
      "depends_on": {"nodes": ["model.proj.events_summary"], "macros": ["macro.dbt.test_not_null"]},
      "compiled_code": "select * from DB.ANALYTICS.events_summary where count is null"
    },
    "test.proj.source_not_null_raw_events_id": {
      "unique_id": "test.proj.source_not_null_raw_events_id",
      "resource_type": "test",
      "name": "source_not_null_raw_events_id",
      "column_name": "ID",
      "depends_on": {"nodes": ["source.proj.db.raw_events"], "macros": []}
    },
    "seed.proj.countries": {
      "unique_id": "seed.proj.countries",
      "resource_type": "seed",
      "name": "countries"
    }
  },
  "metrics": {
    "metric.proj.total_events": {
      "unique_id": "metric.proj.total_events",
      "name": "total_events",
      "package_name": "proj",
      "label": "Total events",
      "expression": "count",
      "calculation_method": "sum",
      "timestamp": "event_date",
      "time_grains": ["day", "week"],
      "dimensions": ["country"],
      "filters": [{"field": "is_bot", "operator": "=", "value": false}],
      "depends_on": {"nodes": ["model.proj.events_summary"]}
    }
  }
}`

// CatalogV1 matches ManifestV7.
const CatalogV1 = `{
  "metadata": {"dbt_schema_version": "https://schemas.getdbt.com/dbt/catalog/v1.json"},
  "nodes": {
    "model.proj.events_summary": {
      "unique_id": "model.proj.events_summary",
      "metadata": {"type": "BASE TABLE", "database": "DB", "schema": "ANALYTICS", "name": "EVENTS_SUMMARY", "comment": "summary table"},
      "columns": {
        "COUNT": {"name": "COUNT", "type": "NUMBER", "index": 2, "comment": "row count"},
        "EVENT_DATE": {"name": "EVENT_DATE", "type": "DATE", "index": 1}
      },
      "stats": {
        "has_stats": {"id": "has_stats", "value": true},
        "row_count": {"id": "row_count", "value": 10},
        "bytes": {"id": "bytes", "value": 1048576},
        "last_modified": {"id": "last_modified", "value": "2023-04-05 06:07UTC"}
      }
    }
  },
  "sources": {
    "source.proj.db.raw_events": {
      "unique_id": "source.proj.db.raw_events",
      "metadata": {"type": "BASE TABLE", "database": "DB", "schema": "PUBLIC", "name": "RAW_EVENTS"},
      "columns": {"ID": {"name": "ID", "type": "VARCHAR", "index": 1}},
      "stats": {"has_stats": {"id": "has_stats", "value": false}}
    }
  }
}`

// RunResultsV5 matches ManifestV7.
const RunResultsV5 = `{
  "metadata": {"dbt_schema_version": "https://schemas.getdbt.com/dbt/run-results/v5.json"},
  "results": [
    {
      "unique_id": "test.proj.not_null_events_summary_count",
      "status": "fail",
      "failures": 2,
      "timing": [
        {"name": "compile", "started_at": "2023-04-05T06:00:00Z", "completed_at": "2023-04-05T06:00:01Z"},
        {"name": "execute", "started_at": "2023-04-05T06:00:01Z", "completed_at": "2023-04-05T06:00:03Z"}
      ]
    },
    {"unique_id": "model.proj.events_summary", "status": "success", "timing": []}
  ]
}`

// Artifacts are the paths of fixture files written by WriteArtifacts.
type Artifacts struct {
	Dir        string
	Manifest   string
	Catalog    string
	RunResults string
}

// WriteArtifacts writes the fixture artifacts to a temporary directory.
func WriteArtifacts(t testing.TB) Artifacts {
	t.Helper()
	dir := t.TempDir()
	a := Artifacts{
		Dir:        dir,
		Manifest:   filepath.Join(dir, "manifest.json"),
		Catalog:    filepath.Join(dir, "catalog.json"),
		RunResults: filepath.Join(dir, "run_results.json"),
	}
	for path, content := range map[string]string{
		a.Manifest:   ManifestV7,
		a.Catalog:    CatalogV1,
		a.RunResults: RunResultsV5,
	} {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return a
}
