package manifest

import (
	"time"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Catalog is the unified form of catalog.json.
type Catalog struct {
	Metadata Metadata                 `mapstructure:"metadata"`
	Nodes    map[string]*CatalogTable `mapstructure:"nodes"`
	Sources  map[string]*CatalogTable `mapstructure:"sources"`
}

// CatalogTable describes one relation as observed in the warehouse.
type CatalogTable struct {
	UniqueID string                   `mapstructure:"unique_id"`
	Metadata TableMetadata            `mapstructure:"metadata"`
	Columns  map[string]CatalogColumn `mapstructure:"columns"`
	Stats    map[string]CatalogStat   `mapstructure:"stats"`
}

// TableMetadata locates a catalog relation.
type TableMetadata struct {
	Type     string `mapstructure:"type"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
	Name     string `mapstructure:"name"`
	Comment  string `mapstructure:"comment"`
	Owner    string `mapstructure:"owner"`
}

// CatalogColumn is a column as observed in the warehouse.
type CatalogColumn struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	Index   int    `mapstructure:"index"`
	Comment string `mapstructure:"comment"`
}

// CatalogStat is one adapter-specific statistic. Value may be a number,
// string or boolean.
type CatalogStat struct {
	ID          string `mapstructure:"id"`
	Label       string `mapstructure:"label"`
	Value       any    `mapstructure:"value"`
	Include     bool   `mapstructure:"include"`
	Description string `mapstructure:"description"`
}

// Well-known stat IDs.
const (
	StatHasStats     = "has_stats"
	StatRowCount     = "row_count"
	StatBytes        = "bytes"
	StatLastModified = "last_modified"
)

// HasStats reports whether the adapter collected statistics for the table.
func (t *CatalogTable) HasStats() bool {
	s, ok := t.Stats[StatHasStats]
	if !ok {
		return false
	}
	b, ok := s.Value.(bool)
	return ok && b
}

// Number returns a numeric stat value.
func (t *CatalogTable) Number(id string) (float64, bool) {
	s, ok := t.Stats[id]
	if !ok {
		return 0, false
	}
	switch v := s.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Time returns a timestamp stat value. Adapters report either
// "2006-01-02 15:04:05 UTC" or RFC 3339.
func (t *CatalogTable) Time(id string) (time.Time, bool) {
	s, ok := t.Stats[id]
	if !ok {
		return time.Time{}, false
	}
	text, ok := s.Value.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05 MST", "2006-01-02 15:04MST", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DecodeCatalog decodes a catalog.json tree.
func DecodeCatalog(doc map[string]any) (*Catalog, error) {
	if _, err := schemaURL(doc); err != nil {
		return nil, err
	}
	var c Catalog
	if err := decodeInto(doc, &c); err != nil {
		return nil, &core.MalformedDocumentError{Reason: "catalog does not match schema", Err: err}
	}
	for id, t := range c.Nodes {
		if t == nil {
			delete(c.Nodes, id)
		} else if t.UniqueID == "" {
			t.UniqueID = id
		}
	}
	for id, t := range c.Sources {
		if t == nil {
			delete(c.Sources, id)
		} else if t.UniqueID == "" {
			t.UniqueID = id
		}
	}
	return &c, nil
}
