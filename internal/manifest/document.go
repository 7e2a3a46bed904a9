package manifest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// ParseJSON parses artifact bytes into a generic tree.
func ParseJSON(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &core.MalformedDocumentError{Reason: "invalid JSON", Err: err}
	}
	if doc == nil {
		return nil, &core.MalformedDocumentError{Reason: "document is not a JSON object"}
	}
	return doc, nil
}

// Decode selects the schema of a manifest tree, sanitizes it in place and
// decodes it into the unified model.
func Decode(doc map[string]any) (*Manifest, error) {
	desc, err := SelectSchema(doc)
	if err != nil {
		return nil, err
	}
	return DecodeAs(doc, desc)
}

// DecodeAs decodes a manifest tree against an already selected descriptor.
// Entries of nodes, sources, macros and metrics are decoded one by one; an
// entry that does not match the schema is dropped and recorded in Invalid.
// Only a bad metadata block or a section that is not an object is fatal.
func DecodeAs(doc map[string]any, desc Descriptor) (*Manifest, error) {
	Sanitize(doc, desc)

	m := Manifest{Schema: desc}
	malformed := func(err error) error {
		return &core.MalformedDocumentError{Reason: "manifest does not match schema " + desc.Name, Err: err}
	}
	if err := decodeInto(doc["metadata"], &m.Metadata); err != nil {
		return nil, malformed(fmt.Errorf("metadata: %w", err))
	}

	var err error
	if m.Nodes, err = decodeSection[Node](doc, "nodes", &m.Invalid); err != nil {
		return nil, malformed(err)
	}
	if m.Sources, err = decodeSection[Source](doc, "sources", &m.Invalid); err != nil {
		return nil, malformed(err)
	}
	if m.Macros, err = decodeSection[Macro](doc, "macros", &m.Invalid); err != nil {
		return nil, malformed(err)
	}
	if desc.Metrics != MetricsNone {
		if m.Metrics, err = decodeSection[Metric](doc, "metrics", &m.Invalid); err != nil {
			return nil, malformed(err)
		}
	}

	for id, n := range m.Nodes {
		if n.UniqueID == "" {
			n.UniqueID = id
		}
		n.Kind = ParseKind(n.ResourceType)
		if n.Kind == KindUnknown {
			n.Kind = kindFromID(id)
		}
		n.code = desc.Code
	}
	for id, s := range m.Sources {
		if s.UniqueID == "" {
			s.UniqueID = id
		}
	}
	for id, mac := range m.Macros {
		if mac.UniqueID == "" {
			mac.UniqueID = id
		}
	}
	for id, met := range m.Metrics {
		if met.UniqueID == "" {
			met.UniqueID = id
		}
		met.shape = desc.Metrics
	}
	return &m, nil
}

// decodeSection decodes every entry of a top-level section in key order.
// Null entries are skipped; entries that fail to decode are appended to
// invalid and left out of the result.
func decodeSection[T any](doc map[string]any, section string, invalid *[]*EntryError) (map[string]*T, error) {
	raw, ok := doc[section]
	if !ok || raw == nil {
		return nil, nil
	}
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", section, raw)
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]*T, len(entries))
	for _, id := range ids {
		if entries[id] == nil {
			continue
		}
		var v T
		if err := decodeInto(entries[id], &v); err != nil {
			*invalid = append(*invalid, &EntryError{Section: section, ID: id, Err: err})
			continue
		}
		out[id] = &v
	}
	return out, nil
}

func kindFromID(id string) NodeKind {
	prefix, _, ok := strings.Cut(id, ".")
	if !ok {
		return KindUnknown
	}
	return ParseKind(prefix)
}

// Sanitize repairs known defects of generated manifests in place: null
// entries in depends_on lists, and (for shapes that drop it) the docs map.
func Sanitize(doc map[string]any, desc Descriptor) {
	if desc.DropDocs {
		if _, ok := doc["docs"]; ok {
			doc["docs"] = map[string]any{}
		}
	}
	for _, section := range []string{"nodes", "macros", "metrics", "exposures"} {
		entries, ok := doc[section].(map[string]any)
		if !ok {
			continue
		}
		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			dependsOn, ok := entry["depends_on"].(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"nodes", "macros"} {
				if list, ok := dependsOn[key].([]any); ok {
					dependsOn[key] = dropNil(list)
				}
			}
		}
	}
}

func dropNil(list []any) []any {
	out := list[:0]
	for _, v := range list {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       flexibleStringHook,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.Decode(input)
}

// flexibleStringHook renders JSON numbers and booleans destined for string
// fields as their literal text ("3", "2.5", "true").
func flexibleStringHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return data, nil
	}
}
