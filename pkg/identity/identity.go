// Package identity derives stable entity identifiers from logical keys and
// canonicalizes hierarchical names.
package identity

import (
	"bytes"
	"crypto/md5" //nolint:gosec // content digest, not a security boundary
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/leapstack-labs/leapmeta/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// NormalizedName joins the non-empty parts with "." and lowercases the result.
// NormalizedName("", "s", "t") is "s.t"; no parts yields "".
func NormalizedName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return lower.String(strings.Join(kept, "."))
}

// Of returns the EntityID of a logical key: "{TYPE}~{DIGEST}", where DIGEST is
// the upper-case hex MD5 of the key's canonical JSON.
func Of(key core.LogicalKey) core.EntityID {
	digest := md5.Sum(Canonical(key.Attributes())) //nolint:gosec
	return core.EntityID(string(key.EntityType()) + "~" + strings.ToUpper(hex.EncodeToString(digest[:])))
}

// Canonical encodes attributes as compact JSON with sorted keys and nil
// values removed at every level.
func Canonical(attrs map[string]any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// map keys are sorted by encoding/json; attribute values are plain scalars
	// and nested maps, so encoding cannot fail
	_ = enc.Encode(stripNil(attrs))
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func stripNil(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = stripNil(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if val == nil {
				continue
			}
			out = append(out, stripNil(val))
		}
		return out
	default:
		return v
	}
}

// DatasetID returns the EntityID of a dataset.
func DatasetID(name string, platform core.DataPlatform, account string) core.EntityID {
	return Of(core.DatasetLogicalID{Name: name, Platform: platform, Account: account})
}

// DatasetIDFor normalizes (database, schema, table) and returns the dataset's EntityID.
func DatasetIDFor(platform core.DataPlatform, account, database, schema, table string) core.EntityID {
	return DatasetID(NormalizedName(database, schema, table), platform, account)
}

// VirtualViewID returns the EntityID of a virtual view.
func VirtualViewID(name string, viewType core.VirtualViewType) core.EntityID {
	return Of(core.VirtualViewLogicalID{Name: name, Type: viewType})
}

// PersonID returns the EntityID of a person.
func PersonID(email string) core.EntityID {
	return Of(core.PersonLogicalID{Email: email})
}

// MetricID returns the EntityID of a metric.
func MetricID(name string, metricType core.MetricType) core.EntityID {
	return Of(core.MetricLogicalID{Name: name, Type: metricType})
}
