package dbt

import (
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipsFromMeta(t *testing.T) {
	rules := []config.MetaOwnership{
		{MetaKey: "owner", OwnershipType: "Maintainer", EmailDomain: "acme.com"},
		{MetaKey: "steward", OwnershipType: "Steward"},
	}

	tests := []struct {
		name string
		meta map[string]any
		want []core.Ownership
	}{
		{
			name: "bare name gets domain",
			meta: map[string]any{"owner": "jane"},
			want: []core.Ownership{{ContactDesignationName: "Maintainer", Person: string(identity.PersonID("jane@acme.com"))}},
		},
		{
			name: "email kept",
			meta: map[string]any{"owner": "bob@other.org"},
			want: []core.Ownership{{ContactDesignationName: "Maintainer", Person: string(identity.PersonID("bob@other.org"))}},
		},
		{
			name: "list deduplicated",
			meta: map[string]any{"steward": []any{"a@x.io", "a@x.io", 3, "b@x.io"}},
			want: []core.Ownership{
				{ContactDesignationName: "Steward", Person: string(identity.PersonID("a@x.io"))},
				{ContactDesignationName: "Steward", Person: string(identity.PersonID("b@x.io"))},
			},
		},
		{
			name: "non string ignored",
			meta: map[string]any{"owner": 42},
		},
		{
			name: "absent key",
			meta: map[string]any{"team": "data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ownershipsFromMeta(tt.meta, rules))
		})
	}
}

func TestTagsFromMeta(t *testing.T) {
	rules, err := compileTagRules([]config.MetaTag{
		{MetaKey: "pii", MetaValueMatcher: "true", TagType: "PII"},
		{MetaKey: "tier", MetaValueMatcher: "[12]", TagType: "Critical"},
		{MetaKey: "domain", TagType: "Domain"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		meta map[string]any
		want []string
	}{
		{name: "bool", meta: map[string]any{"pii": true}, want: []string{"PII"}},
		{name: "string bool", meta: map[string]any{"pii": "true"}, want: []string{"PII"}},
		{name: "partial match rejected", meta: map[string]any{"pii": "untrue"}},
		{name: "number", meta: map[string]any{"tier": float64(1)}, want: []string{"Critical"}},
		{name: "number out of range", meta: map[string]any{"tier": float64(12)}},
		{name: "empty matcher accepts any", meta: map[string]any{"domain": "sales"}, want: []string{"Domain"}},
		{name: "null", meta: map[string]any{"domain": nil}},
		{name: "list ignored", meta: map[string]any{"domain": []any{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tagsFromMeta(tt.meta, rules))
		})
	}
}

func TestURLs(t *testing.T) {
	assert.Empty(t, modelDocsURL("", "model.a.b"))
	assert.Equal(t, "https://d/#!/model/model.a.b", modelDocsURL("https://d", "model.a.b"))
	assert.Equal(t, "https://d/#!/metric/metric.a.m", metricDocsURL("https://d/", "metric.a.m"))
	assert.Equal(t, "https://g/repo/models/x.sql", sourceCodeURL("https://g/repo/", "/models/x.sql"))
	assert.Empty(t, sourceCodeURL("https://g/repo", ""))
}
