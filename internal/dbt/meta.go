package dbt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/internal/registry"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"github.com/leapstack-labs/leapmeta/pkg/identity"
)

// tagRule is a MetaTag with its compiled matcher.
type tagRule struct {
	config.MetaTag
	matcher *regexp.Regexp
}

func compileTagRules(tags []config.MetaTag) ([]tagRule, error) {
	rules := make([]tagRule, 0, len(tags))
	for _, t := range tags {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		re, err := t.Matcher()
		if err != nil {
			return nil, &core.ConfigurationError{Field: "meta_value_matcher", Reason: err.Error()}
		}
		rules = append(rules, tagRule{MetaTag: t, matcher: re})
	}
	return rules, nil
}

// ownershipsFromMeta maps meta values to ownerships. A rule whose key is
// absent contributes nothing.
func ownershipsFromMeta(meta map[string]any, rules []config.MetaOwnership) []core.Ownership {
	var out []core.Ownership
	for _, rule := range rules {
		for _, who := range metaStrings(meta[rule.MetaKey]) {
			email := who
			if rule.EmailDomain != "" && !strings.Contains(email, "@") {
				email += "@" + rule.EmailDomain
			}
			out = registry.MergeOwnership(out, core.Ownership{
				ContactDesignationName: rule.OwnershipType,
				Person:                 string(identity.PersonID(email)),
			})
		}
	}
	return out
}

// tagsFromMeta returns the tag types whose meta value matches.
func tagsFromMeta(meta map[string]any, rules []tagRule) []string {
	var out []string
	for _, rule := range rules {
		value, ok := meta[rule.MetaKey]
		if !ok || value == nil {
			continue
		}
		text, ok := scalarString(value)
		if !ok {
			continue
		}
		if rule.matcher.MatchString(text) {
			out = registry.AppendUnique(out, rule.TagType)
		}
	}
	return out
}

// metaStrings returns a string or the strings of a list.
func metaStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		return nil
	}
}

// scalarString renders JSON scalars as text.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
