package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapmeta/pkg/core"
)

// Ownership and tag types become catalog designations; keep them plain.
var designationPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _-]*$`)

// Validate checks the configuration. Every failure is a *core.ConfigurationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Manifest) == "" {
		return &core.ConfigurationError{Field: "manifest", Reason: "a manifest location is required"}
	}
	if c.MaxConcurrency < 1 {
		return &core.ConfigurationError{Field: "max_concurrency", Reason: fmt.Sprintf("must be positive, got %d", c.MaxConcurrency)}
	}
	if strings.TrimSpace(c.Platform) != "" {
		if _, ok := core.ParsePlatform(c.Platform); !ok {
			return &core.ConfigurationError{Field: "platform", Reason: fmt.Sprintf("unknown platform %q", c.Platform)}
		}
	}
	switch c.Sink.Format {
	case FormatJSON, FormatJSONL, FormatYAML:
	default:
		return &core.ConfigurationError{Field: "sink.format", Reason: fmt.Sprintf("unknown format %q (json, jsonl, yaml)", c.Sink.Format)}
	}
	for i, o := range c.MetaOwnerships {
		if err := o.Validate(); err != nil {
			return withIndex(err, "meta_ownerships", i)
		}
	}
	for i, t := range c.MetaTags {
		if err := t.Validate(); err != nil {
			return withIndex(err, "meta_tags", i)
		}
	}
	return nil
}

// Validate checks one ownership rule.
func (o MetaOwnership) Validate() error {
	if o.MetaKey == "" {
		return &core.ConfigurationError{Field: "meta_key", Reason: "must not be empty"}
	}
	if !designationPattern.MatchString(o.OwnershipType) {
		return &core.ConfigurationError{Field: "ownership_type", Reason: fmt.Sprintf("malformed type %q", o.OwnershipType)}
	}
	if strings.Contains(o.EmailDomain, "@") {
		return &core.ConfigurationError{Field: "email_domain", Reason: "must not contain @"}
	}
	return nil
}

// Validate checks one tag rule.
func (t MetaTag) Validate() error {
	if t.MetaKey == "" {
		return &core.ConfigurationError{Field: "meta_key", Reason: "must not be empty"}
	}
	if !designationPattern.MatchString(t.TagType) {
		return &core.ConfigurationError{Field: "tag_type", Reason: fmt.Sprintf("malformed type %q", t.TagType)}
	}
	if _, err := t.Matcher(); err != nil {
		return &core.ConfigurationError{Field: "meta_value_matcher", Reason: err.Error()}
	}
	return nil
}

// Matcher compiles MetaValueMatcher anchored to the whole value.
func (t MetaTag) Matcher() (*regexp.Regexp, error) {
	pattern := t.MetaValueMatcher
	if pattern == "" {
		pattern = ".*"
	}
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

func withIndex(err error, list string, i int) error {
	if ce, ok := err.(*core.ConfigurationError); ok {
		return &core.ConfigurationError{Field: fmt.Sprintf("%s[%d].%s", list, i, ce.Field), Reason: ce.Reason}
	}
	return err
}
