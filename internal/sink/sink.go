// Package sink writes metadata change events to a file or object store
// location as JSON, JSON lines or YAML.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/leapstack-labs/leapmeta/pkg/core"
	"gopkg.in/yaml.v3"
)

// Stdout is the location that writes to standard output.
const Stdout = "-"

// Writer stores bytes at a location URI.
type Writer interface {
	Write(ctx context.Context, uri string, data []byte) error
}

// Sink writes one batch of events to one location.
type Sink struct {
	w      Writer
	uri    string
	format string
	stdout io.Writer
}

// New creates a sink writing format to uri through w.
func New(w Writer, uri, format string) (*Sink, error) {
	switch format {
	case config.FormatJSON, config.FormatJSONL, config.FormatYAML:
	default:
		return nil, &core.ConfigurationError{Field: "sink.format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
	if uri == "" {
		uri = Stdout
	}
	return &Sink{w: w, uri: uri, format: format, stdout: os.Stdout}, nil
}

// WithStdout redirects the Stdout location.
func (s *Sink) WithStdout(out io.Writer) *Sink {
	s.stdout = out
	return s
}

// URI returns the sink location.
func (s *Sink) URI() string {
	return s.uri
}

// Write encodes events and stores them.
func (s *Sink) Write(ctx context.Context, events []core.MetadataChangeEvent) error {
	data, err := Encode(events, s.format)
	if err != nil {
		return err
	}
	if s.uri == Stdout {
		_, err := s.stdout.Write(data)
		return err
	}
	return s.w.Write(ctx, s.uri, data)
}

// Encode renders events in format.
func Encode(events []core.MetadataChangeEvent, format string) ([]byte, error) {
	if events == nil {
		events = []core.MetadataChangeEvent{}
	}
	switch format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode events: %w", err)
		}
		return append(data, '\n'), nil

	case config.FormatJSONL:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return nil, fmt.Errorf("failed to encode event: %w", err)
			}
		}
		return buf.Bytes(), nil

	case config.FormatYAML:
		// round-trip through JSON so YAML keys match the JSON field names
		raw, err := json.Marshal(events)
		if err != nil {
			return nil, fmt.Errorf("failed to encode events: %w", err)
		}
		var tree []any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("failed to encode events: %w", err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return nil, fmt.Errorf("failed to encode events as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
