package core

import (
	"errors"
	"fmt"
)

// ErrParserUsed is returned when a parser instance is asked to parse a second document.
var ErrParserUsed = errors.New("parser already used; create a new parser per document")

// ErrNotFound is returned by a Store when a run or entity does not exist.
var ErrNotFound = errors.New("not found")

// UnsupportedSchemaVersionError is returned when a manifest declares a schema
// version that has no known structural shape. Fatal for the whole document.
type UnsupportedSchemaVersionError struct {
	Tag string
}

func (e *UnsupportedSchemaVersionError) Error() string {
	return fmt.Sprintf("unsupported manifest schema version %q", e.Tag)
}

// MalformedDocumentError is returned when a document lacks the fields every
// schema version shares, or is not valid JSON at all.
type MalformedDocumentError struct {
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return "malformed document: " + e.Reason
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// DanglingReferenceError reports a dependency ID that is absent from its index.
// It is recoverable: the edge is dropped and parsing continues.
type DanglingReferenceError struct {
	Node    string
	Missing string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown node %s", e.Node, e.Missing)
}

// ConfigurationError reports an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// IsFatal reports whether err must abort the extraction run.
// Dangling references and unknown errors are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var (
		unsupported *UnsupportedSchemaVersionError
		malformed   *MalformedDocumentError
		config      *ConfigurationError
	)
	return errors.As(err, &unsupported) ||
		errors.As(err, &malformed) ||
		errors.As(err, &config) ||
		errors.Is(err, ErrParserUsed)
}
