// Package blob reads and writes artifacts on the local filesystem or in an
// object store (S3, Google Cloud Storage, Azure Blob Storage), addressed by URI.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapmeta/internal/config"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("object not found")

// Store reads and writes objects of one bucket (or the local filesystem).
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Location is a parsed artifact URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// String renders the location back as a URI.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Supported URI schemes. A bare path is SchemeFile.
const (
	SchemeFile  = "file"
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
)

// Parse splits uri into scheme, bucket and key.
//
// Supported formats:
//
//	path/to/file, file:///path/to/file
//	s3://bucket/path/to/file
//	gs://bucket/path/to/file
//	az://container/path/to/file
//	abfss://container@account.dfs.core.windows.net/path/to/file
func Parse(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return Location{}, errors.New("empty location")
		}
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", uri, err)
	}

	var loc Location
	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeS3, SchemeGCS, SchemeAzure:
		loc = Location{Scheme: u.Scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}
	case "abfss":
		if u.User == nil {
			return Location{}, fmt.Errorf("abfss location %q missing container@account component", uri)
		}
		loc = Location{Scheme: SchemeAzure, Bucket: u.User.Username(), Key: strings.TrimPrefix(u.Path, "/")}
	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q in %q", u.Scheme, uri)
	}
	if loc.Bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in location %q", uri)
	}
	if loc.Key == "" {
		return Location{}, fmt.Errorf("empty key in location %q", uri)
	}
	return loc, nil
}

// Resolver dispatches URIs to stores, creating one client per bucket on
// first use. It is safe for concurrent use.
type Resolver struct {
	storage config.StorageConfig
	logger  *slog.Logger

	mu     sync.Mutex
	stores map[string]Store
}

// NewResolver creates a resolver using the given object store credentials.
func NewResolver(storage config.StorageConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		storage: storage,
		logger:  logger,
		stores:  make(map[string]Store),
	}
}

// Register installs store for a scheme and bucket, replacing any client the
// resolver would create itself.
func (r *Resolver) Register(scheme, bucket string, store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[scheme+"://"+bucket] = store
}

// Read returns the object at uri.
func (r *Resolver) Read(ctx context.Context, uri string) ([]byte, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	store, err := r.store(ctx, loc)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("reading artifact", "location", uri)
	data, err := store.Read(ctx, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}

// Write stores data at uri.
func (r *Resolver) Write(ctx context.Context, uri string, data []byte) error {
	loc, err := Parse(uri)
	if err != nil {
		return err
	}
	store, err := r.store(ctx, loc)
	if err != nil {
		return err
	}
	r.logger.Debug("writing artifact", "location", uri, "bytes", len(data))
	if err := store.Write(ctx, loc.Key, data); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	return nil
}

func (r *Resolver) store(ctx context.Context, loc Location) (Store, error) {
	key := loc.Scheme + "://" + loc.Bucket
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	var (
		s   Store
		err error
	)
	switch loc.Scheme {
	case SchemeFile:
		s = LocalStore{}
	case SchemeS3:
		s, err = NewS3Store(r.storage.S3, loc.Bucket)
	case SchemeGCS:
		s, err = NewGCSStore(ctx, r.storage.GCS, loc.Bucket)
	case SchemeAzure:
		s, err = NewAzureStore(r.storage.Azure, loc.Bucket)
	default:
		err = fmt.Errorf("unsupported location scheme %q", loc.Scheme)
	}
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}
