package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/leapstack-labs/leapmeta/internal/config"
	"google.golang.org/api/option"
)

var _ Store = (*GCSStore)(nil)

// GCSStore reads and writes objects of one Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store for bucket. Without a credentials file the
// client uses application default credentials.
func NewGCSStore(ctx context.Context, cfg config.GCSConfig, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Read downloads the object at key.
func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Write uploads data to key.
func (s *GCSStore) Write(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
