package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/leapstack-labs/leapmeta/internal/config"
)

var _ Store = (*AzureStore)(nil)

// AzureStore reads and writes blobs of one Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates a store for container. With an account key the
// client signs requests with a shared key; without one it sends anonymous
// requests, which works for public containers and SAS endpoints.
func NewAzureStore(cfg config.AzureConfig, container string) (*AzureStore, error) {
	if container == "" {
		return nil, errors.New("azure container is required")
	}
	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		if cfg.AccountName == "" {
			return nil, errors.New("azure account name or endpoint is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	var (
		client *azblob.Client
		err    error
	)
	if cfg.AccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: container}, nil
}

// Read downloads the blob at key.
func (s *AzureStore) Read(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("az://%s/%s: %w", s.container, key, ErrNotFound)
		}
		return nil, fmt.Errorf("download az://%s/%s: %w", s.container, key, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Write uploads data to key.
func (s *AzureStore) Write(ctx context.Context, key string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, key, data, nil); err != nil {
		return fmt.Errorf("upload az://%s/%s: %w", s.container, key, err)
	}
	return nil
}
