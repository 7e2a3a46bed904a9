package blob

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leapstack-labs/leapmeta/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Location
		wantErr bool
	}{
		{name: "bare path", uri: "target/manifest.json", want: Location{Scheme: SchemeFile, Key: "target/manifest.json"}},
		{name: "file uri", uri: "file:///tmp/manifest.json", want: Location{Scheme: SchemeFile, Key: "/tmp/manifest.json"}},
		{name: "s3", uri: "s3://artifacts/prod/manifest.json", want: Location{Scheme: SchemeS3, Bucket: "artifacts", Key: "prod/manifest.json"}},
		{name: "gcs", uri: "gs://artifacts/manifest.json", want: Location{Scheme: SchemeGCS, Bucket: "artifacts", Key: "manifest.json"}},
		{name: "azure", uri: "az://dbt/run/manifest.json", want: Location{Scheme: SchemeAzure, Bucket: "dbt", Key: "run/manifest.json"}},
		{name: "abfss", uri: "abfss://dbt@acct.dfs.core.windows.net/manifest.json", want: Location{Scheme: SchemeAzure, Bucket: "dbt", Key: "manifest.json"}},
		{name: "empty", uri: "", wantErr: true},
		{name: "unknown scheme", uri: "ftp://host/manifest.json", wantErr: true},
		{name: "missing key", uri: "s3://artifacts/", wantErr: true},
		{name: "missing bucket", uri: "gs:///manifest.json", wantErr: true},
		{name: "abfss without container", uri: "abfss://acct.dfs.core.windows.net/manifest.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "s3://b/k.json", Location{Scheme: SchemeS3, Bucket: "b", Key: "k.json"}.String())
	assert.Equal(t, "out/k.json", Location{Scheme: SchemeFile, Key: "out/k.json"}.String())
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "events.json")

	_, err := LocalStore{}.Read(ctx, path)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, LocalStore{}.Write(ctx, path, []byte(`{"a":1}`)))
	data, err := LocalStore{}.Read(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *memStore) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func TestResolver_RegisteredStore(t *testing.T) {
	ctx := context.Background()
	mem := &memStore{objects: map[string][]byte{"prod/manifest.json": []byte("{}")}}
	r := NewResolver(config.StorageConfig{}, nil)
	r.Register(SchemeS3, "artifacts", mem)

	data, err := r.Read(ctx, "s3://artifacts/prod/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, r.Write(ctx, "s3://artifacts/out/events.json", []byte("[]")))
	assert.Equal(t, "[]", string(mem.objects["out/events.json"]))

	_, err = r.Read(ctx, "s3://artifacts/missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "s3://artifacts/missing.json")
}

func TestResolver_LocalFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "manifest.json")
	r := NewResolver(config.StorageConfig{}, nil)

	require.NoError(t, r.Write(ctx, path, []byte("{}")))
	data, err := r.Read(ctx, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestResolver_InvalidLocation(t *testing.T) {
	r := NewResolver(config.StorageConfig{}, nil)
	_, err := r.Read(context.Background(), "ftp://host/x")
	assert.Error(t, err)
}

func TestNewS3Store_PartialCredentials(t *testing.T) {
	_, err := NewS3Store(config.S3Config{Region: "us-east-1", AccessKeyID: "AKIA"}, "bucket")
	assert.Error(t, err)
}

func TestNewAzureStore_RequiresAccount(t *testing.T) {
	_, err := NewAzureStore(config.AzureConfig{}, "container")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("a/b.JSON"))
	assert.Equal(t, "application/x-ndjson", contentType("events.jsonl"))
	assert.Equal(t, "application/yaml", contentType("events.yml"))
	assert.Equal(t, "application/octet-stream", contentType("events"))
}
