package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore reads and writes files; keys are filesystem paths.
type LocalStore struct{}

// Read returns the contents of the file at key.
func (LocalStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}

// Write replaces the file at key, creating parent directories.
func (LocalStore) Write(_ context.Context, key string, data []byte) error {
	if dir := filepath.Dir(key); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(key, data, 0o600)
}
