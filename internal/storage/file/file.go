// Package file stores blobs as files in a directory, one file per key.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hiroki-koketsu/go-todo/internal/storage"
)

// Backend writes each key to <dir>/<key>.json.
type Backend struct {
	dir string
}

// Compile-time check that Backend implements storage.Backend.
var _ storage.Backend = (*Backend)(nil)

// New creates a Backend rooted at dir. The directory is created on first write.
func New(dir string) *Backend {
	if dir == "" {
		dir = "."
	}
	return &Backend{dir: dir}
}

// Path returns the file holding key.
func (b *Backend) Path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(b.dir, name+".json")
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Set writes to a temp file and renames it over the target so readers
// never observe a partial blob.
func (b *Backend) Set(_ context.Context, key string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := b.Path(key)
	f, err := os.CreateTemp(b.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (b *Backend) Name() string {
	return "file"
}
