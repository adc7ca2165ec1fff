// Package storage persists the todo collection as one serialized blob
// under one key. Backends only move bytes; the Adapter owns the format
// and the best-effort failure policy.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// DefaultKey is the key the collection is stored under.
const DefaultKey = "todos-app-data"

// ErrNotFound is returned by backends when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a key-value store holding opaque blobs.
type Backend interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value for key.
	Set(ctx context.Context, key string, data []byte) error
	// Name identifies the backend in logs and spans.
	Name() string
}

// StorageError is a read, write or decode failure against a backend.
type StorageError struct {
	Op      string // "load", "save", "decode", "encode"
	Backend string
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s (%s): %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
