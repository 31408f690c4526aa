// Package storage implements the key-value collaborator that holds the
// serialized note collection: one named record per backend.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the record has never been saved.
var ErrNotFound = errors.New("storage: record not found")

// Backend persists a single record.
type Backend interface {
	// Load returns the stored bytes, or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored bytes.
	Save(ctx context.Context, data []byte) error
	// Close releases any resources held by the backend.
	Close() error
}

// Watcher is implemented by backends that can report external modifications.
type Watcher interface {
	// Watch blocks until ctx is done, calling onChange after the record changes.
	Watch(ctx context.Context, onChange func()) error
}
