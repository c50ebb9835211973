// Package storage provides blob storage for CV files with signed,
// time-limited retrieval URLs.
package storage

import (
	"context"
	"io"
)

// Store is the blob backend for uploaded CV documents.
type Store interface {
	// Save writes the blob under key and returns the number of bytes stored.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a reader for the blob; errs.ErrNotFound if absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, key string) error
}
