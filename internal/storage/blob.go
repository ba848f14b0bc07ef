// Package storage provides the blob-store contract the version store and the
// image lifecycle build on, plus its GCS and in-memory implementations.
package storage

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = stderrors.New("object not found")

type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// Store is a flat blob store addressed by hierarchical string keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
