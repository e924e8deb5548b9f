// Package blob stores media objects on the filesystem or in S3.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound объект отсутствует в хранилище
var ErrNotFound = errors.New("blob not found")

// ErrInvalidKey ключ выходит за пределы хранилища
var ErrInvalidKey = errors.New("invalid blob key")

// Store abstracts the media object storage.
type Store interface {
	// Put writes the object, replacing an existing one.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get opens the object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object; a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Compose concatenates srcs in order into dst.
	Compose(ctx context.Context, dst string, srcs []string) error
}
