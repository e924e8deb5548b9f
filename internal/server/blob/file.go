package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore stores objects as files under a base directory.
type FileStore struct {
	baseDir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory: %w", err)
	}
	return &FileStore{baseDir: filepath.Clean(absDir)}, nil
}

// safePath не дает ключу выйти за пределы baseDir
func (f *FileStore) safePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	resolved := filepath.Clean(filepath.Join(f.baseDir, filepath.Clean(key)))
	if !strings.HasPrefix(resolved, f.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return resolved, nil
}

func (f *FileStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// пишем во временный файл и переименовываем, чтобы читатели не видели частичный объект
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("failed to write blob %s: wrote %d bytes, expected %d", key, n, size)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store blob %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	return file, nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Compose(ctx context.Context, dst string, srcs []string) error {
	readers := make([]io.Reader, 0, len(srcs))
	for _, src := range srcs {
		rc, err := f.Get(ctx, src)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		readers = append(readers, rc)
	}
	return f.Put(ctx, dst, io.MultiReader(readers...), -1)
}
