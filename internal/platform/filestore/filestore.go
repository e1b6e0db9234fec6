// Package filestore implements the source store on a filesystem. The
// filesystem is abstracted behind afero so tests run against an in-memory
// implementation.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tomhaynes/dragnet/internal/store"
)

// ErrInvalidRef is returned for references that would escape the store's
// directory.
var ErrInvalidRef = errors.New("invalid source reference")

// FileStore implements store.SourceStore over a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// New creates a FileStore rooted at dir, creating it if needed.
func New(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}

	return &FileStore{fs: fs, dir: dir}, nil
}

// Save writes the artifact bytes under the given reference.
func (s *FileStore) Save(ctx context.Context, ref string, r io.Reader) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}

	if err := afero.WriteReader(s.fs, path, r); err != nil {
		return fmt.Errorf("failed to write source %q: %w", ref, err)
	}
	return nil
}

// Fetch opens the artifact for reading.
func (s *FileStore) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", store.ErrSourceNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open source %q: %w", ref, err)
	}
	return f, nil
}

// Delete removes the artifact. Deleting a missing artifact is not an error.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete source %q: %w", ref, err)
	}
	return nil
}

// path resolves a reference inside the store directory. References carrying
// path separators or traversal elements are rejected.
func (s *FileStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.dir, ref), nil
}
