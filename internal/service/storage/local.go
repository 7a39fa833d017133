// Package storage provides file staging for ingestion: a local warehouse
// directory for embedded-mode loads and an S3 presigner for remote-mode
// uploads.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore stages uploaded files under a warehouse directory so the
// embedded engine can read them by path.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the warehouse directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("warehouse directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create warehouse dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the stream to a uniquely named file and returns its path.
// The original filename is kept as a suffix for debuggability.
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + "_" + filepath.Base(filename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // path is server-generated
	if err != nil {
		return "", fmt.Errorf("stage file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("stage file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("stage file: %w", err)
	}
	return path, nil
}

// Remove deletes a staged file. Missing files are ignored.
func (s *LocalStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
