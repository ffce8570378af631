// Package storage keeps uploaded file bytes on disk, decoupled from the
// database rows that describe them.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Storage struct {
	root string
}

func New(root string) (*Storage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Storage{root: abs}, nil
}

// Save writes the upload under a fresh unique name and returns the
// stored path relative to the root. The original name only contributes
// its extension; everything else is discarded so uploads can never
// escape the root.
func (s *Storage) Save(originalName string, r io.Reader) (string, int64, error) {
	ext := filepath.Ext(filepath.Base(originalName))
	stored := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.root, stored))
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.root, stored))
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	return stored, size, nil
}

// Open returns a reader for a previously stored path.
func (s *Storage) Open(storedPath string) (io.ReadCloser, error) {
	full, err := s.resolve(storedPath)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// ReadAll loads the full content of a stored file.
func (s *Storage) ReadAll(storedPath string) ([]byte, error) {
	full, err := s.resolve(storedPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Delete removes a stored file. A missing file is not an error: the
// row may outlive the bytes after a partial cleanup.
func (s *Storage) Delete(storedPath string) error {
	full, err := s.resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the stored names currently on disk.
func (s *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ret = append(ret, entry.Name())
	}
	return ret, nil
}

func (s *Storage) resolve(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", fmt.Errorf("stored path is empty")
	}
	full := filepath.Join(s.root, storedPath)
	// Reject anything that joins outside the root.
	if full != s.root && !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("stored path %q escapes storage root", storedPath)
	}
	return full, nil
}
