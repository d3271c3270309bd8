// Package objectstore models the brokerage config/token/artifact store as
// a small Get/Put interface, grounded in original_source's S3Service
// (upload_file/download_file/file_exists), standing in for a real
// S3-compatible client per SPEC_FULL.md §6 since no pack repo carries an
// aws-sdk dependency to wire.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the minimal contract this agent needs: stash and retrieve a
// named artifact (a sealed TradeRecord, a rotated log) by key.
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Exists(key string) bool
}

// LocalStore is a filesystem-backed Store rooted at a base directory,
// mirroring S3Service's bucket-relative key addressing without requiring
// network credentials for local/paper runs.
type LocalStore struct {
	baseDir string
}

// NewLocalStore returns a Store rooted at baseDir, creating it if absent.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("objectstore: creating base dir %q: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// Put writes data under key, creating any intermediate directories.
func (s *LocalStore) Put(key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("objectstore: creating directory for %q: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("objectstore: writing %q: %w", key, err)
	}
	return nil
}

// Get reads the object stored under key.
func (s *LocalStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key)) // #nosec G304 -- key is an internally constructed artifact name
	if err != nil {
		return nil, fmt.Errorf("objectstore: reading %q: %w", key, err)
	}
	return data, nil
}

// Exists reports whether an object is stored under key.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}
