// Package storage persists sealed TradeRecords to a local JSON file with
// atomic-write durability: temp file + fsync + rename, an EXDEV
// copy-fallback for cross-filesystem temp dirs, and a symlink-escape guard
// on the fallback path.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/eliywilner/spxspread/internal/core/traderecord"
)

// Interface is the contract cmd/agent and the dashboard depend on.
type Interface interface {
	AppendRecord(rec traderecord.TradeRecord) error
	RecordForDate(date time.Time) (traderecord.TradeRecord, bool)
	History() []traderecord.TradeRecord
}

// Data is the complete document persisted to the JSON file.
type Data struct {
	LastUpdated time.Time                 `json:"last_updated"`
	Records     []traderecord.TradeRecord `json:"records"`
}

// JSONStorage implements Interface using JSON file persistence.
type JSONStorage struct {
	data     *Data
	filepath string
	mu       sync.RWMutex
}

// NewJSONStorage creates a new JSON-based storage implementation, loading
// any existing document at filePath.
func NewJSONStorage(filePath string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: filePath,
		data:     &Data{Records: []traderecord.TradeRecord{}},
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}

	if _, err := os.Stat(filePath); err == nil {
		if loadErr := s.load(); loadErr != nil {
			return nil, fmt.Errorf("loading storage: %w", loadErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat storage file: %w", err)
	}

	return s, nil
}

var _ Interface = (*JSONStorage)(nil)

func (s *JSONStorage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath) // #nosec G304 -- path is the operator-configured storage path
	if err != nil {
		return err
	}

	var loaded Data
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	if loaded.Records == nil {
		loaded.Records = []traderecord.TradeRecord{}
	}
	s.data = &loaded
	return nil
}

// AppendRecord adds a sealed TradeRecord to the history and persists it.
// A record for the same date replaces the existing one, so a re-run after
// a crash mid-reconcile overwrites rather than duplicates the day.
func (s *JSONStorage) AppendRecord(rec traderecord.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := rec.Date.Format("2006-01-02")
	for i := range s.data.Records {
		if s.data.Records[i].Date.Format("2006-01-02") == day {
			s.data.Records[i] = rec
			return s.saveUnsafe()
		}
	}
	s.data.Records = append(s.data.Records, rec)
	return s.saveUnsafe()
}

// RecordForDate returns the record for the given date, if any.
func (s *JSONStorage) RecordForDate(date time.Time) (traderecord.TradeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := date.Format("2006-01-02")
	for _, rec := range s.data.Records {
		if rec.Date.Format("2006-01-02") == day {
			return rec, true
		}
	}
	return traderecord.TradeRecord{}, false
}

// History returns all persisted records, oldest first.
func (s *JSONStorage) History() []traderecord.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]traderecord.TradeRecord, len(s.data.Records))
	copy(out, s.data.Records)
	return out
}

// saveUnsafe performs the actual save operation without acquiring locks.
// Must be called with mutex already held.
func (s *JSONStorage) saveUnsafe() error {
	s.data.LastUpdated = time.Now().UTC()

	dir := filepath.Dir(s.filepath)
	f, err := os.CreateTemp(dir, ".storage-*")
	if err != nil {
		return err
	}
	tmpFile := f.Name()

	if err := f.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if tmpFile != "" {
			_ = os.Remove(tmpFile)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		f = nil
		return err
	}
	f = nil

	dirSynced := false
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if copyErr := s.copyFile(tmpFile, s.filepath); copyErr != nil {
				return fmt.Errorf("failed to copy temp file: %w", copyErr)
			}
			dirSynced = true
		} else {
			return fmt.Errorf("failed to rename temp file: %w", err)
		}
	}
	tmpFile = ""

	if !dirSynced {
		if err := s.syncParentDir(); err != nil {
			return fmt.Errorf("failed to sync parent directory: %w", err)
		}
	}

	return nil
}

// copyFile copies the contents of src to dst, then fsyncs dst. Used only
// on the EXDEV fallback path (temp dir and storage file on different
// filesystems).
func (s *JSONStorage) copyFile(src, dst string) error {
	if err := s.validateFilePath(src); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	if err := s.validateFilePath(dst); err != nil {
		return fmt.Errorf("invalid destination path: %w", err)
	}

	srcFile, err := os.Open(src) // #nosec G304 -- path validated above
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstDir := filepath.Dir(dst)
	tmpFile, err := os.CreateTemp(dstDir, ".tmp_*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpFileName := tmpFile.Name()

	var tempFileClosed bool
	defer func() {
		if !tempFileClosed {
			_ = tmpFile.Close()
		}
		if tmpFileName != "" {
			_ = os.Remove(tmpFileName)
		}
	}()

	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tempFileClosed = true

	if err := os.Rename(tmpFileName, dst); err != nil {
		return fmt.Errorf("failed to rename temp file to destination: %w", err)
	}

	if err := s.validateFilePath(dstDir); err != nil {
		return fmt.Errorf("invalid destination directory path: %w", err)
	}
	if dir, err := os.Open(dstDir); err == nil { // #nosec G304 -- path validated above
		defer func() { _ = dir.Close() }()
		if syncErr := dir.Sync(); syncErr != nil {
			return fmt.Errorf("failed to fsync destination directory: %w", syncErr)
		}
	}

	tmpFileName = ""
	return nil
}

// validateFilePath ensures path does not escape the storage directory via
// a symlink or ".." traversal, guarding the EXDEV fallback copy.
func (s *JSONStorage) validateFilePath(path string) error {
	storageRoot := filepath.Dir(s.filepath)
	storageRootAbs, err := filepath.Abs(filepath.Clean(storageRoot))
	if err != nil {
		return fmt.Errorf("failed to resolve storage root: %w", err)
	}
	storageRootResolved, err := filepath.EvalSymlinks(storageRootAbs)
	if err != nil {
		return fmt.Errorf("failed to resolve symlinks in storage root: %w", err)
	}

	targetAbs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve target path: %w", err)
	}

	var targetResolved string
	if _, statErr := os.Stat(targetAbs); statErr == nil {
		resolved, err := filepath.EvalSymlinks(targetAbs)
		if err != nil {
			return fmt.Errorf("failed to resolve symlinks in target: %w", err)
		}
		targetResolved = resolved
	} else if os.IsNotExist(statErr) {
		parentResolved, perr := filepath.EvalSymlinks(filepath.Dir(targetAbs))
		if perr != nil {
			return fmt.Errorf("failed to resolve symlinks in target parent: %w", perr)
		}
		targetResolved = filepath.Join(parentResolved, filepath.Base(targetAbs))
	} else {
		return fmt.Errorf("failed to stat target path: %w", statErr)
	}

	relPath, err := filepath.Rel(storageRootResolved, targetResolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("path escapes storage directory: %s (resolved to: %s)", path, targetResolved)
	}
	return nil
}

// syncParentDir fsyncs the directory containing the storage file so a
// rename is durable even across a crash immediately after.
func (s *JSONStorage) syncParentDir() error {
	parentDir := filepath.Dir(s.filepath)
	dir, err := os.Open(parentDir) // #nosec G304 -- parentDir is the storage root, validated at construction
	if err != nil {
		return err
	}
	defer func() { _ = dir.Close() }()
	return dir.Sync()
}
