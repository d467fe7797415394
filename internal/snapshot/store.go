// Package snapshot persists the reconciled pull requests of an organization as a
// JSON document on local disk.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/domain"
)

// FileStore keeps one snapshot file per key under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore keeping its snapshots under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the snapshot file of key, e.g. "<dir>/github_prs_acme.json".
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, "github_prs_"+sanitize(key)+".json")
}

// Load reads the snapshot of key and returns its modification time. A missing file
// yields an error wrapping fs.ErrNotExist.
func (s *FileStore) Load(key string) ([]domain.PullRequest, time.Time, error) {
	path := s.Path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to stat snapshot %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var prs []domain.PullRequest
	if err := json.Unmarshal(data, &prs); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if prs == nil {
		prs = []domain.PullRequest{}
	}
	return prs, info.ModTime(), nil
}

// Save replaces the snapshot of key. The file is written to a temporary file and
// renamed, so a reader never observes a partial document.
func (s *FileStore) Save(key string, prs []domain.PullRequest) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", s.dir, err)
	}
	if prs == nil {
		prs = []domain.PullRequest{}
	}

	data, err := json.MarshalIndent(prs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := s.Path(key)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, key)
}
