// Package tempfiles governs transient artifacts (rasterized pages, split
// PDFs, intermediate OCR outputs). Every artifact is owned by the processing
// step that created it and is removed before that step returns; removal
// retries a bounded number of times and is never allowed to fail a request.
package tempfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lipiscan/extract-worker/internal/logging"
)

// Manager creates and removes transient artifacts under a dedicated
// directory with a bounded retrying delete.
type Manager struct {
	dir         string
	maxAttempts int
	backoff     time.Duration
	log         *logging.Logger
}

// NewManager creates the artifact directory if needed and returns a Manager.
func NewManager(dir string, maxAttempts int, backoff time.Duration, log *logging.Logger) (*Manager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &Manager{dir: dir, maxAttempts: maxAttempts, backoff: backoff, log: log}, nil
}

// Path returns a fresh unique artifact path with the given suffix. Nothing is
// created on disk.
func (m *Manager) Path(suffix string) string {
	return filepath.Join(m.dir, uuid.New().String()+suffix)
}

// Write stores data in a fresh artifact with the given suffix and returns its
// path. The caller owns the artifact and must Remove it.
func (m *Manager) Write(suffix string, data []byte) (string, error) {
	path := m.Path(suffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes an artifact, retrying up to the configured attempt count
// with backoff between attempts. A missing file counts as success. Exhausted
// retries are logged and ignored: a stray temp file must not fail a request.
func (m *Manager) Remove(path string) {
	if path == "" {
		return
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
		lastErr = err
		if attempt < m.maxAttempts {
			time.Sleep(m.backoff)
		}
	}

	if m.log != nil {
		m.log.Warn("failed to remove transient artifact", "path", path, "error", lastErr)
	}
}

// RemoveAll removes several artifacts, attempting each one independently.
func (m *Manager) RemoveAll(paths ...string) {
	for _, p := range paths {
		m.Remove(p)
	}
}
