package tempfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const sweepLockName = ".sweep.lock"

// Sweep removes resources left under the root by earlier processes that
// exited before releasing them. Only names carrying the manager prefix and
// older than maxAge are touched. A file lock keeps two processes sharing
// the root from sweeping at the same time; if another process holds it the
// sweep is skipped.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	fileLock := flock.New(filepath.Join(m.root, sweepLockName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !locked {
		m.logger.Debug("Temp sweep already running in another process")
		return 0, nil
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			m.logger.WithError(err).Warn("Failed to release sweep lock")
		}
	}()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read temp root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if m.prefix == "" || !strings.HasPrefix(entry.Name(), m.prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.WithError(err).WithField("path", path).Warn("Failed to remove stale temp resource")
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.WithField("removed", removed).Info("Removed stale temp resources")
	}
	return removed, nil
}
