// Package storage manages the working-storage root where each job owns a
// subdirectory named by its identifier, and the age-based retention sweep
// that keeps the root from growing without bound.
package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tscribe/internal/logging"
)

// JobDir returns the working directory for a job.
func JobDir(root, jobID string) string {
	return filepath.Join(root, jobID)
}

// EnsureJobDir creates the working directory for a job.
func EnsureJobDir(root, jobID string) (string, error) {
	dir := JobDir(root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// RemoveJobDir deletes a job's working directory. A missing directory is not
// an error.
func RemoveJobDir(root, jobID string) error {
	return os.RemoveAll(JobDir(root, jobID))
}

// Sweep removes immediate subdirectories of root whose modification time is
// older than maxAge and returns the number removed. Directory mtime stands in
// for job age so the sweep works even when the job record is already gone or
// the store is unreachable. Individual removal failures are logged and
// swallowed; a missing root yields zero.
func Sweep(logger *slog.Logger, root string, maxAge time.Duration) int {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxAge <= 0 {
		return 0
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("retention sweep: read root failed", logging.String("root", root), logging.Error(err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warn("retention sweep: stat failed", logging.String("dir", entry.Name()), logging.Error(err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("retention sweep: remove failed; directory remains",
				logging.String("dir", path),
				logging.Error(err),
			)
			continue
		}
		removed++
		logger.Info("stale job directory pruned", logging.String("dir", path))
	}
	return removed
}
