// Package staging manages per-run scratch directories under the configured
// work directory.
//
// Only directories carrying the run prefix are considered, so pointing
// work_dir at a shared location such as /tmp never touches foreign data.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aaxsplit/internal/logging"
)

// RunPrefix marks scratch directories created by Create.
const RunPrefix = "run-"

// DefaultMaxAge is how long an abandoned run directory is kept.
const DefaultMaxAge = 24 * time.Hour

// DirInfo describes one run directory.
type DirInfo struct {
	Name    string
	RunID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// Create makes the scratch directory for a run.
func Create(workDir, runID string) (string, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return "", errors.New("work directory not configured")
	}
	if strings.TrimSpace(runID) == "" {
		return "", errors.New("run id is required")
	}
	dir := filepath.Join(workDir, RunPrefix+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// CleanStaleResult lists what CleanStale removed and what it could not.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes run directories last modified before now-maxAge.
// A missing work directory is not an error.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanStaleResult
	cutoff := time.Now().Add(-maxAge)
	err := scanRuns(workDir, func(dir DirInfo) bool {
		if ctx.Err() != nil {
			return false
		}
		if !dir.ModTime.Before(cutoff) {
			return true
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logger.Warn("failed to remove stale work directory", logging.String("path", dir.Path), logging.Error(err))
			return true
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed stale work directory",
			logging.String("run", dir.RunID),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Minute)),
		)
		return true
	})
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: workDir, Error: err})
	}
	return result
}

// ListDirectories returns every run directory with its total size.
func ListDirectories(workDir string) ([]DirInfo, error) {
	var dirs []DirInfo
	err := scanRuns(workDir, func(dir DirInfo) bool {
		dir.Size = dirSize(dir.Path)
		dirs = append(dirs, dir)
		return true
	})
	return dirs, err
}

// scanRuns calls fn for each run directory until fn returns false.
func scanRuns(workDir string, fn func(DirInfo) bool) error {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil
	}
	entries, err := os.ReadDir(workDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, RunPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dir := DirInfo{
			Name:    name,
			RunID:   strings.TrimPrefix(name, RunPrefix),
			Path:    filepath.Join(workDir, name),
			ModTime: info.ModTime(),
		}
		if !fn(dir) {
			return nil
		}
	}
	return nil
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
