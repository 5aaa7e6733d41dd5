package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneOldLogs deletes rotated log files under dir matching pattern whose
// modification time is older than retentionDays. The current log file is
// never touched. A retentionDays of zero disables pruning. Returns the
// number of files removed.
func PruneOldLogs(logger *slog.Logger, dir, pattern, current string, retentionDays int) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	currentAbs, _ := filepath.Abs(current)

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == currentAbs {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed; file remains", String("path", path), Error(err))
			}
			continue
		}
		removed++
		if logger != nil {
			logger.Info("log pruned", String("path", path))
		}
	}
	return removed
}
