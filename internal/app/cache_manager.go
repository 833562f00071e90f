package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
)

// CacheManager bounds the size of the scratch cache directory that transient
// image/page caching fills up. It treats the filesystem as ground truth: no
// index is kept, every operation is a fresh walk.
//
// The Downloads subtree under the cache root belongs to the download queue
// and is never scanned for deletion.
type CacheManager struct {
	config *domain.CacheConfig
	logger *zap.Logger
}

// NewCacheManager creates a new cache manager
func NewCacheManager(config *domain.CacheConfig, logger *zap.Logger) *CacheManager {
	return &CacheManager{config: config, logger: logger}
}

// CacheUsage describes the current scratch cache footprint
type CacheUsage struct {
	SizeBytes int64 `json:"size_bytes"`
	FileCount int   `json:"file_count"`
}

// protectedRoot is the absolute path of the subtree the housekeeper skips
func (cm *CacheManager) protectedRoot() string {
	return filepath.Join(cm.config.Root, cm.config.ProtectedDir)
}

// walk visits every non-protected file under the cache root. Errors on
// individual entries are logged and skipped; the walk always finishes.
func (cm *CacheManager) walk(visit func(path string, info fs.FileInfo)) {
	protected := cm.protectedRoot()

	err := filepath.WalkDir(cm.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			cm.logger.Debug("Skipping unreadable cache entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == protected {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			cm.logger.Debug("Skipping cache entry without metadata", zap.String("path", path), zap.Error(err))
			return nil
		}
		visit(path, info)
		return nil
	})
	if err != nil {
		cm.logger.Warn("Cache walk aborted", zap.Error(err))
	}
}

// ScanSize sums file sizes and counts under the cache root, excluding the
// protected Downloads subtree
func (cm *CacheManager) ScanSize() CacheUsage {
	var usage CacheUsage
	cm.walk(func(path string, info fs.FileInfo) {
		usage.SizeBytes += info.Size()
		usage.FileCount++
	})
	return usage
}

// EvictOlderThan deletes non-protected cache files whose last-modified time
// exceeds the age threshold. Directories are preserved. Returns the number of
// files deleted.
func (cm *CacheManager) EvictOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	cm.walk(func(path string, info fs.FileInfo) {
		if info.ModTime().After(cutoff) {
			return
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			cm.logger.Debug("Failed to evict cache file", zap.String("path", path), zap.Error(err))
			return
		}
		deleted++
	})

	if deleted > 0 {
		cm.logger.Info("Evicted aged cache files",
			zap.Int("count", deleted),
			zap.Duration("max_age", maxAge))
	}
	return deleted
}

// EvictIfOverLimit deletes all non-protected cache content when the scratch
// area exceeds maxSizeBytes. Returns whether an eviction occurred.
func (cm *CacheManager) EvictIfOverLimit(maxSizeBytes int64) bool {
	usage := cm.ScanSize()
	if usage.SizeBytes <= maxSizeBytes {
		return false
	}

	deleted := 0
	cm.walk(func(path string, info fs.FileInfo) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			cm.logger.Debug("Failed to evict cache file", zap.String("path", path), zap.Error(err))
			return
		}
		deleted++
	})

	cm.logger.Info("Cache over size limit, evicted all scratch content",
		zap.Int64("size_bytes", usage.SizeBytes),
		zap.Int64("limit_bytes", maxSizeBytes),
		zap.Int("deleted", deleted))
	return true
}

// SmartCleanup runs the standard opportunistic pass: drop aged entries, then
// enforce the size cap. Safe to call concurrently with itself and with
// downloads in progress.
func (cm *CacheManager) SmartCleanup() {
	cm.EvictOlderThan(cm.config.MaxAge)
	cm.EvictIfOverLimit(cm.config.MaxSizeBytes)
}
