package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/aniload-go/internal/domain"
)

func newTestCache(t *testing.T) (*CacheManager, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &domain.CacheConfig{
		Root:         root,
		ProtectedDir: "Downloads",
		MaxAge:       24 * time.Hour,
		MaxSizeBytes: 1024,
	}
	return NewCacheManager(cfg, testLogger()), root
}

func writeCacheFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func ageFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestScanSize_ExcludesProtectedSubtree(t *testing.T) {
	cm, root := newTestCache(t)

	writeCacheFile(t, filepath.Join(root, "thumbs", "a.jpg"), 100)
	writeCacheFile(t, filepath.Join(root, "pages", "b.jpg"), 50)
	writeCacheFile(t, filepath.Join(root, "Downloads", "aot", "e001.mp4"), 9999)

	usage := cm.ScanSize()
	assert.EqualValues(t, 150, usage.SizeBytes)
	assert.Equal(t, 2, usage.FileCount)
}

func TestEvictOlderThan(t *testing.T) {
	cm, root := newTestCache(t)

	oldFile := filepath.Join(root, "thumbs", "old.jpg")
	freshFile := filepath.Join(root, "thumbs", "fresh.jpg")
	protectedOld := filepath.Join(root, "Downloads", "old.mp4")
	writeCacheFile(t, oldFile, 10)
	writeCacheFile(t, freshFile, 10)
	writeCacheFile(t, protectedOld, 10)
	ageFile(t, oldFile, 48*time.Hour)
	ageFile(t, protectedOld, 48*time.Hour)

	deleted := cm.EvictOlderThan(24 * time.Hour)
	assert.Equal(t, 1, deleted)

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshFile)
	assert.NoError(t, err)
	_, err = os.Stat(protectedOld)
	assert.NoError(t, err, "protected downloads are never aged out")

	// Directories survive eviction.
	fi, err := os.Stat(filepath.Join(root, "thumbs"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestEvictIfOverLimit(t *testing.T) {
	cm, root := newTestCache(t)

	scratch := filepath.Join(root, "pages", "big.bin")
	protected := filepath.Join(root, "Downloads", "keep.mp4")
	writeCacheFile(t, scratch, 500)
	require.NoError(t, os.MkdirAll(filepath.Dir(protected), 0755))
	require.NoError(t, os.WriteFile(protected, []byte("precious bytes"), 0644))

	assert.False(t, cm.EvictIfOverLimit(1000), "under the limit, nothing happens")
	_, err := os.Stat(scratch)
	assert.NoError(t, err)

	assert.True(t, cm.EvictIfOverLimit(100))
	_, err = os.Stat(scratch)
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(protected)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious bytes"), content, "protected content must survive byte for byte")
}

func TestSmartCleanup(t *testing.T) {
	cm, root := newTestCache(t)

	aged := filepath.Join(root, "thumbs", "aged.jpg")
	writeCacheFile(t, aged, 10)
	ageFile(t, aged, 48*time.Hour)

	// Under the 1024-byte cap after the age pass, so the fresh file stays.
	fresh := filepath.Join(root, "thumbs", "fresh.jpg")
	writeCacheFile(t, fresh, 10)

	cm.SmartCleanup()

	_, err := os.Stat(aged)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)

	// Over the cap, everything scratch goes.
	writeCacheFile(t, filepath.Join(root, "pages", "huge.bin"), 2048)
	cm.SmartCleanup()

	usage := cm.ScanSize()
	assert.EqualValues(t, 0, usage.SizeBytes)
}
