package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
)

// MediaLibrary implements domain.GalleryStore against a device-managed media
// directory. Albums are folders under the media root.
type MediaLibrary struct {
	root   string
	logger *zap.Logger
}

var _ domain.GalleryStore = (*MediaLibrary)(nil)

// NewMediaLibrary creates a gallery store rooted at the device media directory
func NewMediaLibrary(root string, logger *zap.Logger) *MediaLibrary {
	return &MediaLibrary{root: root, logger: logger}
}

// SaveToAlbum copies srcPath into the album folder. An entry that already
// exists under the same name counts as saved; no duplicate is written.
func (m *MediaLibrary) SaveToAlbum(ctx context.Context, srcPath, album, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(m.root, album, name)
	if _, err := os.Stat(dst); err == nil {
		m.logger.Debug("Gallery entry already exists, skipping copy",
			zap.String("album", album),
			zap.String("name", name))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create album directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create gallery entry: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		// Do not leave a truncated entry behind in the gallery.
		os.Remove(dst)
		return fmt.Errorf("copy content: %w", err)
	}

	if err := out.Sync(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("sync: %w", err)
	}

	m.logger.Info("Saved file to gallery album",
		zap.String("album", album),
		zap.String("name", name))

	return nil
}
