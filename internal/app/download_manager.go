package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
	"github.com/yourusername/aniload-go/internal/infrastructure"
)

// stopReason records why an in-flight worker was interrupted
type stopReason int

const (
	stopNone stopReason = iota
	stopPause
	stopCancel
)

// workerHandle is the control surface for one active transfer
type workerHandle struct {
	cancel context.CancelFunc
	mu     sync.Mutex
	reason stopReason
}

func (h *workerHandle) stop(reason stopReason) {
	h.mu.Lock()
	if h.reason == stopNone {
		h.reason = reason
	}
	h.mu.Unlock()
	h.cancel()
}

func (h *workerHandle) stopReason() stopReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// DownloadManager is the single entry point for download control operations.
// It owns the registry of in-flight workers; the persistent store is the
// source of truth for everything else.
type DownloadManager struct {
	repo       domain.ItemRepository
	source     domain.ContentSource
	gallery    domain.GalleryStore
	notifier   *infrastructure.NotificationService
	config     *domain.DownloadConfig
	galleryCfg *domain.GalleryConfig
	logger     *zap.Logger

	mu     sync.Mutex
	active map[string]*workerHandle
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	repo domain.ItemRepository,
	source domain.ContentSource,
	gallery domain.GalleryStore,
	notifier *infrastructure.NotificationService,
	config *domain.DownloadConfig,
	galleryCfg *domain.GalleryConfig,
	logger *zap.Logger,
) *DownloadManager {
	return &DownloadManager{
		repo:       repo,
		source:     source,
		gallery:    gallery,
		notifier:   notifier,
		config:     config,
		galleryCfg: galleryCfg,
		logger:     logger,
		active:     make(map[string]*workerHandle),
	}
}

// ActiveCount returns the number of in-flight transfers
func (dm *DownloadManager) ActiveCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.active)
}

// IsActive reports whether the item has an in-flight worker
func (dm *DownloadManager) IsActive(id string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, ok := dm.active[id]
	return ok
}

// claim reserves a worker slot for the item. It is called synchronously by
// the queue dispatcher so an item can never be dispatched twice.
func (dm *DownloadManager) claim(ctx context.Context, id string) (*workerHandle, context.Context, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, ok := dm.active[id]; ok {
		return nil, nil, false
	}
	workerCtx, cancel := context.WithCancel(ctx)
	handle := &workerHandle{cancel: cancel}
	dm.active[id] = handle
	return handle, workerCtx, true
}

func (dm *DownloadManager) release(id string) {
	dm.mu.Lock()
	if handle, ok := dm.active[id]; ok {
		handle.cancel()
		delete(dm.active, id)
	}
	dm.mu.Unlock()
}

// partPath is where partial bytes accumulate during a transfer
func (dm *DownloadManager) partPath(item *domain.DownloadItem) string {
	return filepath.Join(dm.config.BaseDir, item.AnimeID, item.FileName()+".part")
}

// ProcessItem runs one transfer to completion, pause, cancellation, or
// failure. It is invoked by the queue dispatcher after a successful claim.
func (dm *DownloadManager) ProcessItem(ctx context.Context, item *domain.DownloadItem, handle *workerHandle, workerCtx context.Context) error {
	defer dm.release(item.ID)

	// The item may have been paused or canceled between dispatch reading it
	// and this worker starting.
	fresh, err := dm.repo.FindByID(item.ID)
	if err != nil || fresh == nil || fresh.Status != domain.StatusPending {
		return nil
	}
	item = fresh

	item.MarkDownloading()
	if err := dm.repo.Update(item); err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}

	dm.logger.Info("Processing download",
		zap.String("id", item.ID),
		zap.String("anime_id", item.AnimeID),
		zap.Int("episode", item.EpisodeNumber),
		zap.String("audio", string(item.AudioType)))

	partPath := dm.partPath(item)
	var offset int64
	if fi, err := os.Stat(partPath); err == nil {
		offset = fi.Size()
	}

	// Progress writes are coalesced to one store update per interval so a
	// fast transfer does not hammer the database.
	lastFlush := time.Now()
	report := func(written, total int64) {
		if total > 0 {
			if item.Size != total {
				item.Size = total
			}
			item.SetProgress(float64(written) / float64(total))
		}
		if time.Since(lastFlush) >= dm.config.ProgressInterval {
			lastFlush = time.Now()
			if err := dm.repo.Update(item); err != nil {
				dm.logger.Warn("Failed to persist progress", zap.String("id", item.ID), zap.Error(err))
			}
		}
	}

	req := domain.FetchRequest{
		AnimeID:       item.AnimeID,
		EpisodeNumber: item.EpisodeNumber,
		AudioType:     item.AudioType,
		Offset:        offset,
	}

	info, err := dm.source.Fetch(workerCtx, req, partPath, report)
	if err != nil {
		return dm.finishInterrupted(ctx, item, handle, partPath, err)
	}

	finalPath := strings.TrimSuffix(partPath, ".part")
	if err := os.Rename(partPath, finalPath); err != nil {
		item.MarkFailed(fmt.Errorf("move completed file: %w", err))
		dm.updateQuietly(item)
		return err
	}

	// Integrity check before declaring the item playable.
	fi, err := os.Stat(finalPath)
	if err != nil || fi.Size() == 0 {
		statErr := fmt.Errorf("completed file missing or empty")
		item.MarkFailed(statErr)
		dm.updateQuietly(item)
		return statErr
	}

	size := info.TotalSize
	if size == 0 {
		size = fi.Size()
	}
	item.MarkCompleted(finalPath, size)
	dm.updateQuietly(item)

	dm.promoteToGallery(ctx, item)

	dm.logger.Info("Download completed",
		zap.String("id", item.ID),
		zap.String("anime_id", item.AnimeID),
		zap.Int64("size", item.Size),
		zap.Bool("in_gallery", item.IsInGallery))

	if dm.notifier != nil {
		dm.notifier.NotifyDownloadCompleted(item)
	}
	return nil
}

// finishInterrupted settles the item after the stream stopped early
func (dm *DownloadManager) finishInterrupted(ctx context.Context, item *domain.DownloadItem, handle *workerHandle, partPath string, fetchErr error) error {
	switch handle.stopReason() {
	case stopPause:
		item.MarkPaused()
		dm.updateQuietly(item)
		dm.logger.Info("Download paused",
			zap.String("id", item.ID),
			zap.Float64("progress", item.Progress))
		return nil

	case stopCancel:
		if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
			dm.logger.Warn("Failed to remove partial file", zap.String("path", partPath), zap.Error(err))
		}
		if err := dm.repo.Delete(item.ID); err != nil {
			dm.logger.Warn("Failed to delete canceled item", zap.String("id", item.ID), zap.Error(err))
		}
		dm.logger.Info("Download canceled", zap.String("id", item.ID))
		return nil
	}

	if ctx.Err() != nil {
		// Process shutdown. Keep partial bytes; the item is demoted to
		// paused so a later start can resume it.
		item.MarkPaused()
		dm.updateQuietly(item)
		return ctx.Err()
	}

	item.MarkFailed(fetchErr)
	dm.updateQuietly(item)
	dm.logger.Warn("Download failed",
		zap.String("id", item.ID),
		zap.Float64("progress", item.Progress),
		zap.Error(fetchErr))
	if dm.notifier != nil {
		dm.notifier.NotifyDownloadFailed(item)
	}
	return fetchErr
}

// promoteToGallery moves a completed file into device gallery storage. Both
// outcomes are valid terminal states: failure just keeps the local copy.
func (dm *DownloadManager) promoteToGallery(ctx context.Context, item *domain.DownloadItem) {
	if dm.galleryCfg == nil || !dm.galleryCfg.Enabled || dm.gallery == nil {
		return
	}

	switch loc := item.Location().(type) {
	case domain.GalleryAsset:
		// Already promoted.
		return
	case domain.LocalFile:
		fi, err := os.Stat(loc.Path)
		if err != nil || fi.Size() == 0 {
			dm.logger.Warn("Skipping gallery promotion, local file not intact",
				zap.String("id", item.ID),
				zap.String("path", loc.Path))
			return
		}

		if err := dm.gallery.SaveToAlbum(ctx, loc.Path, dm.galleryCfg.Album, item.FileName()); err != nil {
			dm.logger.Info("Gallery promotion unavailable, keeping local copy",
				zap.String("id", item.ID),
				zap.Error(err))
			return
		}

		if err := os.Remove(loc.Path); err != nil && !os.IsNotExist(err) {
			dm.logger.Warn("Failed to remove local copy after promotion",
				zap.String("path", loc.Path),
				zap.Error(err))
		}
		item.MarkInGallery()
		dm.updateQuietly(item)
	case domain.NoContent:
		return
	}
}

// Pause pauses an in-flight or pending item, keeping partial progress
func (dm *DownloadManager) Pause(id string) error {
	dm.mu.Lock()
	handle, inFlight := dm.active[id]
	dm.mu.Unlock()

	if inFlight {
		handle.stop(stopPause)
		return nil
	}

	item, err := dm.repo.FindByID(id)
	if err != nil || item == nil {
		return fmt.Errorf("item not found: %s", id)
	}
	if item.Status != domain.StatusPending {
		return fmt.Errorf("item is not pausable: %s", item.Status)
	}
	item.MarkPaused()
	return dm.repo.Update(item)
}

// Resume re-enqueues a paused or failed item. Partial bytes on disk are kept
// so the next worker can continue with a ranged request where the source
// allows it.
func (dm *DownloadManager) Resume(id string) error {
	item, err := dm.repo.FindByID(id)
	if err != nil || item == nil {
		return fmt.Errorf("item not found: %s", id)
	}

	switch item.Status {
	case domain.StatusPaused, domain.StatusFailed:
	default:
		return fmt.Errorf("item is not resumable: %s", item.Status)
	}

	item.Status = domain.StatusPending
	item.ErrorMessage = ""
	item.UpdatedAt = time.Now()
	if err := dm.repo.Update(item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	dm.logger.Info("Item queued for resume", zap.String("id", id), zap.Float64("progress", item.Progress))
	return nil
}

// Cancel cancels a live item, removing it and any partial bytes
func (dm *DownloadManager) Cancel(id string) error {
	dm.mu.Lock()
	handle, inFlight := dm.active[id]
	dm.mu.Unlock()

	if inFlight {
		// The worker deletes the record and partial file on its way out.
		handle.stop(stopCancel)
		return nil
	}

	item, err := dm.repo.FindByID(id)
	if err != nil || item == nil {
		return fmt.Errorf("item not found: %s", id)
	}
	if !item.IsLive() {
		return fmt.Errorf("item is not cancelable: %s", item.Status)
	}

	dm.removeBackingFiles(item)
	return dm.repo.Delete(id)
}

// Remove deletes a terminal item and its backing file. Gallery copies are
// left alone; the device owns those.
func (dm *DownloadManager) Remove(id string) error {
	item, err := dm.repo.FindByID(id)
	if err != nil || item == nil {
		return fmt.Errorf("item not found: %s", id)
	}
	if !item.IsTerminal() {
		return fmt.Errorf("item is not removable while %s, cancel it instead", item.Status)
	}

	dm.removeBackingFiles(item)
	return dm.repo.Delete(id)
}

// ClearAll cancels every in-flight transfer and removes all items and their
// local files
func (dm *DownloadManager) ClearAll() error {
	dm.mu.Lock()
	handles := make(map[string]*workerHandle, len(dm.active))
	for id, h := range dm.active {
		handles[id] = h
	}
	dm.mu.Unlock()

	for _, h := range handles {
		h.stop(stopCancel)
	}

	items, err := dm.repo.FindAll(nil)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	for _, item := range items {
		if _, inFlight := handles[item.ID]; inFlight {
			continue // the worker cleans these up
		}
		dm.removeBackingFiles(item)
		if err := dm.repo.Delete(item.ID); err != nil {
			dm.logger.Warn("Failed to delete item", zap.String("id", item.ID), zap.Error(err))
		}
	}

	dm.logger.Info("Cleared all downloads", zap.Int("count", len(items)))
	return nil
}

// ValidateAndCleanup removes completed items whose backing file vanished.
// The user-visible contract is "this download no longer exists", so the item
// is removed rather than failed. Gallery-only items are assumed valid.
// Returns the number of items removed.
func (dm *DownloadManager) ValidateAndCleanup() (int, error) {
	items, err := dm.repo.FindByStatus(domain.StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to list completed items: %w", err)
	}

	removed := 0
	for _, item := range items {
		loc, ok := item.Location().(domain.LocalFile)
		if !ok {
			continue
		}
		if _, err := os.Stat(loc.Path); err == nil {
			continue
		}
		if err := dm.repo.Delete(item.ID); err != nil {
			dm.logger.Warn("Failed to remove dangling item", zap.String("id", item.ID), zap.Error(err))
			continue
		}
		removed++
		dm.logger.Info("Removed item with missing backing file",
			zap.String("id", item.ID),
			zap.String("path", loc.Path))
	}

	return removed, nil
}

// removeBackingFiles deletes local content for an item, final and partial
func (dm *DownloadManager) removeBackingFiles(item *domain.DownloadItem) {
	if loc, ok := item.Location().(domain.LocalFile); ok {
		if err := os.Remove(loc.Path); err != nil && !os.IsNotExist(err) {
			dm.logger.Warn("Failed to remove file", zap.String("path", loc.Path), zap.Error(err))
		}
	}
	partPath := dm.partPath(item)
	if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
		dm.logger.Warn("Failed to remove partial file", zap.String("path", partPath), zap.Error(err))
	}
}

// updateQuietly persists the item, logging instead of propagating failure
func (dm *DownloadManager) updateQuietly(item *domain.DownloadItem) {
	if err := dm.repo.Update(item); err != nil {
		dm.logger.Error("Failed to persist item state",
			zap.String("id", item.ID),
			zap.String("status", string(item.Status)),
			zap.Error(err))
	}
}
