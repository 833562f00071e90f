package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/aniload-go/internal/domain"
)

// QueueManager owns admission control over the download queue: pending items
// are promoted into workers in FIFO order while slots remain under the
// configured concurrency limit.
type QueueManager struct {
	repo        domain.ItemRepository
	downloadMgr *DownloadManager
	config      *domain.QueueConfig
	limit       int
	logger      *zap.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	kick     chan struct{}
	workerWg sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.ItemRepository,
	downloadMgr *DownloadManager,
	config *domain.QueueConfig,
	concurrentLimit int,
	logger *zap.Logger,
) *QueueManager {
	return &QueueManager{
		repo:        repo,
		downloadMgr: downloadMgr,
		config:      config,
		limit:       concurrentLimit,
		logger:      logger,
		stopChan:    make(chan struct{}),
		kick:        make(chan struct{}, 1),
	}
}

// Start starts the queue dispatcher
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.stopChan = make(chan struct{})
	qm.mu.Unlock()

	// Transfers left in flight by a previous process come back as paused.
	if reset, err := qm.repo.ResetOrphaned(); err != nil {
		qm.logger.Warn("Failed to reset orphaned items", zap.Error(err))
	} else if reset > 0 {
		qm.logger.Info("Demoted orphaned downloads to paused", zap.Int64("count", reset))
	}

	qm.logger.Info("Queue started", zap.Int("concurrent_limit", qm.limit))

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the dispatcher and waits for workers to settle
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	close(qm.stopChan)
	qm.workerWg.Wait()
	qm.logger.Info("Queue stopped")

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Kick nudges the dispatcher without waiting for the next tick
func (qm *QueueManager) Kick() {
	select {
	case qm.kick <- struct{}{}:
	default:
	}
}

// EnqueueRequest carries the fields the UI supplies for a new download
type EnqueueRequest struct {
	AnimeID       string
	Title         string
	EpisodeNumber int
	AudioType     domain.AudioType
	Thumbnail     string
}

// Enqueue creates a persisted pending item for the requested episode. Asking
// for an episode that is already live, or completed with its file intact,
// returns the existing item instead of creating a duplicate.
func (qm *QueueManager) Enqueue(req EnqueueRequest) (*domain.DownloadItem, error) {
	if !domain.ValidateAudioType(req.AudioType) {
		return nil, fmt.Errorf("invalid audio type: %s", req.AudioType)
	}
	if req.AnimeID == "" {
		return nil, fmt.Errorf("anime id is required")
	}
	if req.EpisodeNumber < 0 {
		return nil, fmt.Errorf("invalid episode number: %d", req.EpisodeNumber)
	}

	live := []domain.ItemStatus{domain.StatusPending, domain.StatusDownloading, domain.StatusPaused}
	if existing, err := qm.repo.FindByEpisode(req.AnimeID, req.EpisodeNumber, req.AudioType, live); err == nil && existing != nil {
		qm.logger.Debug("Episode already queued", zap.String("id", existing.ID))
		return existing, nil
	}

	completed := []domain.ItemStatus{domain.StatusCompleted}
	if existing, err := qm.repo.FindByEpisode(req.AnimeID, req.EpisodeNumber, req.AudioType, completed); err == nil && existing != nil {
		switch loc := existing.Location().(type) {
		case domain.GalleryAsset:
			return existing, nil
		case domain.LocalFile:
			if _, err := os.Stat(loc.Path); err == nil {
				return existing, nil
			}
			// The file went away; drop the stale record and re-download.
			if err := qm.repo.Delete(existing.ID); err != nil {
				qm.logger.Warn("Failed to drop stale completed item", zap.String("id", existing.ID), zap.Error(err))
			}
		}
	}

	item := domain.NewDownloadItem(req.AnimeID, req.Title, req.EpisodeNumber, req.AudioType, req.Thumbnail)
	if err := qm.repo.Create(item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	qm.logger.Info("Download enqueued",
		zap.String("id", item.ID),
		zap.String("anime_id", item.AnimeID),
		zap.Int("episode", item.EpisodeNumber),
		zap.String("audio", string(item.AudioType)))

	qm.Kick()
	return item, nil
}

// GetItem retrieves an item by ID
func (qm *QueueManager) GetItem(id string) (*domain.DownloadItem, error) {
	return qm.repo.FindByID(id)
}

// ListItems lists all items with optional filters. Load failures degrade to
// an empty list; a broken store never takes the UI down with it.
func (qm *QueueManager) ListItems(filters map[string]interface{}) ([]*domain.DownloadItem, error) {
	items, err := qm.repo.FindAll(filters)
	if err != nil {
		qm.logger.Error("Failed to load items, returning empty list", zap.Error(err))
		return []*domain.DownloadItem{}, nil
	}
	return items, nil
}

// GetStats returns aggregate statistics
func (qm *QueueManager) GetStats() (*domain.ItemStats, error) {
	return qm.repo.GetStats()
}

// processQueue runs the dispatch loop
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			qm.logger.Info("Queue dispatcher stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logger.Info("Queue dispatcher stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			qm.dispatch(ctx)
		case <-qm.kick:
			qm.dispatch(ctx)
		}
	}
}

// dispatch promotes pending items into free worker slots, oldest first
func (qm *QueueManager) dispatch(ctx context.Context) {
	free := qm.limit - qm.downloadMgr.ActiveCount()
	if free <= 0 {
		return
	}

	pending, err := qm.repo.FindPending()
	if err != nil {
		qm.logger.Error("Failed to fetch pending items", zap.Error(err))
		return
	}

	for _, item := range pending {
		if free <= 0 {
			return
		}

		// claim is synchronous, so an item still marked pending in the
		// store cannot be handed to two workers.
		handle, workerCtx, ok := qm.downloadMgr.claim(ctx, item.ID)
		if !ok {
			continue
		}
		free--

		qm.workerWg.Add(1)
		go func(it *domain.DownloadItem) {
			defer qm.workerWg.Done()
			defer qm.Kick() // freed slot: promote the next pending item

			if err := qm.downloadMgr.ProcessItem(ctx, it, handle, workerCtx); err != nil && ctx.Err() == nil {
				qm.logger.Warn("Worker finished with error",
					zap.String("id", it.ID),
					zap.Error(err))
			}
		}(item)
	}
}
