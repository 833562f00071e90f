package infrastructure

import (
	"fmt"
	"os"
	"time"

	"github.com/yourusername/aniload-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteItemRepository implements domain.ItemRepository using SQLite
type SQLiteItemRepository struct {
	db *gorm.DB
}

// NewSQLiteItemRepository creates a new SQLite repository. A database file
// that cannot be opened or migrated is moved aside and recreated empty, so a
// corrupt store degrades to an empty one instead of failing startup.
func NewSQLiteItemRepository(dbPath string) (*SQLiteItemRepository, error) {
	db, err := openAndMigrate(dbPath)
	if err != nil {
		// Move the unreadable file aside and start fresh.
		backup := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
		if renameErr := os.Rename(dbPath, backup); renameErr != nil && !os.IsNotExist(renameErr) {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db, err = openAndMigrate(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate database: %w", err)
		}
	}

	return &SQLiteItemRepository{db: db}, nil
}

func openAndMigrate(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.DownloadItem{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Create creates a new item record
func (r *SQLiteItemRepository) Create(item *domain.DownloadItem) error {
	return r.db.Create(item).Error
}

// Update replaces an existing item record
func (r *SQLiteItemRepository) Update(item *domain.DownloadItem) error {
	return r.db.Save(item).Error
}

// Delete deletes an item by ID
func (r *SQLiteItemRepository) Delete(id string) error {
	return r.db.Delete(&domain.DownloadItem{}, "id = ?", id).Error
}

// FindByID finds an item by ID
func (r *SQLiteItemRepository) FindByID(id string) (*domain.DownloadItem, error) {
	var item domain.DownloadItem
	err := r.db.First(&item, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByEpisode finds an item for the given episode triple in one of the
// given statuses, newest first
func (r *SQLiteItemRepository) FindByEpisode(animeID string, episode int, audio domain.AudioType, statuses []domain.ItemStatus) (*domain.DownloadItem, error) {
	var item domain.DownloadItem
	err := r.db.
		Where("anime_id = ? AND episode_number = ? AND audio_type = ? AND status IN ?",
			animeID, episode, audio, statuses).
		Order("date_added DESC").
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByStatus finds items by status
func (r *SQLiteItemRepository) FindByStatus(status domain.ItemStatus) ([]*domain.DownloadItem, error) {
	var items []*domain.DownloadItem
	err := r.db.Where("status = ?", status).Find(&items).Error
	return items, err
}

// FindPending finds all pending items in enqueue order
func (r *SQLiteItemRepository) FindPending() ([]*domain.DownloadItem, error) {
	var items []*domain.DownloadItem
	// rowid breaks ties between items enqueued in the same millisecond.
	err := r.db.Where("status = ?", domain.StatusPending).
		Order("date_added ASC, rowid ASC").
		Find(&items).Error
	return items, err
}

// FindAll finds all items with optional filters
func (r *SQLiteItemRepository) FindAll(filters map[string]interface{}) ([]*domain.DownloadItem, error) {
	var items []*domain.DownloadItem
	query := r.db

	for key, value := range filters {
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("date_added DESC").Find(&items).Error
	return items, err
}

// Count returns the total number of items
func (r *SQLiteItemRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.DownloadItem{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of items by status
func (r *SQLiteItemRepository) CountByStatus(status domain.ItemStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.DownloadItem{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// ResetOrphaned demotes items left downloading by a previous process to
// paused, preserving their progress
func (r *SQLiteItemRepository) ResetOrphaned() (int64, error) {
	result := r.db.Model(&domain.DownloadItem{}).
		Where("status = ?", domain.StatusDownloading).
		Updates(map[string]interface{}{
			"status":     domain.StatusPaused,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// GetStats returns aggregate item statistics
func (r *SQLiteItemRepository) GetStats() (*domain.ItemStats, error) {
	stats := &domain.ItemStats{}

	if err := r.db.Model(&domain.DownloadItem{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.ItemStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.DownloadItem{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusPending:
			stats.Pending = sc.Count
		case domain.StatusDownloading:
			stats.Downloading = sc.Count
		case domain.StatusPaused:
			stats.Paused = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		}
	}

	// Storage used counts only completed items still holding a local copy.
	if err := r.db.Model(&domain.DownloadItem{}).
		Select("COALESCE(SUM(size), 0)").
		Where("status = ? AND is_in_gallery = ?", domain.StatusCompleted, false).
		Scan(&stats.StorageUsed).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteItemRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
