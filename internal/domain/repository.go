package domain

// ItemRepository defines the interface for download item persistence
type ItemRepository interface {
	// Create creates a new item record
	Create(item *DownloadItem) error

	// Update replaces an existing item record
	Update(item *DownloadItem) error

	// Delete deletes an item by ID; absent ids are a no-op
	Delete(id string) error

	// FindByID finds an item by ID
	FindByID(id string) (*DownloadItem, error)

	// FindByEpisode finds an item for the given episode triple in one of the
	// given statuses, newest first
	FindByEpisode(animeID string, episode int, audio AudioType, statuses []ItemStatus) (*DownloadItem, error)

	// FindByStatus finds items by status
	FindByStatus(status ItemStatus) ([]*DownloadItem, error)

	// FindPending finds all pending items in enqueue (FIFO) order
	FindPending() ([]*DownloadItem, error)

	// FindAll finds all items with optional filters
	FindAll(filters map[string]interface{}) ([]*DownloadItem, error)

	// Count returns the total number of items
	Count() (int64, error)

	// CountByStatus returns the number of items by status
	CountByStatus(status ItemStatus) (int64, error)

	// ResetOrphaned demotes items left in downloading state by a previous
	// process to paused, preserving their progress. Returns how many changed.
	ResetOrphaned() (int64, error)

	// GetStats returns aggregate item statistics
	GetStats() (*ItemStats, error)
}

// ItemStats represents aggregate download statistics
type ItemStats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	Downloading int64 `json:"downloading"`
	Paused      int64 `json:"paused"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`

	// StorageUsed is the sum of size over completed items that still hold a
	// local copy. Gallery-promoted items do not count against app storage.
	StorageUsed int64 `json:"storage_used"`
}
