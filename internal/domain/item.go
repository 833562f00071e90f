package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the current status of a download item
type ItemStatus string

const (
	StatusPending     ItemStatus = "pending"
	StatusDownloading ItemStatus = "downloading"
	StatusPaused      ItemStatus = "paused"
	StatusCompleted   ItemStatus = "completed"
	StatusFailed      ItemStatus = "failed"
)

// AudioType represents the audio track of an episode
type AudioType string

const (
	AudioSub AudioType = "sub"
	AudioDub AudioType = "dub"
)

// DownloadItem represents one requested episode file
type DownloadItem struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AnimeID       string     `json:"anime_id" gorm:"not null;index"`
	Title         string     `json:"title" gorm:"not null"`
	EpisodeNumber int        `json:"episode_number" gorm:"not null"`
	AudioType     AudioType  `json:"audio_type" gorm:"not null"`
	Thumbnail     string     `json:"thumbnail,omitempty"`
	Status        ItemStatus `json:"status" gorm:"not null;index"`
	Progress      float64    `json:"progress"`
	Size          int64      `json:"size"`
	DateAdded     int64      `json:"date_added" gorm:"index"` // epoch milliseconds
	FilePath      string     `json:"file_path,omitempty"`
	IsInGallery   bool       `json:"is_in_gallery"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewDownloadItem creates a new pending download item
func NewDownloadItem(animeID, title string, episode int, audio AudioType, thumbnail string) *DownloadItem {
	now := time.Now()
	return &DownloadItem{
		ID:            uuid.New().String(),
		AnimeID:       animeID,
		Title:         title,
		EpisodeNumber: episode,
		AudioType:     audio,
		Thumbnail:     thumbnail,
		Status:        StatusPending,
		Progress:      0,
		DateAdded:     now.UnixMilli(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// StorageLocation identifies where the playable content of a completed item
// lives. Exactly one variant applies at a time; consumers switch exhaustively.
type StorageLocation interface {
	storageLocation()
}

// LocalFile is content kept in the app-managed downloads directory.
type LocalFile struct {
	Path string
}

// GalleryAsset is content promoted into device-managed gallery storage.
type GalleryAsset struct{}

// NoContent means no playable content exists yet (pre-completion states).
type NoContent struct{}

func (LocalFile) storageLocation()    {}
func (GalleryAsset) storageLocation() {}
func (NoContent) storageLocation()    {}

// Location returns the storage variant for this item. During the promotion
// transition window both the file and the gallery flag may be set; the gallery
// copy wins once the flag is up.
func (d *DownloadItem) Location() StorageLocation {
	if d.IsInGallery {
		return GalleryAsset{}
	}
	if d.FilePath != "" {
		return LocalFile{Path: d.FilePath}
	}
	return NoContent{}
}

// MarkDownloading marks the item as downloading. Progress is preserved so a
// resumed item does not report a lower value than before it was paused.
func (d *DownloadItem) MarkDownloading() {
	d.Status = StatusDownloading
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// MarkPaused marks the item as paused, keeping partial progress
func (d *DownloadItem) MarkPaused() {
	d.Status = StatusPaused
	d.UpdatedAt = time.Now()
}

// MarkCompleted marks the item as completed with its local file path
func (d *DownloadItem) MarkCompleted(filePath string, size int64) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.Size = size
	d.Progress = 1.0
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// MarkFailed marks the item as failed, keeping partial size/progress for a
// user-initiated retry
func (d *DownloadItem) MarkFailed(err error) {
	d.Status = StatusFailed
	if err != nil {
		d.ErrorMessage = err.Error()
	}
	d.UpdatedAt = time.Now()
}

// MarkInGallery records a successful gallery promotion. The local path is
// cleared; the gallery copy is the only one the app tracks from here on.
func (d *DownloadItem) MarkInGallery() {
	d.IsInGallery = true
	d.FilePath = ""
	d.UpdatedAt = time.Now()
}

// SetProgress updates progress, never letting it decrease while downloading
func (d *DownloadItem) SetProgress(progress float64) {
	if progress > d.Progress {
		d.Progress = progress
	}
	d.UpdatedAt = time.Now()
}

// IsLive reports whether the item is still in flight (not a terminal state)
func (d *DownloadItem) IsLive() bool {
	switch d.Status {
	case StatusPending, StatusDownloading, StatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether the item reached a terminal state
func (d *DownloadItem) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}

// FileName derives the on-disk name for this item's content
func (d *DownloadItem) FileName() string {
	return fmt.Sprintf("%s-e%03d-%s.mp4", sanitizeName(d.Title), d.EpisodeNumber, d.AudioType)
}

// sanitizeName strips characters that are unsafe in file names
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	s := strings.TrimSpace(replacer.Replace(name))
	if s == "" {
		s = "episode"
	}
	return s
}

// ValidateAudioType checks if an audio type is valid
func ValidateAudioType(audio AudioType) bool {
	return audio == AudioSub || audio == AudioDub
}

// ValidateStatus checks if a status is one of the known states
func ValidateStatus(status ItemStatus) bool {
	switch status {
	case StatusPending, StatusDownloading, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
