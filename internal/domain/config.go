package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Gallery      GalleryConfig      `mapstructure:"gallery"`
	Source       SourceConfig       `mapstructure:"source"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	// BaseDir is the app-managed downloads area. The cache housekeeper must
	// never touch anything under it.
	BaseDir          string        `mapstructure:"base_dir"`
	ConcurrentLimit  int           `mapstructure:"concurrent_limit"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	StallTimeout     time.Duration `mapstructure:"stall_timeout"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// CacheConfig contains scratch cache housekeeping configuration
type CacheConfig struct {
	Root         string        `mapstructure:"root"`
	ProtectedDir string        `mapstructure:"protected_dir"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
}

// GalleryConfig contains gallery promotion configuration
type GalleryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Root    string `mapstructure:"root"`
	Album   string `mapstructure:"album"`
}

// SourceConfig contains remote content source configuration
type SourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/.aniload/cache/Downloads",
			ConcurrentLimit:  2,
			ProgressInterval: 500 * time.Millisecond,
			StallTimeout:     30 * time.Second,
		},
		Queue: QueueConfig{
			DatabasePath:  "$HOME/.aniload/items.db",
			CheckInterval: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Root:         "$HOME/.aniload/cache",
			ProtectedDir: "Downloads",
			MaxAge:       24 * time.Hour,
			MaxSizeBytes: 300 * 1024 * 1024,
		},
		Gallery: GalleryConfig{
			Enabled: true,
			Root:    "$HOME/Movies",
			Album:   "AniLoad",
		},
		Source: SourceConfig{
			BaseURL:   "https://api.aniload.example",
			UserAgent: "aniload/1.0",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
