package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/aniload-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.run("osascript", "-e",
			fmt.Sprintf(`display notification "%s" with title "%s"`, message, title))
	case "notify-send":
		return n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

func (n *NotificationService) run(name string, args ...string) error {
	if err := exec.Command(name, args...).Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}
	return nil
}

// NotifyDownloadCompleted sends a notification when a download completes
func (n *NotificationService) NotifyDownloadCompleted(item *domain.DownloadItem) {
	title := "Download Completed"
	message := fmt.Sprintf("%s E%d (%s)", truncateString(item.Title, 30), item.EpisodeNumber, item.AudioType)
	n.Send(title, message)
}

// NotifyDownloadFailed sends a notification when a download fails
func (n *NotificationService) NotifyDownloadFailed(item *domain.DownloadItem) {
	title := "Download Failed"
	message := fmt.Sprintf("%s E%d (%s)", truncateString(item.Title, 30), item.EpisodeNumber, item.AudioType)
	n.Send(title, message)
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
