package notifications

import (
	"os"
	"strings"
)

// NotificationConfig holds the notification-related configuration.
type NotificationConfig struct {
	ShoutrrrURLs []string
	MinSeverity  string
}

// LoadNotificationConfig loads notification configuration from environment
// variables. An empty SHOUTRRR_URLS disables outbound notifications.
func LoadNotificationConfig() (*NotificationConfig, error) {
	config := &NotificationConfig{
		ShoutrrrURLs: parseShoutrrrURLs(os.Getenv("SHOUTRRR_URLS")),
		MinSeverity:  os.Getenv("NOTIFY_MIN_SEVERITY"),
	}
	if config.MinSeverity == "" {
		config.MinSeverity = "high"
	}
	return config, nil
}

// parseShoutrrrURLs parses a comma-separated list of Shoutrrr URLs.
func parseShoutrrrURLs(urls string) []string {
	var result []string
	for _, url := range strings.Split(urls, ",") {
		trimmed := strings.TrimSpace(url)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
