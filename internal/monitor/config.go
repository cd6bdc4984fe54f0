package monitor

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the periodic monitoring configuration.
type Config struct {
	// PollInterval is how often the watch list is swept.
	PollInterval time.Duration

	// CheckInterval is the minimum age of a provider's last scan before the
	// sweep rescans it.
	CheckInterval time.Duration

	// ScanDelay spaces sequential scans so bulk sweeps respect third-party
	// rate limits.
	ScanDelay time.Duration
}

// LoadConfig loads monitor configuration from environment variables.
func LoadConfig() (*Config, error) {
	pollIntervalStr := os.Getenv("MONITOR_POLL_INTERVAL_MINUTES")
	pollInterval, err := strconv.Atoi(pollIntervalStr)
	if err != nil || pollInterval <= 0 {
		pollInterval = 60
		logrus.Infof("Invalid or missing MONITOR_POLL_INTERVAL_MINUTES. Defaulting to %d minutes.", pollInterval)
	}

	checkIntervalStr := os.Getenv("MONITOR_CHECK_INTERVAL_MINUTES")
	checkInterval, err := strconv.Atoi(checkIntervalStr)
	if err != nil || checkInterval <= 0 {
		checkInterval = 1440
		logrus.Infof("Invalid or missing MONITOR_CHECK_INTERVAL_MINUTES. Defaulting to %d minutes.", checkInterval)
	}

	scanDelayMs := 2500
	if v := os.Getenv("MONITOR_SCAN_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			logrus.Warnf("Invalid MONITOR_SCAN_DELAY_MS value: %s. Using default %d.", v, scanDelayMs)
		} else {
			scanDelayMs = ms
		}
	}

	return &Config{
		PollInterval:  time.Duration(pollInterval) * time.Minute,
		CheckInterval: time.Duration(checkInterval) * time.Minute,
		ScanDelay:     time.Duration(scanDelayMs) * time.Millisecond,
	}, nil
}
