package drift

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds drift detector settings.
type Config struct {
	// DedupeWindow suppresses duplicate events for the same drift identity
	// reported within this window.
	DedupeWindow time.Duration

	// Severities maps category and drift type to alert severity.
	Severities SeverityTable
}

// LoadConfig loads detector configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DedupeWindow: time.Hour,
	}

	if v := os.Getenv("DRIFT_DEDUPE_WINDOW_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			logrus.Warnf("Invalid DRIFT_DEDUPE_WINDOW_MINUTES value: %s. Using default 60.", v)
		} else {
			cfg.DedupeWindow = time.Duration(minutes) * time.Minute
		}
	}

	table, err := ParseSeverityTable(os.Getenv("DRIFT_SEVERITY_TABLE"))
	if err != nil {
		return nil, err
	}
	cfg.Severities = table

	return cfg, nil
}
