package scan

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds scan engine settings.
type Config struct {
	CheckTimeout        time.Duration
	MaxConcurrentChecks int64
	RiskBands           RiskBands
}

// LoadConfig loads scan engine configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CheckTimeout:        10 * time.Second,
		MaxConcurrentChecks: 4,
		RiskBands:           DefaultRiskBands(),
	}

	if v := os.Getenv("SCAN_CHECK_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			logrus.Warnf("Invalid SCAN_CHECK_TIMEOUT_SECONDS value: %s. Using default 10.", v)
		} else {
			cfg.CheckTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SCAN_MAX_CONCURRENT_CHECKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logrus.Warnf("Invalid SCAN_MAX_CONCURRENT_CHECKS value: %s. Using default 4.", v)
		} else {
			cfg.MaxConcurrentChecks = int64(n)
		}
	}

	bands := cfg.RiskBands
	if v := os.Getenv("RISK_LOW_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			bands.LowMin = n
		}
	}
	if v := os.Getenv("RISK_MODERATE_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			bands.ModerateMin = n
		}
	}
	if bands.ModerateMin >= bands.LowMin {
		logrus.Warnf("Risk bands not monotonic (low=%d moderate=%d). Using defaults.",
			bands.LowMin, bands.ModerateMin)
		bands = DefaultRiskBands()
	}
	cfg.RiskBands = bands

	return cfg, nil
}
