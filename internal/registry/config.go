package registry

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LoadConfig initializes the registry client configuration from environment
// variables. NPPES allows roughly 2 requests per second per client, so the
// default limiter stays under that.
func LoadConfig() (Config, error) {
	cfg := Config{
		NPPESBaseURL: os.Getenv("NPPES_BASE_URL"),
		NLMBaseURL:   os.Getenv("NLM_BASE_URL"),
		Rate:         rate.Limit(2),
		Burst:        2,
	}

	if raw := os.Getenv("REGISTRY_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			logrus.Warnf("Invalid REGISTRY_TIMEOUT_SECONDS '%s', using default", raw)
		} else {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}

	if raw := os.Getenv("REGISTRY_RATE_PER_SEC"); raw != "" {
		perSec, err := strconv.ParseFloat(raw, 64)
		if err != nil || perSec <= 0 {
			logrus.Warnf("Invalid REGISTRY_RATE_PER_SEC '%s', using default", raw)
		} else {
			cfg.Rate = rate.Limit(perSec)
		}
	}

	if raw := os.Getenv("REGISTRY_BURST"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst <= 0 {
			logrus.Warnf("Invalid REGISTRY_BURST '%s', using default", raw)
		} else {
			cfg.Burst = burst
		}
	}

	return cfg, nil
}
