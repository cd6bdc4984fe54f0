package crawler

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// LoadConfig loads crawler configuration from environment variables. The
// render service is optional; without RENDER_ENDPOINT the crawler runs
// direct-fetch only.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RenderEndpoint: os.Getenv("RENDER_ENDPOINT"),
		RenderAPIKey:   os.Getenv("RENDER_API_KEY"),
	}

	if s := os.Getenv("CRAWL_TIMEOUT_SECONDS"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			logrus.Infof("Invalid CRAWL_TIMEOUT_SECONDS %q. Using default.", s)
		} else {
			cfg.FetchTimeout = time.Duration(secs) * time.Second
		}
	}

	if s := os.Getenv("RENDER_TIMEOUT_SECONDS"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			logrus.Infof("Invalid RENDER_TIMEOUT_SECONDS %q. Using default.", s)
		} else {
			cfg.RenderTimeout = time.Duration(secs) * time.Second
		}
	}

	if cfg.RenderEndpoint == "" {
		logrus.Info("RENDER_ENDPOINT not set. JS-rendered pages will be crawled direct-fetch only.")
	}

	return cfg, nil
}
