// Package monitor sweeps the watched-provider list on a schedule, running a
// full compliance scan for every entry that is due. Each scan feeds the
// drift detector through the scan engine.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/provmon/provmon/internal/checks"
	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/database/models"
	"github.com/provmon/provmon/internal/scan"
)

// Monitor handles periodic scanning of watched providers.
type Monitor struct {
	engine *scan.Engine
	db     database.Database
	cfg    *Config
}

// NewMonitor initializes a new Monitor.
func NewMonitor(engine *scan.Engine, db database.Database, cfg *Config) *Monitor {
	if cfg == nil {
		cfg = &Config{
			PollInterval:  time.Hour,
			CheckInterval: 24 * time.Hour,
			ScanDelay:     2500 * time.Millisecond,
		}
	}
	return &Monitor{engine: engine, db: db, cfg: cfg}
}

// Watch adds or updates a provider on the watch list. An existing entry
// keeps its AddedAt and scan history.
func (m *Monitor) Watch(ctx context.Context, npi, url string, tier checks.Tier) (models.WatchedProvider, error) {
	if npi == "" || url == "" {
		return models.WatchedProvider{}, fmt.Errorf("npi and url are required")
	}
	if !checks.ValidTier(tier) {
		return models.WatchedProvider{}, fmt.Errorf("unknown tier: %s", tier)
	}

	entry := models.WatchedProvider{
		NPI:     npi,
		URL:     crawler.NormalizeURL(url),
		Tier:    tier,
		AddedAt: time.Now().UTC(),
	}
	if existing, err := m.db.GetWatchedProvider(ctx, npi); err == nil {
		entry.AddedAt = existing.AddedAt
		entry.LastScanAt = existing.LastScanAt
		entry.LastScore = existing.LastScore
	}

	if err := m.db.PutWatchedProvider(ctx, entry); err != nil {
		return models.WatchedProvider{}, err
	}
	logrus.WithFields(logrus.Fields{
		"npi":  npi,
		"url":  entry.URL,
		"tier": tier,
	}).Info("Provider added to watch list")
	return entry, nil
}

// Unwatch removes a provider from the watch list.
func (m *Monitor) Unwatch(ctx context.Context, npi string) error {
	return m.db.DeleteWatchedProvider(ctx, npi)
}

// Start begins the monitoring process.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Monitoring stopped due to context cancellation")
			return
		default:
			m.scanDueProviders(ctx)
			select {
			case <-ctx.Done():
				logrus.Info("Monitoring stopped due to context cancellation")
				return
			case <-ticker.C:
				// Continue to next iteration
			}
		}
	}
}

// scanDueProviders sweeps the watch list once. Scans run sequentially with
// an inter-scan delay; the registry and render services are shared across
// every provider, so a sweep must not hit them in parallel.
func (m *Monitor) scanDueProviders(ctx context.Context) {
	providers, err := m.db.LoadWatchedProviders(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load watch list")
		return
	}

	scanned := 0
	for _, provider := range providers {
		if ctx.Err() != nil {
			return
		}
		if !provider.LastScanAt.IsZero() && time.Since(provider.LastScanAt) < m.cfg.CheckInterval {
			logrus.WithFields(logrus.Fields{
				"npi":          provider.NPI,
				"last_scan_at": provider.LastScanAt,
			}).Debug("Skipping provider; scanned recently")
			continue
		}

		if scanned > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.ScanDelay):
			}
		}

		if _, err := m.engine.Run(ctx, provider.NPI, provider.URL, provider.Tier, "monitor"); err != nil {
			logrus.WithFields(logrus.Fields{
				"npi": provider.NPI,
				"url": provider.URL,
			}).WithError(err).Error("Scheduled scan failed")
		}
		scanned++
	}

	if scanned > 0 {
		logrus.WithField("scanned", scanned).Info("Watch list sweep completed")
	}
}
