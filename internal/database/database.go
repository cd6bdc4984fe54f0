package database

import (
	"context"
	"errors"
	"time"

	"github.com/provmon/provmon/internal/database/models"
)

// Database defines the methods required for baseline, drift and scan
// storage.
type Database interface {
	// Initialize sets up the necessary buckets or structures.
	Initialize(ctx context.Context) error

	Close(ctx context.Context) error

	// UpsertBaseline creates or replaces the baseline for the record's
	// (npi, page_url, category) key.
	UpsertBaseline(ctx context.Context, record models.Baseline) error

	// GetBaselines retrieves the baselines for a provider page. An empty
	// pageURL returns baselines for every page of the provider.
	GetBaselines(ctx context.Context, npi, pageURL string) ([]models.Baseline, error)

	// AddDriftEvent stores a new drift event.
	AddDriftEvent(ctx context.Context, event models.DriftEvent) error

	// GetDriftEvent retrieves a specific drift event.
	GetDriftEvent(ctx context.Context, id string) (models.DriftEvent, error)

	// UpdateDriftEvent replaces an existing drift event by ID.
	UpdateDriftEvent(ctx context.Context, event models.DriftEvent) error

	// HasRecentNewDrift reports whether an unresolved event with the same
	// (npi, category, current hash) was created at or after since. Used to
	// suppress duplicate alerts from repeated scans of unchanged drift.
	HasRecentNewDrift(ctx context.Context, npi, category, currentHash string, since time.Time) (bool, error)

	// LoadDriftEvents retrieves drift events matching the filter, newest
	// first, and the total count before limit/offset.
	LoadDriftEvents(ctx context.Context, filter models.DriftFilter) ([]models.DriftEvent, int, error)

	// ResolveOpenDrift marks every new or acknowledged event for
	// (npi, category) as resolved and returns how many were transitioned.
	ResolveOpenDrift(ctx context.Context, npi, category, resolvedBy string) (int, error)

	// AddScanSession stores a completed scan session.
	AddScanSession(ctx context.Context, session models.ScanSession) error

	// LoadScanSessions retrieves a page of sessions for a provider, newest
	// first, and the total count. An empty npi returns sessions for all
	// providers.
	LoadScanSessions(ctx context.Context, npi string, page, perPage int) ([]models.ScanSession, int, error)

	// PutWatchedProvider creates or replaces a watch-list entry keyed by NPI.
	PutWatchedProvider(ctx context.Context, provider models.WatchedProvider) error

	// GetWatchedProvider retrieves a specific watch-list entry.
	GetWatchedProvider(ctx context.Context, npi string) (models.WatchedProvider, error)

	// LoadWatchedProviders retrieves the full watch list.
	LoadWatchedProviders(ctx context.Context) ([]models.WatchedProvider, error)

	// DeleteWatchedProvider removes a watch-list entry.
	DeleteWatchedProvider(ctx context.Context, npi string) error

	// RecordHeartbeat upserts the widget heartbeat for (npi, page_url),
	// bumping LastSeen and the view counter.
	RecordHeartbeat(ctx context.Context, npi, pageURL, widgetMode string, seenAt time.Time) (models.Heartbeat, error)

	// GetHeartbeat retrieves the widget heartbeat for a provider page.
	GetHeartbeat(ctx context.Context, npi, pageURL string) (models.Heartbeat, error)

	// GetStats returns aggregate counters for the /stats endpoint.
	GetStats(ctx context.Context) (models.StatsResponse, error)
}

var ErrNotFound = errors.New("record not found")
