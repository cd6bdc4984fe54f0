package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/provmon/provmon/internal/database/models"
)

// BoltDB implements the Database interface using bbolt.
type BoltDB struct {
	db   *bbolt.DB
	path string
	mu   sync.RWMutex
}

var boltBuckets = []string{
	"Baselines",
	"DriftEvents",
	"ScanSessions",
	"WatchedProviders",
	"Heartbeats",
}

// NewBoltDB initializes a new BoltDB instance.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	boltDB := &BoltDB{
		db:   db,
		path: path,
	}

	err = boltDB.Initialize(context.Background())
	if err != nil {
		return nil, err
	}

	return boltDB, nil
}

// Initialize sets up the necessary buckets.
func (b *BoltDB) Initialize(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("create %s bucket: %v", name, err)
			}
		}
		return nil
	})
}

// Close closes the BoltDB connection.
func (b *BoltDB) Close(ctx context.Context) error {
	return b.db.Close()
}

func baselineKey(npi, pageURL, category string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s", npi, pageURL, category))
}

// UpsertBaseline creates or replaces the baseline for the record's key.
func (b *BoltDB) UpsertBaseline(ctx context.Context, record models.Baseline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal Baseline: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Baselines"))
		if bucket == nil {
			return fmt.Errorf("Baselines bucket does not exist")
		}
		return bucket.Put(baselineKey(record.NPI, record.PageURL, record.Category), data)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert baseline in BoltDB: %w", err)
	}

	return nil
}

// GetBaselines retrieves the baselines for a provider page.
func (b *BoltDB) GetBaselines(ctx context.Context, npi, pageURL string) ([]models.Baseline, error) {
	var records []models.Baseline

	prefix := npi + "|"
	if pageURL != "" {
		prefix = npi + "|" + pageURL + "|"
	}

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Baselines"))
		if bucket == nil {
			return fmt.Errorf("Baselines bucket does not exist")
		}
		c := bucket.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var record models.Baseline
			if err := json.Unmarshal(v, &record); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal baseline for key: %s", string(k))
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// AddDriftEvent stores a new drift event.
func (b *BoltDB) AddDriftEvent(ctx context.Context, event models.DriftEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DriftEvent: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("DriftEvents"))
		if bucket == nil {
			return fmt.Errorf("DriftEvents bucket does not exist")
		}
		return bucket.Put([]byte(event.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to add drift event to BoltDB: %w", err)
	}

	return nil
}

// GetDriftEvent retrieves a specific drift event.
func (b *BoltDB) GetDriftEvent(ctx context.Context, id string) (models.DriftEvent, error) {
	var event models.DriftEvent

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("DriftEvents"))
		if bucket == nil {
			return fmt.Errorf("DriftEvents bucket does not exist")
		}
		val := bucket.Get([]byte(id))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &event)
	})
	if err != nil {
		return event, err
	}

	return event, nil
}

// UpdateDriftEvent replaces an existing drift event by ID.
func (b *BoltDB) UpdateDriftEvent(ctx context.Context, event models.DriftEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DriftEvent: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("DriftEvents"))
		if bucket == nil {
			return fmt.Errorf("DriftEvents bucket does not exist")
		}
		if bucket.Get([]byte(event.ID)) == nil {
			return ErrNotFound
		}
		return bucket.Put([]byte(event.ID), data)
	})
}

// HasRecentNewDrift reports whether an unresolved event with the same
// identity was created at or after since.
func (b *BoltDB) HasRecentNewDrift(ctx context.Context, npi, category, currentHash string, since time.Time) (bool, error) {
	found := false

	err := b.forEachDriftEvent(func(event models.DriftEvent) {
		if found {
			return
		}
		if event.NPI == npi && event.Category == category &&
			event.CurrentHash == currentHash &&
			event.Status == models.DriftStatusNew &&
			!event.CreatedAt.Before(since) {
			found = true
		}
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// LoadDriftEvents retrieves drift events matching the filter, newest first.
func (b *BoltDB) LoadDriftEvents(ctx context.Context, filter models.DriftFilter) ([]models.DriftEvent, int, error) {
	var matched []models.DriftEvent

	err := b.forEachDriftEvent(func(event models.DriftEvent) {
		if filter.NPI != "" && event.NPI != filter.NPI {
			return
		}
		if filter.Status != "" && event.Status != filter.Status {
			return
		}
		if filter.Severity != "" && event.Severity != filter.Severity {
			return
		}
		matched = append(matched, event)
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	matched = applyDriftWindow(matched, filter.Limit, filter.Offset)
	return matched, total, nil
}

// ResolveOpenDrift marks every new or acknowledged event for the
// (npi, category) pair as resolved.
func (b *BoltDB) ResolveOpenDrift(ctx context.Context, npi, category, resolvedBy string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	resolved := 0
	now := time.Now().UTC()

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("DriftEvents"))
		if bucket == nil {
			return fmt.Errorf("DriftEvents bucket does not exist")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var event models.DriftEvent
			if err := json.Unmarshal(v, &event); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal drift event for ID: %s", string(k))
				return nil
			}
			if event.NPI != npi || event.Category != category || !event.OpenDrift() {
				return nil
			}
			event.Status = models.DriftStatusResolved
			event.ResolvedAt = &now
			event.ResolvedBy = resolvedBy
			data, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := bucket.Put(k, data); err != nil {
				return err
			}
			resolved++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return resolved, nil
}

func sessionKey(session models.ScanSession) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s",
		session.NPI, session.StartedAt.UTC().Format(time.RFC3339Nano), session.ID))
}

// AddScanSession stores a completed scan session.
func (b *BoltDB) AddScanSession(ctx context.Context, session models.ScanSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal ScanSession: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("ScanSessions"))
		if bucket == nil {
			return fmt.Errorf("ScanSessions bucket does not exist")
		}
		return bucket.Put(sessionKey(session), data)
	})
	if err != nil {
		return fmt.Errorf("failed to add scan session to BoltDB: %w", err)
	}

	return nil
}

// LoadScanSessions retrieves a page of sessions for a provider, newest
// first.
func (b *BoltDB) LoadScanSessions(ctx context.Context, npi string, page, perPage int) ([]models.ScanSession, int, error) {
	var sessions []models.ScanSession

	prefix := ""
	if npi != "" {
		prefix = npi + "|"
	}

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("ScanSessions"))
		if bucket == nil {
			return fmt.Errorf("ScanSessions bucket does not exist")
		}
		return bucket.ForEach(func(k, v []byte) error {
			if prefix != "" && !strings.HasPrefix(string(k), prefix) {
				return nil
			}
			var session models.ScanSession
			if err := json.Unmarshal(v, &session); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal scan session for key: %s", string(k))
				return nil
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	total := len(sessions)
	sessions = paginateSessions(sessions, page, perPage)
	return sessions, total, nil
}

// PutWatchedProvider creates or replaces a watch-list entry.
func (b *BoltDB) PutWatchedProvider(ctx context.Context, provider models.WatchedProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("failed to marshal WatchedProvider: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("WatchedProviders"))
		if bucket == nil {
			return fmt.Errorf("WatchedProviders bucket does not exist")
		}
		return bucket.Put([]byte(provider.NPI), data)
	})
}

// GetWatchedProvider retrieves a specific watch-list entry.
func (b *BoltDB) GetWatchedProvider(ctx context.Context, npi string) (models.WatchedProvider, error) {
	var provider models.WatchedProvider

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("WatchedProviders"))
		if bucket == nil {
			return fmt.Errorf("WatchedProviders bucket does not exist")
		}
		val := bucket.Get([]byte(npi))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &provider)
	})
	if err != nil {
		return provider, err
	}

	return provider, nil
}

// LoadWatchedProviders retrieves the full watch list.
func (b *BoltDB) LoadWatchedProviders(ctx context.Context) ([]models.WatchedProvider, error) {
	var providers []models.WatchedProvider

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("WatchedProviders"))
		if bucket == nil {
			return fmt.Errorf("WatchedProviders bucket does not exist")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var provider models.WatchedProvider
			if err := json.Unmarshal(v, &provider); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal watched provider for NPI: %s", string(k))
				return nil
			}
			providers = append(providers, provider)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return providers, nil
}

// DeleteWatchedProvider removes a watch-list entry.
func (b *BoltDB) DeleteWatchedProvider(ctx context.Context, npi string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("WatchedProviders"))
		if bucket == nil {
			return fmt.Errorf("WatchedProviders bucket does not exist")
		}
		return bucket.Delete([]byte(npi))
	})
}

func heartbeatKey(npi, pageURL string) []byte {
	return []byte(fmt.Sprintf("%s|%s", npi, pageURL))
}

// RecordHeartbeat upserts the widget heartbeat for a provider page.
func (b *BoltDB) RecordHeartbeat(ctx context.Context, npi, pageURL, widgetMode string, seenAt time.Time) (models.Heartbeat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var hb models.Heartbeat

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Heartbeats"))
		if bucket == nil {
			return fmt.Errorf("Heartbeats bucket does not exist")
		}
		key := heartbeatKey(npi, pageURL)
		if val := bucket.Get(key); val != nil {
			if err := json.Unmarshal(val, &hb); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal heartbeat for key: %s", string(key))
				hb = models.Heartbeat{}
			}
		}
		if hb.FirstSeen.IsZero() {
			hb.FirstSeen = seenAt
		}
		hb.NPI = npi
		hb.PageURL = pageURL
		hb.WidgetMode = widgetMode
		hb.LastSeen = seenAt
		hb.PageViewsTotal++

		data, err := json.Marshal(hb)
		if err != nil {
			return fmt.Errorf("failed to marshal Heartbeat: %w", err)
		}
		return bucket.Put(key, data)
	})
	if err != nil {
		return hb, err
	}

	return hb, nil
}

// GetHeartbeat retrieves the widget heartbeat for a provider page.
func (b *BoltDB) GetHeartbeat(ctx context.Context, npi, pageURL string) (models.Heartbeat, error) {
	var hb models.Heartbeat

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("Heartbeats"))
		if bucket == nil {
			return fmt.Errorf("Heartbeats bucket does not exist")
		}
		val := bucket.Get(heartbeatKey(npi, pageURL))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &hb)
	})
	if err != nil {
		return hb, err
	}

	return hb, nil
}

// GetStats returns aggregate counters for the /stats endpoint.
func (b *BoltDB) GetStats(ctx context.Context) (models.StatsResponse, error) {
	var stats models.StatsResponse
	dayAgo := time.Now().Add(-24 * time.Hour)

	err := b.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte("WatchedProviders")); bucket != nil {
			stats.ProvidersWatched = bucket.Stats().KeyN
		}
		if bucket := tx.Bucket([]byte("ScanSessions")); bucket != nil {
			err := bucket.ForEach(func(k, v []byte) error {
				var session models.ScanSession
				if err := json.Unmarshal(v, &session); err != nil {
					return nil
				}
				stats.TotalScans++
				if session.CompletedAt.After(stats.LastScanAt) {
					stats.LastScanAt = session.CompletedAt
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		if bucket := tx.Bucket([]byte("DriftEvents")); bucket != nil {
			err := bucket.ForEach(func(k, v []byte) error {
				var event models.DriftEvent
				if err := json.Unmarshal(v, &event); err != nil {
					return nil
				}
				if event.OpenDrift() {
					stats.OpenDriftEvents++
				}
				if event.CreatedAt.After(dayAgo) {
					stats.DriftEventsToday++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	return stats, nil
}

func (b *BoltDB) forEachDriftEvent(fn func(models.DriftEvent)) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("DriftEvents"))
		if bucket == nil {
			return fmt.Errorf("DriftEvents bucket does not exist")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var event models.DriftEvent
			if err := json.Unmarshal(v, &event); err != nil {
				logrus.WithError(err).Warnf("Failed to unmarshal drift event for ID: %s", string(k))
				return nil
			}
			fn(event)
			return nil
		})
	})
}

func applyDriftWindow(events []models.DriftEvent, limit, offset int) []models.DriftEvent {
	if offset > 0 {
		if offset >= len(events) {
			return nil
		}
		events = events[offset:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}

func paginateSessions(sessions []models.ScanSession, page, perPage int) []models.ScanSession {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= len(sessions) {
		return nil
	}
	end := start + perPage
	if end > len(sessions) {
		end = len(sessions)
	}
	return sessions[start:end]
}
