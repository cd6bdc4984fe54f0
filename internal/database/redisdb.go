package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/provmon/provmon/internal/database/models"
)

// RedisDB implements the Database interface using Redis.
type RedisDB struct {
	client *redis.Client
}

// NewRedisDB initializes a new RedisDB instance.
func NewRedisDB(cfg *DatabaseConfig) (*RedisDB, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	// Use context.Background() for initial connection test
	ctx := context.Background()
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}

	return &RedisDB{client: rdb}, nil
}

// Initialize sets up necessary Redis structures if needed.
func (r *RedisDB) Initialize(ctx context.Context) error {
	// Redis is schema-less; initialization is not necessary.
	return nil
}

// Close closes the Redis client connection.
func (r *RedisDB) Close(ctx context.Context) error {
	return r.client.Close()
}

// UpsertBaseline creates or replaces the baseline for the record's key.
func (r *RedisDB) UpsertBaseline(ctx context.Context, record models.Baseline) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal Baseline: %w", err)
	}

	key := fmt.Sprintf("baseline:%s:%s:%s", record.NPI, record.PageURL, record.Category)
	return r.client.Set(ctx, key, data, 0).Err()
}

// GetBaselines retrieves the baselines for a provider page.
func (r *RedisDB) GetBaselines(ctx context.Context, npi, pageURL string) ([]models.Baseline, error) {
	pattern := fmt.Sprintf("baseline:%s:*", npi)
	if pageURL != "" {
		pattern = fmt.Sprintf("baseline:%s:%s:*", npi, pageURL)
	}

	var records []models.Baseline
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var record models.Baseline
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// AddDriftEvent stores a new drift event.
func (r *RedisDB) AddDriftEvent(ctx context.Context, event models.DriftEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DriftEvent: %w", err)
	}

	key := fmt.Sprintf("drift:%s", event.ID)
	return r.client.Set(ctx, key, data, 0).Err()
}

// GetDriftEvent retrieves a specific drift event.
func (r *RedisDB) GetDriftEvent(ctx context.Context, id string) (models.DriftEvent, error) {
	var event models.DriftEvent

	key := fmt.Sprintf("drift:%s", id)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return event, ErrNotFound
		}
		return event, err
	}

	err = json.Unmarshal([]byte(val), &event)
	if err != nil {
		return event, err
	}

	return event, nil
}

// UpdateDriftEvent replaces an existing drift event by ID.
func (r *RedisDB) UpdateDriftEvent(ctx context.Context, event models.DriftEvent) error {
	key := fmt.Sprintf("drift:%s", event.ID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DriftEvent: %w", err)
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// HasRecentNewDrift reports whether an unresolved event with the same
// identity was created at or after since.
func (r *RedisDB) HasRecentNewDrift(ctx context.Context, npi, category, currentHash string, since time.Time) (bool, error) {
	found := false
	err := r.forEachDriftEvent(ctx, func(event models.DriftEvent) {
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
func (r *RedisDB) LoadDriftEvents(ctx context.Context, filter models.DriftFilter) ([]models.DriftEvent, int, error) {
	var matched []models.DriftEvent

	err := r.forEachDriftEvent(ctx, func(event models.DriftEvent) {
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
func (r *RedisDB) ResolveOpenDrift(ctx context.Context, npi, category, resolvedBy string) (int, error) {
	resolved := 0
	now := time.Now().UTC()

	var toUpdate []models.DriftEvent
	err := r.forEachDriftEvent(ctx, func(event models.DriftEvent) {
		if event.NPI == npi && event.Category == category && event.OpenDrift() {
			toUpdate = append(toUpdate, event)
		}
	})
	if err != nil {
		return 0, err
	}

	for _, event := range toUpdate {
		event.Status = models.DriftStatusResolved
		event.ResolvedAt = &now
		event.ResolvedBy = resolvedBy
		if err := r.UpdateDriftEvent(ctx, event); err != nil {
			return resolved, err
		}
		resolved++
	}

	return resolved, nil
}

// AddScanSession stores a completed scan session.
func (r *RedisDB) AddScanSession(ctx context.Context, session models.ScanSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal ScanSession: %w", err)
	}

	key := fmt.Sprintf("scan:%s:%s", session.NPI, session.ID)
	return r.client.Set(ctx, key, data, 0).Err()
}

// LoadScanSessions retrieves a page of sessions for a provider, newest
// first.
func (r *RedisDB) LoadScanSessions(ctx context.Context, npi string, page, perPage int) ([]models.ScanSession, int, error) {
	pattern := "scan:*"
	if npi != "" {
		pattern = fmt.Sprintf("scan:%s:*", npi)
	}

	var sessions []models.ScanSession
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var session models.ScanSession
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
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
func (r *RedisDB) PutWatchedProvider(ctx context.Context, provider models.WatchedProvider) error {
	data, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("failed to marshal WatchedProvider: %w", err)
	}

	key := fmt.Sprintf("watched:%s", provider.NPI)
	return r.client.Set(ctx, key, data, 0).Err()
}

// GetWatchedProvider retrieves a specific watch-list entry.
func (r *RedisDB) GetWatchedProvider(ctx context.Context, npi string) (models.WatchedProvider, error) {
	var provider models.WatchedProvider

	key := fmt.Sprintf("watched:%s", npi)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return provider, ErrNotFound
		}
		return provider, err
	}

	err = json.Unmarshal([]byte(val), &provider)
	if err != nil {
		return provider, err
	}

	return provider, nil
}

// LoadWatchedProviders retrieves the full watch list.
func (r *RedisDB) LoadWatchedProviders(ctx context.Context) ([]models.WatchedProvider, error) {
	var providers []models.WatchedProvider

	iter := r.client.Scan(ctx, 0, "watched:*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var provider models.WatchedProvider
		if err := json.Unmarshal([]byte(val), &provider); err != nil {
			continue
		}
		providers = append(providers, provider)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return providers, nil
}

// DeleteWatchedProvider removes a watch-list entry.
func (r *RedisDB) DeleteWatchedProvider(ctx context.Context, npi string) error {
	key := fmt.Sprintf("watched:%s", npi)
	return r.client.Del(ctx, key).Err()
}

// RecordHeartbeat upserts the widget heartbeat for a provider page.
func (r *RedisDB) RecordHeartbeat(ctx context.Context, npi, pageURL, widgetMode string, seenAt time.Time) (models.Heartbeat, error) {
	var hb models.Heartbeat

	key := fmt.Sprintf("heartbeat:%s:%s", npi, pageURL)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return hb, err
	}
	if err == nil {
		if err := json.Unmarshal([]byte(val), &hb); err != nil {
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
		return hb, fmt.Errorf("failed to marshal Heartbeat: %w", err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return hb, err
	}

	return hb, nil
}

// GetHeartbeat retrieves the widget heartbeat for a provider page.
func (r *RedisDB) GetHeartbeat(ctx context.Context, npi, pageURL string) (models.Heartbeat, error) {
	var hb models.Heartbeat

	key := fmt.Sprintf("heartbeat:%s:%s", npi, pageURL)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return hb, ErrNotFound
		}
		return hb, err
	}

	err = json.Unmarshal([]byte(val), &hb)
	if err != nil {
		return hb, err
	}

	return hb, nil
}

// GetStats returns aggregate counters for the /stats endpoint.
func (r *RedisDB) GetStats(ctx context.Context) (models.StatsResponse, error) {
	var stats models.StatsResponse
	dayAgo := time.Now().Add(-24 * time.Hour)

	providers, err := r.LoadWatchedProviders(ctx)
	if err != nil {
		return stats, err
	}
	stats.ProvidersWatched = len(providers)

	sessions, total, err := r.LoadScanSessions(ctx, "", 1, 1)
	if err != nil {
		return stats, err
	}
	stats.TotalScans = total
	if len(sessions) > 0 {
		stats.LastScanAt = sessions[0].CompletedAt
	}

	err = r.forEachDriftEvent(ctx, func(event models.DriftEvent) {
		if event.OpenDrift() {
			stats.OpenDriftEvents++
		}
		if event.CreatedAt.After(dayAgo) {
			stats.DriftEventsToday++
		}
	})
	if err != nil {
		return stats, err
	}

	return stats, nil
}

func (r *RedisDB) forEachDriftEvent(ctx context.Context, fn func(models.DriftEvent)) error {
	iter := r.client.Scan(ctx, 0, "drift:*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var event models.DriftEvent
		if err := json.Unmarshal([]byte(val), &event); err != nil {
			continue
		}
		fn(event)
	}
	return iter.Err()
}
