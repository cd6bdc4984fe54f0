package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/provmon/provmon/internal/database/models"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewBoltDB: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func TestBaselineUpsertReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := models.Baseline{
		NPI: "1234567890", PageURL: "https://example.com", Category: "privacy_policy",
		Hash: "aaaa", ContentSnapshot: "old text", UpdatedAt: time.Now(),
	}
	if err := db.UpsertBaseline(ctx, base); err != nil {
		t.Fatalf("UpsertBaseline: %v", err)
	}
	base.Hash = "bbbb"
	base.ContentSnapshot = "new text"
	if err := db.UpsertBaseline(ctx, base); err != nil {
		t.Fatalf("UpsertBaseline: %v", err)
	}

	got, err := db.GetBaselines(ctx, "1234567890", "https://example.com")
	if err != nil {
		t.Fatalf("GetBaselines: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert must not duplicate, got %d records", len(got))
	}
	if got[0].Hash != "bbbb" {
		t.Errorf("hash = %q, want replacement", got[0].Hash)
	}
}

func TestBaselinesScopedByPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, b := range []models.Baseline{
		{NPI: "111", PageURL: "https://a.com", Category: "privacy_policy", Hash: "1"},
		{NPI: "111", PageURL: "https://a.com", Category: "ai_disclosure", Hash: "2"},
		{NPI: "111", PageURL: "https://b.com", Category: "privacy_policy", Hash: "3"},
		{NPI: "222", PageURL: "https://a.com", Category: "privacy_policy", Hash: "4"},
	} {
		if err := db.UpsertBaseline(ctx, b); err != nil {
			t.Fatalf("UpsertBaseline: %v", err)
		}
	}

	page, err := db.GetBaselines(ctx, "111", "https://a.com")
	if err != nil {
		t.Fatalf("GetBaselines: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page scope: got %d baselines, want 2", len(page))
	}

	all, err := db.GetBaselines(ctx, "111", "")
	if err != nil {
		t.Fatalf("GetBaselines: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("provider scope: got %d baselines, want 3", len(all))
	}
}

func driftEvent(id, npi, category, hash string, status models.DriftStatus, createdAt time.Time) models.DriftEvent {
	return models.DriftEvent{
		ID: id, NPI: npi, PageURL: "https://example.com", Category: category,
		DriftType: models.DriftContentChanged, Severity: "high",
		Status: status, CurrentHash: hash, CreatedAt: createdAt,
	}
}

func TestDriftEventLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev := driftEvent("ev-1", "111", "privacy_policy", "abcd", models.DriftStatusNew, time.Now())
	if err := db.AddDriftEvent(ctx, ev); err != nil {
		t.Fatalf("AddDriftEvent: %v", err)
	}

	got, err := db.GetDriftEvent(ctx, "ev-1")
	if err != nil {
		t.Fatalf("GetDriftEvent: %v", err)
	}
	if got.Status != models.DriftStatusNew {
		t.Errorf("status = %s", got.Status)
	}

	got.Status = models.DriftStatusAcknowledged
	if err := db.UpdateDriftEvent(ctx, got); err != nil {
		t.Fatalf("UpdateDriftEvent: %v", err)
	}
	got, _ = db.GetDriftEvent(ctx, "ev-1")
	if got.Status != models.DriftStatusAcknowledged {
		t.Errorf("status after update = %s", got.Status)
	}

	if _, err := db.GetDriftEvent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := db.UpdateDriftEvent(ctx, driftEvent("missing", "111", "x", "y", models.DriftStatusNew, time.Now())); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing event must fail, got %v", err)
	}
}

func TestHasRecentNewDrift(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.AddDriftEvent(ctx, driftEvent("ev-1", "111", "privacy_policy", "abcd", models.DriftStatusNew, now.Add(-30*time.Minute))); err != nil {
		t.Fatalf("AddDriftEvent: %v", err)
	}

	found, err := db.HasRecentNewDrift(ctx, "111", "privacy_policy", "abcd", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("HasRecentNewDrift: %v", err)
	}
	if !found {
		t.Error("event inside the window must be found")
	}

	// Different hash is a different drift identity.
	found, _ = db.HasRecentNewDrift(ctx, "111", "privacy_policy", "efgh", now.Add(-time.Hour))
	if found {
		t.Error("different hash must not match")
	}

	// Outside the window.
	found, _ = db.HasRecentNewDrift(ctx, "111", "privacy_policy", "abcd", now.Add(-10*time.Minute))
	if found {
		t.Error("event before the window must not match")
	}

	// Resolved events do not suppress new alerts.
	if err := db.AddDriftEvent(ctx, driftEvent("ev-2", "222", "privacy_policy", "abcd", models.DriftStatusResolved, now)); err != nil {
		t.Fatalf("AddDriftEvent: %v", err)
	}
	found, _ = db.HasRecentNewDrift(ctx, "222", "privacy_policy", "abcd", now.Add(-time.Hour))
	if found {
		t.Error("resolved event must not suppress")
	}
}

func TestLoadDriftEventsFilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	events := []models.DriftEvent{
		driftEvent("ev-1", "111", "privacy_policy", "a", models.DriftStatusNew, now.Add(-3*time.Hour)),
		driftEvent("ev-2", "111", "ai_disclosure", "b", models.DriftStatusResolved, now.Add(-2*time.Hour)),
		driftEvent("ev-3", "222", "privacy_policy", "c", models.DriftStatusNew, now.Add(-1*time.Hour)),
	}
	for _, ev := range events {
		if err := db.AddDriftEvent(ctx, ev); err != nil {
			t.Fatalf("AddDriftEvent: %v", err)
		}
	}

	got, total, err := db.LoadDriftEvents(ctx, models.DriftFilter{})
	if err != nil {
		t.Fatalf("LoadDriftEvents: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("total=%d len=%d", total, len(got))
	}
	if got[0].ID != "ev-3" {
		t.Errorf("newest first, got %s", got[0].ID)
	}

	got, total, _ = db.LoadDriftEvents(ctx, models.DriftFilter{NPI: "111", Status: models.DriftStatusNew})
	if total != 1 || got[0].ID != "ev-1" {
		t.Errorf("filtered: total=%d got=%+v", total, got)
	}

	got, total, _ = db.LoadDriftEvents(ctx, models.DriftFilter{Limit: 1, Offset: 1})
	if total != 3 || len(got) != 1 || got[0].ID != "ev-2" {
		t.Errorf("windowed: total=%d got=%+v", total, got)
	}
}

func TestResolveOpenDrift(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, ev := range []models.DriftEvent{
		driftEvent("ev-1", "111", "privacy_policy", "a", models.DriftStatusNew, now),
		driftEvent("ev-2", "111", "privacy_policy", "b", models.DriftStatusAcknowledged, now),
		driftEvent("ev-3", "111", "ai_disclosure", "c", models.DriftStatusNew, now),
		driftEvent("ev-4", "111", "privacy_policy", "d", models.DriftStatusFalsePositive, now),
	} {
		if err := db.AddDriftEvent(ctx, ev); err != nil {
			t.Fatalf("AddDriftEvent: %v", err)
		}
	}

	n, err := db.ResolveOpenDrift(ctx, "111", "privacy_policy", "auto")
	if err != nil {
		t.Fatalf("ResolveOpenDrift: %v", err)
	}
	if n != 2 {
		t.Errorf("resolved %d events, want 2", n)
	}

	ev, _ := db.GetDriftEvent(ctx, "ev-1")
	if ev.Status != models.DriftStatusResolved || ev.ResolvedAt == nil || ev.ResolvedBy != "auto" {
		t.Errorf("event not transitioned: %+v", ev)
	}
	other, _ := db.GetDriftEvent(ctx, "ev-3")
	if other.Status != models.DriftStatusNew {
		t.Errorf("other category must stay open, got %s", other.Status)
	}
	fp, _ := db.GetDriftEvent(ctx, "ev-4")
	if fp.Status != models.DriftStatusFalsePositive {
		t.Errorf("false positive must not transition, got %s", fp.Status)
	}
}

func TestScanSessionsPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		session := models.ScanSession{
			ID:        string(rune('a' + i)),
			NPI:       "111",
			URL:       "https://example.com",
			StartedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if err := db.AddScanSession(ctx, session); err != nil {
			t.Fatalf("AddScanSession: %v", err)
		}
	}

	sessions, total, err := db.LoadScanSessions(ctx, "111", 1, 2)
	if err != nil {
		t.Fatalf("LoadScanSessions: %v", err)
	}
	if total != 5 || len(sessions) != 2 {
		t.Fatalf("total=%d len=%d", total, len(sessions))
	}
	if sessions[0].ID != "e" {
		t.Errorf("newest first, got %s", sessions[0].ID)
	}

	sessions, _, _ = db.LoadScanSessions(ctx, "111", 3, 2)
	if len(sessions) != 1 || sessions[0].ID != "a" {
		t.Errorf("last page = %+v", sessions)
	}

	sessions, total, _ = db.LoadScanSessions(ctx, "999", 1, 10)
	if total != 0 || len(sessions) != 0 {
		t.Errorf("unknown provider must be empty, total=%d", total)
	}
}

func TestWatchedProviders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := models.WatchedProvider{NPI: "111", URL: "https://example.com", Tier: "report", AddedAt: time.Now()}
	if err := db.PutWatchedProvider(ctx, p); err != nil {
		t.Fatalf("PutWatchedProvider: %v", err)
	}

	got, err := db.GetWatchedProvider(ctx, "111")
	if err != nil {
		t.Fatalf("GetWatchedProvider: %v", err)
	}
	if got.URL != "https://example.com" {
		t.Errorf("url = %q", got.URL)
	}

	list, err := db.LoadWatchedProviders(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("LoadWatchedProviders: %v, %d entries", err, len(list))
	}

	if err := db.DeleteWatchedProvider(ctx, "111"); err != nil {
		t.Fatalf("DeleteWatchedProvider: %v", err)
	}
	if _, err := db.GetWatchedProvider(ctx, "111"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRecordHeartbeatIncrements(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	hb, err := db.RecordHeartbeat(ctx, "111", "https://example.com", "active", now)
	if err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if hb.PageViewsTotal != 1 {
		t.Errorf("views = %d", hb.PageViewsTotal)
	}

	later := now.Add(time.Minute)
	hb, err = db.RecordHeartbeat(ctx, "111", "https://example.com", "active", later)
	if err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if hb.PageViewsTotal != 2 {
		t.Errorf("views = %d, want increment", hb.PageViewsTotal)
	}
	if hb.LastSeen.Before(later) {
		t.Errorf("last seen not advanced: %v", hb.LastSeen)
	}
	if !hb.FirstSeen.Equal(now) {
		t.Errorf("first seen overwritten: %v", hb.FirstSeen)
	}

	got, err := db.GetHeartbeat(ctx, "111", "https://example.com")
	if err != nil {
		t.Fatalf("GetHeartbeat: %v", err)
	}
	if got.PageViewsTotal != 2 {
		t.Errorf("persisted views = %d", got.PageViewsTotal)
	}
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	db.PutWatchedProvider(ctx, models.WatchedProvider{NPI: "111"})
	db.PutWatchedProvider(ctx, models.WatchedProvider{NPI: "222"})
	db.AddScanSession(ctx, models.ScanSession{ID: "s1", NPI: "111", StartedAt: now, CompletedAt: now})
	db.AddDriftEvent(ctx, driftEvent("ev-1", "111", "privacy_policy", "a", models.DriftStatusNew, now))
	db.AddDriftEvent(ctx, driftEvent("ev-2", "111", "privacy_policy", "b", models.DriftStatusResolved, now.Add(-48*time.Hour)))

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.ProvidersWatched != 2 {
		t.Errorf("providers = %d", stats.ProvidersWatched)
	}
	if stats.TotalScans != 1 {
		t.Errorf("scans = %d", stats.TotalScans)
	}
	if stats.OpenDriftEvents != 1 {
		t.Errorf("open drift = %d", stats.OpenDriftEvents)
	}
	if stats.DriftEventsToday != 1 {
		t.Errorf("drift today = %d", stats.DriftEventsToday)
	}
}
