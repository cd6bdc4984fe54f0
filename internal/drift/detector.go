// Package drift tracks compliance-relevant page content against accepted
// baselines and records deviations as alertable events.
package drift

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/database/models"
	"github.com/provmon/provmon/internal/notifications"
)

const maxContentLen = 2000

// Observation is one category's current content state, as seen by a scan or
// a monitoring widget. Empty CurrentHash with a non-empty PreviousHash means
// the content is gone.
type Observation struct {
	Category      string `json:"category"`
	DriftType     string `json:"drift_type,omitempty"`
	PreviousHash  string `json:"previous_hash,omitempty"`
	CurrentHash   string `json:"current_hash,omitempty"`
	ContentBefore string `json:"content_before,omitempty"`
	ContentAfter  string `json:"content_after,omitempty"`
	Failed        bool   `json:"failed,omitempty"`
}

// Report summarizes one ReportObservations call.
type Report struct {
	Inserted     int      `json:"inserted"`
	Deduplicated int      `json:"deduplicated"`
	EventIDs     []string `json:"event_ids,omitempty"`
}

// Detector persists baselines and turns observations into drift events.
type Detector struct {
	db       database.Database
	notifier *notifications.Notifier
	cfg      *Config

	// Serializes dedupe-check-then-insert so concurrent observers of the
	// same drift cannot both pass the check.
	mu sync.Mutex
}

// NewDetector builds a detector. A nil cfg uses the defaults.
func NewDetector(db database.Database, notifier *notifications.Notifier, cfg *Config) *Detector {
	if cfg == nil {
		cfg = &Config{DedupeWindow: time.Hour, Severities: DefaultSeverities()}
	}
	if cfg.Severities == nil {
		cfg.Severities = DefaultSeverities()
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = time.Hour
	}
	return &Detector{db: db, notifier: notifier, cfg: cfg}
}

// SetBaselines upserts the accepted content state for each category of a
// provider page. Existing baselines for the same keys are replaced.
func (d *Detector) SetBaselines(ctx context.Context, npi, pageURL, framework string, contents map[string]crawler.CategoryContent) error {
	now := time.Now().UTC()
	for category, content := range contents {
		record := models.Baseline{
			NPI:             npi,
			PageURL:         pageURL,
			Category:        category,
			Hash:            content.Hash,
			ContentSnapshot: truncate(content.Excerpt, maxContentLen),
			Framework:       framework,
			UpdatedAt:       now,
		}
		if err := d.db.UpsertBaseline(ctx, record); err != nil {
			return fmt.Errorf("upsert baseline %s/%s: %w", npi, category, err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"npi":        npi,
		"page_url":   pageURL,
		"categories": len(contents),
	}).Info("Baselines updated")
	return nil
}

// Compare diffs current category contents against stored baselines and
// returns the resulting observations. Categories absent from both sides
// produce nothing.
func Compare(baselines []models.Baseline, current map[string]crawler.CategoryContent) []Observation {
	var observations []Observation
	seen := make(map[string]bool, len(baselines))

	for _, base := range baselines {
		seen[base.Category] = true
		cur, ok := current[base.Category]
		if !ok || cur.Hash == "" {
			observations = append(observations, Observation{
				Category:      base.Category,
				PreviousHash:  base.Hash,
				ContentBefore: base.ContentSnapshot,
			})
			continue
		}
		if cur.Hash != base.Hash {
			observations = append(observations, Observation{
				Category:      base.Category,
				PreviousHash:  base.Hash,
				CurrentHash:   cur.Hash,
				ContentBefore: base.ContentSnapshot,
				ContentAfter:  cur.Excerpt,
			})
		}
	}
	for category, cur := range current {
		if seen[category] || cur.Hash == "" {
			continue
		}
		observations = append(observations, Observation{
			Category:     category,
			CurrentHash:  cur.Hash,
			ContentAfter: cur.Excerpt,
		})
	}
	return observations
}

// ReportObservations classifies, deduplicates and stores drift events for a
// provider page. Failed observations are skipped; missing data is never
// treated as drift. Critical and high severity events are forwarded to the
// notifier.
func (d *Detector) ReportObservations(ctx context.Context, npi, pageURL string, observations []Observation) (Report, error) {
	if pageURL == "" {
		pageURL = "/"
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var report Report
	now := time.Now().UTC()
	since := now.Add(-d.cfg.DedupeWindow)

	for _, obs := range observations {
		if obs.Failed {
			continue
		}
		driftType := classify(obs)
		if driftType == "" {
			continue
		}
		severity := d.cfg.Severities.Severity(obs.Category, driftType)

		dup, err := d.db.HasRecentNewDrift(ctx, npi, obs.Category, obs.CurrentHash, since)
		if err != nil {
			return report, fmt.Errorf("dedupe check: %w", err)
		}
		if dup {
			report.Deduplicated++
			continue
		}

		event := models.DriftEvent{
			ID:            uuid.NewString(),
			NPI:           npi,
			PageURL:       pageURL,
			Category:      obs.Category,
			DriftType:     driftType,
			Severity:      severity,
			Status:        models.DriftStatusNew,
			PreviousHash:  obs.PreviousHash,
			CurrentHash:   obs.CurrentHash,
			ContentBefore: truncate(obs.ContentBefore, maxContentLen),
			ContentAfter:  truncate(obs.ContentAfter, maxContentLen),
			CreatedAt:     now,
		}
		if err := d.db.AddDriftEvent(ctx, event); err != nil {
			return report, fmt.Errorf("store drift event: %w", err)
		}
		report.Inserted++
		report.EventIDs = append(report.EventIDs, event.ID)

		logrus.WithFields(logrus.Fields{
			"npi":        npi,
			"category":   obs.Category,
			"drift_type": driftType,
			"severity":   severity,
		}).Info("Drift event recorded")

		d.notifier.NotifyDrift(event)
	}

	return report, nil
}

// UpdateStatus transitions a drift event's lifecycle state. Resolved events
// are final and cannot be reopened.
func (d *Detector) UpdateStatus(ctx context.Context, id string, status models.DriftStatus, by string) (models.DriftEvent, error) {
	if !models.ValidDriftStatus(status) {
		return models.DriftEvent{}, fmt.Errorf("unknown drift status: %s", status)
	}

	event, err := d.db.GetDriftEvent(ctx, id)
	if err != nil {
		return models.DriftEvent{}, err
	}
	if event.Status == models.DriftStatusResolved && status != models.DriftStatusResolved {
		return models.DriftEvent{}, fmt.Errorf("drift event %s is resolved and cannot transition to %s", id, status)
	}

	event.Status = status
	if status == models.DriftStatusResolved || status == models.DriftStatusFalsePositive {
		now := time.Now().UTC()
		event.ResolvedAt = &now
		event.ResolvedBy = by
	}

	if err := d.db.UpdateDriftEvent(ctx, event); err != nil {
		return models.DriftEvent{}, err
	}
	return event, nil
}

// ResolveOpen closes every open event for a provider category, used when a
// later scan shows the content back in compliance.
func (d *Detector) ResolveOpen(ctx context.Context, npi, category, by string) (int, error) {
	n, err := d.db.ResolveOpenDrift(ctx, npi, category, by)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logrus.WithFields(logrus.Fields{
			"npi":      npi,
			"category": category,
			"resolved": n,
		}).Info("Open drift events auto-resolved")
	}
	return n, nil
}

// classify infers the drift direction from an observation's hashes. An
// explicit DriftType wins when the observation carries one.
func classify(obs Observation) models.DriftType {
	if obs.DriftType != "" {
		return models.DriftType(obs.DriftType)
	}
	switch {
	case obs.CurrentHash == "" && obs.PreviousHash != "":
		return models.DriftContentRemoved
	case obs.PreviousHash == "" && obs.CurrentHash != "":
		return models.DriftContentAdded
	case obs.CurrentHash != "":
		return models.DriftContentChanged
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
