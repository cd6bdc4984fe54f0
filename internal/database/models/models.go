// Package models defines the records persisted by the store: compliance
// baselines, drift events, scan sessions, the watched-provider list and
// widget heartbeats.
package models

import (
	"time"

	"github.com/provmon/provmon/internal/checks"
)

// Baseline is the last-accepted content state for one compliance category
// on one page. At most one baseline exists per (npi, page_url, category);
// writes overwrite.
type Baseline struct {
	NPI             string    `json:"npi"`
	PageURL         string    `json:"page_url"`
	Category        string    `json:"category"`
	Hash            string    `json:"hash"`
	ContentSnapshot string    `json:"content_snapshot"`
	Framework       string    `json:"framework"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DriftType classifies the direction of a content change.
type DriftType string

const (
	DriftContentChanged DriftType = "content_changed"
	DriftContentRemoved DriftType = "content_removed"
	DriftContentAdded   DriftType = "content_added"
	DriftWidgetRemoved  DriftType = "widget_removed"
)

// DriftStatus is the lifecycle state of a drift event.
type DriftStatus string

const (
	DriftStatusNew           DriftStatus = "new"
	DriftStatusAcknowledged  DriftStatus = "acknowledged"
	DriftStatusResolved      DriftStatus = "resolved"
	DriftStatusFalsePositive DriftStatus = "false_positive"
)

// DriftEvent is one detected deviation from baseline. Events are never
// deleted; only their status changes.
type DriftEvent struct {
	ID            string      `json:"id"`
	NPI           string      `json:"npi"`
	PageURL       string      `json:"page_url"`
	Category      string      `json:"category"`
	DriftType     DriftType   `json:"drift_type"`
	Severity      string      `json:"severity"`
	Status        DriftStatus `json:"status"`
	PreviousHash  string      `json:"previous_hash,omitempty"`
	CurrentHash   string      `json:"current_hash,omitempty"`
	ContentBefore string      `json:"content_before,omitempty"`
	ContentAfter  string      `json:"content_after,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy    string      `json:"resolved_by,omitempty"`
}

// DriftFilter narrows a drift event listing. Zero-valued fields apply no
// filter.
type DriftFilter struct {
	NPI      string
	Status   DriftStatus
	Severity string
	Limit    int
	Offset   int
}

// ScanSession is one completed compliance scan. Sessions are append-only.
type ScanSession struct {
	ID             string          `json:"id"`
	NPI            string          `json:"npi"`
	URL            string          `json:"url"`
	Tier           checks.Tier     `json:"tier"`
	TriggeredBy    string          `json:"triggered_by"`
	CompositeScore *int            `json:"composite_score,omitempty"`
	RiskLevel      string          `json:"risk_level,omitempty"`
	CategoryScores map[string]int  `json:"category_scores,omitempty"`
	ChecksTotal    int             `json:"checks_total"`
	ChecksPassed   int             `json:"checks_passed"`
	ChecksFailed   int             `json:"checks_failed"`
	ChecksWarned   int             `json:"checks_warned"`
	Results        []checks.Result `json:"results"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// WatchedProvider is one entry in the periodic monitoring list.
type WatchedProvider struct {
	NPI        string      `json:"npi"`
	URL        string      `json:"url"`
	Tier       checks.Tier `json:"tier"`
	AddedAt    time.Time   `json:"added_at"`
	LastScanAt time.Time   `json:"last_scan_at,omitempty"`
	LastScore  *int        `json:"last_score,omitempty"`
}

// Heartbeat tracks a monitoring widget phoning home from a provider page.
type Heartbeat struct {
	NPI            string    `json:"npi"`
	PageURL        string    `json:"page_url"`
	WidgetMode     string    `json:"widget_mode"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	PageViewsTotal int       `json:"page_views_total"`
}

// SessionsResponse includes pagination metadata.
type SessionsResponse struct {
	Sessions   []ScanSession `json:"sessions"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// DriftEventsResponse includes pagination metadata.
type DriftEventsResponse struct {
	Events []DriftEvent `json:"events"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// StatsResponse represents the structure of the /stats API response.
type StatsResponse struct {
	ProvidersWatched int       `json:"providers_watched"`
	TotalScans       int       `json:"total_scans"`
	OpenDriftEvents  int       `json:"open_drift_events"`
	DriftEventsToday int       `json:"drift_events_today"`
	LastScanAt       time.Time `json:"last_scan_at"`
}

// OpenDrift reports whether the event still needs attention.
func (e *DriftEvent) OpenDrift() bool {
	return e.Status == DriftStatusNew || e.Status == DriftStatusAcknowledged
}

// ValidDriftStatus reports whether s names a known lifecycle state.
func ValidDriftStatus(s DriftStatus) bool {
	switch s {
	case DriftStatusNew, DriftStatusAcknowledged, DriftStatusResolved, DriftStatusFalsePositive:
		return true
	}
	return false
}
