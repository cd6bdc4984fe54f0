package drift

import (
	"encoding/json"
	"fmt"

	"github.com/provmon/provmon/internal/database/models"
)

// SeverityTable maps a compliance category and drift direction to an alert
// severity. Unlisted combinations default to medium.
type SeverityTable map[string]map[models.DriftType]string

// DefaultSeverities weights removal of disclosure content heaviest;
// additions are usually benign except for third-party scripts, where new
// code appearing on a healthcare page is itself the risk.
func DefaultSeverities() SeverityTable {
	return SeverityTable{
		"ai_disclosure": {
			models.DriftContentRemoved: "critical",
			models.DriftContentChanged: "high",
			models.DriftContentAdded:   "low",
		},
		"privacy_policy": {
			models.DriftContentRemoved: "high",
			models.DriftContentChanged: "medium",
			models.DriftContentAdded:   "low",
		},
		"third_party_scripts": {
			models.DriftContentRemoved: "medium",
			models.DriftContentChanged: "high",
			models.DriftContentAdded:   "high",
		},
		"data_collection_forms": {
			models.DriftContentRemoved: "medium",
			models.DriftContentChanged: "high",
			models.DriftContentAdded:   "medium",
		},
		"cookie_consent": {
			models.DriftContentRemoved: "medium",
			models.DriftContentChanged: "medium",
			models.DriftContentAdded:   "low",
		},
		"hipaa_references": {
			models.DriftContentRemoved: "medium",
			models.DriftContentChanged: "low",
			models.DriftContentAdded:   "low",
		},
		"meta_compliance": {
			models.DriftContentRemoved: "low",
			models.DriftContentChanged: "low",
			models.DriftContentAdded:   "low",
		},
	}
}

// Severity resolves the alert severity for a category and drift type.
func (t SeverityTable) Severity(category string, driftType models.DriftType) string {
	if byType, ok := t[category]; ok {
		if sev, ok := byType[driftType]; ok {
			return sev
		}
	}
	return "medium"
}

// ParseSeverityTable decodes a JSON severity table override, for example
// {"privacy_policy":{"content_removed":"critical"}}. Categories absent from
// the override keep their defaults.
func ParseSeverityTable(raw string) (SeverityTable, error) {
	table := DefaultSeverities()
	if raw == "" {
		return table, nil
	}
	var override SeverityTable
	if err := json.Unmarshal([]byte(raw), &override); err != nil {
		return nil, fmt.Errorf("invalid severity table JSON: %w", err)
	}
	for category, byType := range override {
		if table[category] == nil {
			table[category] = map[models.DriftType]string{}
		}
		for driftType, sev := range byType {
			table[category][driftType] = sev
		}
	}
	return table, nil
}
