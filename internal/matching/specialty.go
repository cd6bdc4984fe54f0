package matching

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SynonymTable maps a registry taxonomy classification (lowercase) to site
// labels considered equivalent. Hand-curated; callers may supply their own
// table where the defaults are incomplete.
type SynonymTable map[string][]string

// DefaultSynonyms covers the taxonomy classifications most often seen on
// provider websites.
var DefaultSynonyms = SynonymTable{
	"family medicine":           {"family practice", "primary care", "family health", "general practice"},
	"internal medicine":         {"primary care", "general medicine", "internist"},
	"pediatrics":                {"pediatric medicine", "child health", "childrens medicine"},
	"obstetrics & gynecology":   {"obgyn", "ob/gyn", "obstetrics", "gynecology", "womens health"},
	"psychiatry":                {"mental health", "behavioral health", "psychiatric services"},
	"nurse practitioner":        {"np", "advanced practice nurse", "arnp", "aprn"},
	"physician assistant":       {"pa", "pa-c", "physician associate"},
	"clinical psychology":       {"psychology", "psychologist", "mental health", "behavioral health"},
	"physical therapy":          {"physiotherapy", "pt", "physical rehabilitation"},
	"dentist":                   {"dental", "dentistry", "oral health"},
	"optometry":                 {"eye care", "vision care", "optometrist"},
	"chiropractic":              {"chiropractor", "spinal health"},
	"dermatology":               {"skin care", "dermatologist"},
	"cardiology":                {"heart health", "cardiovascular", "cardiologist"},
	"orthopedic surgery":        {"orthopedics", "orthopaedics", "bone and joint", "musculoskeletal"},
}

// ParseSynonymTable decodes a JSON synonym table override, for example
// {"family medicine":["family practice"]}. Classifications absent from the
// override keep their defaults.
func ParseSynonymTable(raw string) (SynonymTable, error) {
	table := make(SynonymTable, len(DefaultSynonyms))
	for k, v := range DefaultSynonyms {
		table[k] = v
	}
	if raw == "" {
		return table, nil
	}
	var override SynonymTable
	if err := json.Unmarshal([]byte(raw), &override); err != nil {
		return nil, fmt.Errorf("invalid synonym table JSON: %w", err)
	}
	for k, v := range override {
		table[strings.ToLower(k)] = v
	}
	return table, nil
}

// SpecialtyMatches reports whether a registry taxonomy classification is
// consistent with any of the specialty labels found on the website. Any site
// label containing "primary care" is treated as non-flaggable since it
// legitimately subsumes many classifications.
func SpecialtyMatches(classification string, siteLabels []string, table SynonymTable) bool {
	if table == nil {
		table = DefaultSynonyms
	}
	clsLower := strings.ToLower(classification)

	for _, label := range siteLabels {
		siteLower := strings.ToLower(label)

		if strings.Contains(clsLower, siteLower) || strings.Contains(siteLower, clsLower) {
			return true
		}

		for _, syn := range table[clsLower] {
			if strings.Contains(siteLower, syn) || strings.Contains(syn, siteLower) {
				return true
			}
		}

		// Reverse lookup: the site label matches a table key whose synonyms
		// cover the classification.
		for key, syns := range table {
			if strings.Contains(siteLower, key) || strings.Contains(key, siteLower) {
				if strings.Contains(clsLower, key) {
					return true
				}
				for _, syn := range syns {
					if strings.Contains(clsLower, syn) {
						return true
					}
				}
			}
		}
	}

	for _, label := range siteLabels {
		if strings.Contains(strings.ToLower(label), "primary care") {
			return true
		}
	}

	return false
}
