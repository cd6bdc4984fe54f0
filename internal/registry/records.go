// Package registry resolves provider identifiers against the federal NPI
// registry. Two upstreams are supported: the NPPES API (authoritative,
// carries secondary practice locations) and the NLM Clinical Tables API
// (faster, less complete). Loosely-structured upstream JSON is validated
// into explicit record types at this boundary so callers never re-check
// field presence.
package registry

import "strings"

// SecondaryAddress is one registered secondary practice location.
type SecondaryAddress struct {
	Line1 string `json:"line1"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// OrgRecord holds the organization-level registry facts consumed by the
// checks. Read-only; refreshed per scan.
type OrgRecord struct {
	NPI                string             `json:"npi"`
	OrgName            string             `json:"org_name"`
	PracticeLine1      string             `json:"prac_line1"`
	PracticeLine2      string             `json:"prac_line2"`
	PracticeCity       string             `json:"prac_city"`
	PracticeState      string             `json:"prac_state"`
	PracticeZip        string             `json:"prac_zip"`
	PracticePhone      string             `json:"prac_phone"`
	TaxonomyCode       string             `json:"tax_code"`
	TaxonomyClass      string             `json:"tax_classification"`
	EnumerationDate    string             `json:"enumeration_date"`
	LastUpdateDate     string             `json:"last_update_date"`
	SecondaryAddresses []SecondaryAddress `json:"addresses_secondary"`
}

// ProviderRecord holds one individually-registered clinician.
type ProviderRecord struct {
	NPI            string `json:"npi"`
	NameFull       string `json:"name_full"`
	NameFirst      string `json:"name_first"`
	NameLast       string `json:"name_last"`
	PracticeLine1  string `json:"prac_line1"`
	PracticeCity   string `json:"prac_city"`
	PracticeState  string `json:"prac_state"`
	PracticeZip    string `json:"prac_zip"`
	TaxonomyCode   string `json:"tax_code"`
	TaxonomyClass  string `json:"tax_classification"`
	LastUpdateDate string `json:"last_update_date"`
}

func zip5(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}
