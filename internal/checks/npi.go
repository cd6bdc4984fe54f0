package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/provmon/provmon/internal/matching"
)

const categoryNPIIntegrity = "npi_integrity"

// AddressCheck compares the website address to the registry practice
// address, including registered secondary locations.
type AddressCheck struct{}

func (c *AddressCheck) ID() string         { return "NPI-01" }
func (c *AddressCheck) Category() string   { return categoryNPIIntegrity }
func (c *AddressCheck) Name() string       { return "Registry Address Verification" }
func (c *AddressCheck) Severity() Severity { return SeverityHigh }
func (c *AddressCheck) Tier() Tier         { return TierFree }

func (c *AddressCheck) Run(_ context.Context, sc *Context) Result {
	if sc.Org == nil {
		return inconclusive(c, "Registry organization data unavailable",
			"Could not retrieve registry data for this provider")
	}
	if sc.Snapshot == nil || sc.Snapshot.AddrLine1 == "" {
		return inconclusive(c, "Website address not detected",
			"Could not extract a street address from the website. Check that your address is visible on the page.")
	}

	org := sc.Org
	site := sc.Snapshot
	regAddr := matching.NormalizeAddress(org.PracticeLine1, org.PracticeCity, org.PracticeState, org.PracticeZip)
	siteAddr := matching.NormalizeAddress(site.AddrLine1, site.AddrCity, site.AddrState, site.AddrZip)

	if matching.AddressesMatch(regAddr, siteAddr) {
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusPass, Score: 100,
			Title:  "Address matches registry record",
			Detail: fmt.Sprintf("Website address matches registry practice address in %s, %s", org.PracticeCity, org.PracticeState),
			Evidence: map[string]any{
				"registry_address": formatAddr(org.PracticeLine1, org.PracticeCity, org.PracticeState, org.PracticeZip),
				"site_address":     formatAddr(site.AddrLine1, site.AddrCity, site.AddrState, site.AddrZip),
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	for _, sec := range org.SecondaryAddresses {
		secAddr := matching.NormalizeAddress(sec.Line1, sec.City, sec.State, sec.Zip)
		if matching.AddressesMatch(secAddr, siteAddr) {
			return Result{
				ID: c.ID(), Category: c.Category(), Name: c.Name(),
				Status: StatusPass, Score: 100,
				Title:  "Address matches registered secondary location",
				Detail: "Website address matches a registered secondary practice location",
				Evidence: map[string]any{
					"matched_secondary": formatAddr(sec.Line1, sec.City, sec.State, sec.Zip),
				},
				Severity: c.Severity(), Tier: c.Tier(),
			}
		}
	}

	return Result{
		ID: c.ID(), Category: c.Category(), Name: c.Name(),
		Status: StatusFail, Score: 25,
		Title: "Address mismatch detected",
		Detail: fmt.Sprintf("Website shows %q but registry record shows %q",
			site.AddrLine1+", "+site.AddrCity, org.PracticeLine1+", "+org.PracticeCity),
		Evidence: map[string]any{
			"registry_address":     formatAddr(org.PracticeLine1, org.PracticeCity, org.PracticeState, org.PracticeZip),
			"site_address":         formatAddr(site.AddrLine1, site.AddrCity, site.AddrState, site.AddrZip),
			"registry_last_update": org.LastUpdateDate,
			"secondary_addresses":  len(org.SecondaryAddresses),
		},
		RemediationSteps: []string{
			"Verify your current practice address is correct",
			"If you recently moved, update your registry record",
			"If the registry record is correct, update your website",
			"If multi-site, register all locations as secondary practice addresses",
		},
		Severity: c.Severity(), Tier: c.Tier(),
	}
}

// PhoneCheck compares the website phone number to the registry phone.
type PhoneCheck struct{}

func (c *PhoneCheck) ID() string         { return "NPI-02" }
func (c *PhoneCheck) Category() string   { return categoryNPIIntegrity }
func (c *PhoneCheck) Name() string       { return "Registry Phone Verification" }
func (c *PhoneCheck) Severity() Severity { return SeverityMedium }
func (c *PhoneCheck) Tier() Tier         { return TierFree }

func (c *PhoneCheck) Run(_ context.Context, sc *Context) Result {
	if sc.Org == nil || sc.Org.PracticePhone == "" {
		return inconclusive(c, "Registry phone data unavailable",
			"No phone number found in the registry for this provider")
	}
	if sc.Snapshot == nil || sc.Snapshot.Phone == "" {
		return inconclusive(c, "Website phone not detected",
			"Could not extract a phone number from the website")
	}

	if matching.PhonesMatch(sc.Org.PracticePhone, sc.Snapshot.Phone) {
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusPass, Score: 100,
			Title:  "Phone matches registry record",
			Detail: fmt.Sprintf("Website phone matches the registry: %s", sc.Org.PracticePhone),
			Evidence: map[string]any{
				"registry_phone": sc.Org.PracticePhone,
				"site_phone":     sc.Snapshot.Phone,
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	return Result{
		ID: c.ID(), Category: c.Category(), Name: c.Name(),
		Status: StatusFail, Score: 40,
		Title:  "Phone number mismatch",
		Detail: fmt.Sprintf("Website: %s | Registry record: %s", sc.Snapshot.Phone, sc.Org.PracticePhone),
		Evidence: map[string]any{
			"registry_phone":       sc.Org.PracticePhone,
			"site_phone":           sc.Snapshot.Phone,
			"registry_last_update": sc.Org.LastUpdateDate,
		},
		RemediationSteps: []string{
			"Verify which phone number is current",
			"Update the registry if the website number is the active line",
			"Update your website if the registry record is correct",
			"Note: call-tracking numbers (e.g., from ad campaigns) may trigger this alert",
		},
		Severity: c.Severity(), Tier: c.Tier(),
	}
}

// TaxonomyCheck compares website specialty labels to the registry taxonomy
// classification. Specialty drift is lower-confidence than address or phone
// drift, so a mismatch warns rather than fails.
type TaxonomyCheck struct{}

func (c *TaxonomyCheck) ID() string         { return "NPI-03" }
func (c *TaxonomyCheck) Category() string   { return categoryNPIIntegrity }
func (c *TaxonomyCheck) Name() string       { return "Specialty / Taxonomy Verification" }
func (c *TaxonomyCheck) Severity() Severity { return SeverityMedium }
func (c *TaxonomyCheck) Tier() Tier         { return TierReport }

func (c *TaxonomyCheck) Run(_ context.Context, sc *Context) Result {
	if sc.Org == nil || sc.Org.TaxonomyClass == "" {
		return inconclusive(c, "Registry taxonomy data unavailable",
			"No taxonomy classification found in the registry")
	}
	if sc.Snapshot == nil || len(sc.Snapshot.SpecialtyLabels) == 0 {
		return inconclusive(c, "Website specialties not detected",
			"Could not extract specialty or service labels from the website")
	}

	if matching.SpecialtyMatches(sc.Org.TaxonomyClass, sc.Snapshot.SpecialtyLabels, sc.Synonyms) {
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusPass, Score: 100,
			Title:  "Specialty matches registry taxonomy",
			Detail: fmt.Sprintf("Website specialty aligns with registry classification: %s", sc.Org.TaxonomyClass),
			Evidence: map[string]any{
				"registry_taxonomy_code": sc.Org.TaxonomyCode,
				"registry_classification": sc.Org.TaxonomyClass,
				"site_specialties":        sc.Snapshot.SpecialtyLabels,
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	return Result{
		ID: c.ID(), Category: c.Category(), Name: c.Name(),
		Status: StatusWarn, Score: 60,
		Title: "Specialty discrepancy detected",
		Detail: fmt.Sprintf("Registry classification: %q | Website claims: %q",
			sc.Org.TaxonomyClass, strings.Join(sc.Snapshot.SpecialtyLabels, ", ")),
		Evidence: map[string]any{
			"registry_taxonomy_code": sc.Org.TaxonomyCode,
			"registry_classification": sc.Org.TaxonomyClass,
			"site_specialties":        sc.Snapshot.SpecialtyLabels,
		},
		RemediationSteps: []string{
			"Verify your primary taxonomy code with the registry",
			"Ensure website specialty labels align with your classification",
			"Umbrella terms like \"Primary Care\" are generally acceptable",
			"If you offer multiple specialties, consider adding secondary taxonomy codes",
		},
		Severity: c.Severity(), Tier: c.Tier(),
	}
}

func formatAddr(line1, city, state, zip string) string {
	return fmt.Sprintf("%s, %s, %s %s", line1, city, state, zip)
}
