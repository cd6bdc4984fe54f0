package checks

import (
	"context"
	"fmt"

	"github.com/provmon/provmon/internal/matching"
)

// RosterCountCheck compares the number of clinicians listed on the website
// to the individually-registered clinicians found for the same geographic
// area.
type RosterCountCheck struct{}

func (c *RosterCountCheck) ID() string         { return "RST-01" }
func (c *RosterCountCheck) Category() string   { return categoryNPIIntegrity }
func (c *RosterCountCheck) Name() string       { return "Provider Roster Count" }
func (c *RosterCountCheck) Severity() Severity { return SeverityMedium }
func (c *RosterCountCheck) Tier() Tier         { return TierReport }

func (c *RosterCountCheck) Run(_ context.Context, sc *Context) Result {
	if sc.Snapshot == nil || sc.Snapshot.ProviderCount == 0 {
		return inconclusive(c, "Website provider count not detected",
			"Could not determine provider count from the website. Ensure your team page lists providers individually.")
	}
	if len(sc.Providers) == 0 {
		return inconclusive(c, "Registry provider data unavailable",
			"Could not retrieve individual clinician registrations for this geographic area")
	}

	siteCount := sc.Snapshot.ProviderCount
	regCount := len(sc.Providers)
	diff := siteCount - regCount
	if diff < 0 {
		diff = -diff
	}
	maxCount := siteCount
	if regCount > maxCount {
		maxCount = regCount
	}
	variancePct := int(float64(diff)/float64(maxCount)*100 + 0.5)

	direction := "more_on_site"
	if regCount > siteCount {
		direction = "more_in_registry"
	}

	if variancePct <= 10 {
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusPass, Score: 100,
			Title:  "Provider roster consistent",
			Detail: fmt.Sprintf("Website lists %d providers, %d active registrations found in area", siteCount, regCount),
			Evidence: map[string]any{
				"site_count":     siteCount,
				"registry_count": regCount,
				"variance_pct":   variancePct,
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	if variancePct <= 30 {
		step := "Some providers with registrations in your area may be missing from your website"
		if siteCount > regCount {
			step = "Some providers on your website may not have active registrations in this area"
		}
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusWarn, Score: 60,
			Title: "Minor roster variance detected",
			Detail: fmt.Sprintf("Website lists %d providers but %d registrations found in area (%d%% variance)",
				siteCount, regCount, variancePct),
			Evidence: map[string]any{
				"site_count":     siteCount,
				"registry_count": regCount,
				"variance_pct":   variancePct,
				"direction":      direction,
			},
			RemediationSteps: []string{
				step,
				"Review your team page for accuracy",
				"Minor variances are normal; providers may list a different primary address with the registry",
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	score := 80 - variancePct
	if score < 20 {
		score = 20
	}
	directionStep := "Providers in the registry for your area may be missing from your website"
	if siteCount > regCount {
		directionStep = "Providers listed on your site may need to update their registry practice address to this location"
	}
	return Result{
		ID: c.ID(), Category: c.Category(), Name: c.Name(),
		Status: StatusFail, Score: score,
		Title: "Significant roster discrepancy",
		Detail: fmt.Sprintf("Website lists %d providers but %d registrations found in area (%d%% variance)",
			siteCount, regCount, variancePct),
		Evidence: map[string]any{
			"site_count":     siteCount,
			"registry_count": regCount,
			"variance_pct":   variancePct,
			"direction":      direction,
		},
		RemediationSteps: []string{
			"Review your team page for accuracy",
			"Remove providers who have left the practice",
			"Add new providers to your website",
			"Ensure each provider has an active registration with the correct practice address",
			directionStep,
		},
		Severity: c.Severity(), Tier: c.Tier(),
	}
}

// RosterNameCheck fuzzy-matches each clinician name on the website against
// the individually-registered clinicians for the area. Highest tier only.
type RosterNameCheck struct{}

func (c *RosterNameCheck) ID() string         { return "RST-02" }
func (c *RosterNameCheck) Category() string   { return categoryNPIIntegrity }
func (c *RosterNameCheck) Name() string       { return "Provider Name Verification" }
func (c *RosterNameCheck) Severity() Severity { return SeverityHigh }
func (c *RosterNameCheck) Tier() Tier         { return TierShield }

func (c *RosterNameCheck) Run(_ context.Context, sc *Context) Result {
	if sc.Snapshot == nil || len(sc.Snapshot.ProviderNames) == 0 {
		return inconclusive(c, "Website provider names not detected",
			"Could not extract individual provider names from the website")
	}
	if len(sc.Providers) == 0 {
		return inconclusive(c, "Registry provider data unavailable",
			"Could not retrieve individual clinician registrations for this area")
	}

	type namePair struct {
		original   string
		normalized string
	}
	siteNames := make([]namePair, 0, len(sc.Snapshot.ProviderNames))
	for _, n := range sc.Snapshot.ProviderNames {
		siteNames = append(siteNames, namePair{n, matching.NormalizeName(n)})
	}
	regNames := make([]namePair, 0, len(sc.Providers))
	for _, p := range sc.Providers {
		regNames = append(regNames, namePair{p.NameFull, matching.NormalizeName(p.NameFull)})
	}

	var onSiteOnly, inRegistryOnly []string
	matchedCount := 0
	for _, sn := range siteNames {
		found := false
		for _, rn := range regNames {
			if matching.FuzzyNameMatch(sn.normalized, rn.normalized) {
				found = true
				break
			}
		}
		if found {
			matchedCount++
		} else {
			onSiteOnly = append(onSiteOnly, sn.original)
		}
	}
	for _, rn := range regNames {
		found := false
		for _, sn := range siteNames {
			if matching.FuzzyNameMatch(sn.normalized, rn.normalized) {
				found = true
				break
			}
		}
		if !found {
			inRegistryOnly = append(inRegistryOnly, rn.original)
		}
	}

	matchRate := 0
	if len(siteNames) > 0 {
		matchRate = int(float64(matchedCount)/float64(len(siteNames))*100 + 0.5)
	}

	if len(onSiteOnly) == 0 && len(inRegistryOnly) == 0 {
		return Result{
			ID: c.ID(), Category: c.Category(), Name: c.Name(),
			Status: StatusPass, Score: 100,
			Title:  "All providers verified",
			Detail: fmt.Sprintf("All %d website providers match registry records in area", len(siteNames)),
			Evidence: map[string]any{
				"matched_count":           matchedCount,
				"match_rate":              100,
				"site_provider_count":     len(siteNames),
				"registry_provider_count": len(regNames),
			},
			Severity: c.Severity(), Tier: c.Tier(),
		}
	}

	discrepancies := len(onSiteOnly) + len(inRegistryOnly)
	status := StatusFail
	if discrepancies <= 2 {
		status = StatusWarn
	}
	score := 100 - discrepancies*10
	if score < 20 {
		score = 20
	}

	var steps []string
	if len(onSiteOnly) > 0 {
		steps = append(steps, fmt.Sprintf(
			"%d provider(s) on your website may have left or may list a different practice address with the registry", len(onSiteOnly)))
	}
	if len(inRegistryOnly) > 0 {
		steps = append(steps, fmt.Sprintf(
			"%d provider(s) registered in your area are not listed on your website", len(inRegistryOnly)))
	}
	steps = append(steps,
		"Verify your team page is up to date",
		"Providers who have relocated should update their registry practice address",
		"New hires should be added to your website within 30 days",
	)

	return Result{
		ID: c.ID(), Category: c.Category(), Name: c.Name(),
		Status: status, Score: score,
		Title: "Provider roster discrepancies found",
		Detail: fmt.Sprintf("%d on website but not in registry area, %d in registry area but not on website (%d%% match rate)",
			len(onSiteOnly), len(inRegistryOnly), matchRate),
		Evidence: map[string]any{
			"matched_count":           matchedCount,
			"match_rate":              matchRate,
			"on_site_not_in_registry": capNames(onSiteOnly, 10),
			"in_registry_not_on_site": capNames(inRegistryOnly, 10),
			"site_provider_count":     len(siteNames),
			"registry_provider_count": len(regNames),
		},
		RemediationSteps: steps,
		Severity:         c.Severity(), Tier: c.Tier(),
	}
}

func capNames(names []string, n int) []string {
	if len(names) > n {
		return names[:n]
	}
	return names
}
