package checks

import (
	"context"
	"fmt"
	"testing"

	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/registry"
)

func fixtureOrg() *registry.OrgRecord {
	return &registry.OrgRecord{
		NPI:            "1234567890",
		OrgName:        "Hill Country Family Medicine",
		PracticeLine1:  "4501 Ranch Road 620",
		PracticeCity:   "Austin",
		PracticeState:  "TX",
		PracticeZip:    "78732",
		PracticePhone:  "512-555-0100",
		TaxonomyCode:   "207Q00000X",
		TaxonomyClass:  "Family Medicine",
		LastUpdateDate: "2024-01-15",
	}
}

func fixtureSnapshot() *crawler.Snapshot {
	return &crawler.Snapshot{
		URL:             "https://example.com",
		AddrLine1:       "4501 Ranch Road 620",
		AddrCity:        "Austin",
		AddrState:       "TX",
		AddrZip:         "78732",
		Phone:           "(512) 555-0100",
		SpecialtyLabels: []string{"family medicine", "pediatrics"},
		ProviderNames:   []string{"Maria Gonzalez", "David Chen"},
		ProviderCount:   2,
	}
}

func TestAddressCheckPass(t *testing.T) {
	res := (&AddressCheck{}).Run(context.Background(), &Context{
		Org: fixtureOrg(), Snapshot: fixtureSnapshot(),
	})
	if res.Status != StatusPass || res.Score != 100 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
}

func TestAddressCheckSecondaryMatch(t *testing.T) {
	org := fixtureOrg()
	org.SecondaryAddresses = []registry.SecondaryAddress{
		{Line1: "200 Elm St", City: "Lakeway", State: "TX", Zip: "78734"},
	}
	snap := fixtureSnapshot()
	snap.AddrLine1 = "200 Elm St"
	snap.AddrCity = "Lakeway"
	snap.AddrZip = "78734"

	res := (&AddressCheck{}).Run(context.Background(), &Context{Org: org, Snapshot: snap})
	if res.Status != StatusPass {
		t.Errorf("secondary address should pass, got %s", res.Status)
	}
}

func TestAddressCheckFail(t *testing.T) {
	snap := fixtureSnapshot()
	snap.AddrLine1 = "999 Other Blvd"
	snap.AddrZip = "75201"
	snap.AddrCity = "Dallas"

	res := (&AddressCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusFail || res.Score != 25 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
	if res.Evidence["registry_address"] == nil || res.Evidence["site_address"] == nil {
		t.Error("fail result must carry both addresses as evidence")
	}
	if len(res.RemediationSteps) == 0 {
		t.Error("fail result must carry remediation steps")
	}
}

func TestAddressCheckInconclusiveOnMissingSiteAddress(t *testing.T) {
	snap := fixtureSnapshot()
	snap.AddrLine1 = ""

	res := (&AddressCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusInconclusive || res.Score != 0 {
		t.Errorf("missing input must be inconclusive, got status=%s score=%d", res.Status, res.Score)
	}
}

func TestAddressCheckInconclusiveOnNilSnapshot(t *testing.T) {
	res := (&AddressCheck{}).Run(context.Background(), &Context{Org: fixtureOrg()})
	if res.Status != StatusInconclusive {
		t.Errorf("nil snapshot must be inconclusive, got %s", res.Status)
	}
}

func TestPhoneCheck(t *testing.T) {
	res := (&PhoneCheck{}).Run(context.Background(), &Context{
		Org: fixtureOrg(), Snapshot: fixtureSnapshot(),
	})
	if res.Status != StatusPass {
		t.Errorf("formatting variance should pass, got %s", res.Status)
	}

	snap := fixtureSnapshot()
	snap.Phone = "(512) 555-0199"
	res = (&PhoneCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusFail || res.Score != 40 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}

	snap.Phone = ""
	res = (&PhoneCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusInconclusive {
		t.Errorf("missing phone must be inconclusive, got %s", res.Status)
	}
}

func TestTaxonomyCheckWarnsNotFails(t *testing.T) {
	snap := fixtureSnapshot()
	snap.SpecialtyLabels = []string{"dermatology"}

	res := (&TaxonomyCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusWarn || res.Score != 60 {
		t.Errorf("taxonomy mismatch must warn at 60, got status=%s score=%d", res.Status, res.Score)
	}
}

func TestTaxonomyCheckSynonymPass(t *testing.T) {
	snap := fixtureSnapshot()
	snap.SpecialtyLabels = []string{"family practice"}

	res := (&TaxonomyCheck{}).Run(context.Background(), &Context{Org: fixtureOrg(), Snapshot: snap})
	if res.Status != StatusPass {
		t.Errorf("synonym should pass, got %s", res.Status)
	}
}

func makeProviders(n int) []registry.ProviderRecord {
	out := make([]registry.ProviderRecord, n)
	for i := range out {
		out[i] = registry.ProviderRecord{
			NPI:      fmt.Sprintf("1%09d", i),
			NameFull: fmt.Sprintf("Provider Number%d", i),
		}
	}
	return out
}

func TestRosterCountCheckExact(t *testing.T) {
	snap := fixtureSnapshot()
	snap.ProviderCount = 100

	res := (&RosterCountCheck{}).Run(context.Background(), &Context{
		Snapshot: snap, Providers: makeProviders(100),
	})
	if res.Status != StatusPass || res.Score != 100 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
}

func TestRosterCountCheckHighVariance(t *testing.T) {
	snap := fixtureSnapshot()
	snap.ProviderCount = 100

	res := (&RosterCountCheck{}).Run(context.Background(), &Context{
		Snapshot: snap, Providers: makeProviders(65),
	})
	// 35/100 = 35% variance: fail with score max(20, 80-35) = 45.
	if res.Status != StatusFail {
		t.Errorf("status = %s", res.Status)
	}
	if res.Score != 45 {
		t.Errorf("score = %d, want 45", res.Score)
	}
	if res.Evidence["direction"] != "more_on_site" {
		t.Errorf("direction = %v", res.Evidence["direction"])
	}
}

func TestRosterCountCheckWarnBand(t *testing.T) {
	snap := fixtureSnapshot()
	snap.ProviderCount = 80

	res := (&RosterCountCheck{}).Run(context.Background(), &Context{
		Snapshot: snap, Providers: makeProviders(100),
	})
	// 20% variance: warn at fixed 60.
	if res.Status != StatusWarn || res.Score != 60 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
}

func TestRosterCountCheckInconclusive(t *testing.T) {
	res := (&RosterCountCheck{}).Run(context.Background(), &Context{
		Snapshot: fixtureSnapshot(),
	})
	if res.Status != StatusInconclusive {
		t.Errorf("no roster data must be inconclusive, got %s", res.Status)
	}
}

func TestRosterNameCheckAllMatched(t *testing.T) {
	providers := []registry.ProviderRecord{
		{NameFull: "Maria Gonzalez"},
		{NameFull: "David Chen"},
	}
	res := (&RosterNameCheck{}).Run(context.Background(), &Context{
		Snapshot: fixtureSnapshot(), Providers: providers,
	})
	if res.Status != StatusPass || res.Score != 100 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
}

func TestRosterNameCheckDiscrepancies(t *testing.T) {
	providers := []registry.ProviderRecord{
		{NameFull: "Maria Gonzalez"},
		{NameFull: "Robert Nguyen"},
		{NameFull: "Alice Johnson"},
		{NameFull: "Peter Okafor"},
	}
	res := (&RosterNameCheck{}).Run(context.Background(), &Context{
		Snapshot: fixtureSnapshot(), Providers: providers,
	})
	// David Chen unmatched on site; three registry-only names: 4
	// discrepancies, fail, score 100-40=60.
	if res.Status != StatusFail {
		t.Errorf("status = %s", res.Status)
	}
	if res.Score != 60 {
		t.Errorf("score = %d, want 60", res.Score)
	}
}

func TestRosterNameCheckFewDiscrepanciesWarn(t *testing.T) {
	providers := []registry.ProviderRecord{
		{NameFull: "Maria Gonzalez"},
		{NameFull: "David Chen"},
		{NameFull: "Robert Nguyen"},
	}
	res := (&RosterNameCheck{}).Run(context.Background(), &Context{
		Snapshot: fixtureSnapshot(), Providers: providers,
	})
	if res.Status != StatusWarn || res.Score != 90 {
		t.Errorf("status=%s score=%d", res.Status, res.Score)
	}
}

func TestRegistryForTier(t *testing.T) {
	reg := NewRegistry()
	free := reg.ForTier(TierFree)
	if len(free) != 2 {
		t.Errorf("free tier should see 2 checks, got %d", len(free))
	}
	report := reg.ForTier(TierReport)
	if len(report) != 4 {
		t.Errorf("report tier should see 4 checks, got %d", len(report))
	}
	shield := reg.ForTier(TierShield)
	if len(shield) != 5 {
		t.Errorf("shield tier should see 5 checks, got %d", len(shield))
	}
}

func TestValidTier(t *testing.T) {
	if !ValidTier(TierFree) || !ValidTier(TierShield) {
		t.Error("known tiers must validate")
	}
	if ValidTier(Tier("platinum")) {
		t.Error("unknown tier must not validate")
	}
}
