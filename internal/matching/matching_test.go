package matching

import "testing"

func TestNormalizeAddressExpandsAbbreviations(t *testing.T) {
	got := NormalizeAddress("123 Main St, Ste 4", "Austin", "TX", "78701")
	want := "123 main street suite 4 austin tx 78701"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Punctuation variance collapses to the same canonical form.
	got2 := NormalizeAddress("123 Main St. Ste. 4", "Austin", "TX", "78701")
	if got != got2 {
		t.Errorf("punctuation variance not normalized: %q vs %q", got, got2)
	}
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	once := NormalizeAddress("456 N Oak Blvd", "Dallas", "TX", "75201")
	twice := NormalizeAddress(once, "", "", "")
	if once != twice {
		t.Errorf("not idempotent: %q != %q", once, twice)
	}
}

func TestNormalizeAddressEmptyLine1(t *testing.T) {
	if got := NormalizeAddress("", "Austin", "TX", "78701"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestAddressesMatchSymmetric(t *testing.T) {
	a := NormalizeAddress("123 Main St", "Austin", "TX", "78701")
	b := NormalizeAddress("123 Main Street, Suite 200", "Austin", "TX", "78701")
	if AddressesMatch(a, b) != AddressesMatch(b, a) {
		t.Error("AddressesMatch is not symmetric")
	}
	if !AddressesMatch(a, b) {
		t.Errorf("expected suite variance to match: %q vs %q", a, b)
	}
}

func TestAddressesMatchZipRejection(t *testing.T) {
	a := NormalizeAddress("123 Main St", "Austin", "TX", "78701")
	b := NormalizeAddress("123 Main St", "Austin", "TX", "78702")
	if AddressesMatch(a, b) {
		t.Error("different zip5 must not match")
	}
}

func TestAddressesMatchTypoTolerance(t *testing.T) {
	a := NormalizeAddress("123 Mian St", "Austin", "TX", "78701")
	b := NormalizeAddress("123 Main St", "Austin", "TX", "78701")
	if !AddressesMatch(a, b) {
		t.Error("expected edit-distance tolerance for minor typo")
	}
}

func TestAddressesMatchEmpty(t *testing.T) {
	if AddressesMatch("", "123 main street") {
		t.Error("empty address must not match")
	}
}

func TestPhonesMatch(t *testing.T) {
	if !PhonesMatch("+1 512-555-0100", "(512) 555-0100") {
		t.Error("formatting variance should match")
	}
	if PhonesMatch("512-555-0100", "512-555-0101") {
		t.Error("different numbers must not match")
	}
	if PhonesMatch("", "512-555-0100") {
		t.Error("empty phone must not match")
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("1-512-555-0100"); got != "5125550100" {
		t.Errorf("country code not stripped: %q", got)
	}
	if got := NormalizePhone("(512) 555.0100"); got != "5125550100" {
		t.Errorf("unexpected normalization: %q", got)
	}
}

func TestFuzzyNameMatch(t *testing.T) {
	a := NormalizeName("Dr. Jane A. Smith, MD")
	b := NormalizeName("jane smith")
	if !FuzzyNameMatch(a, b) {
		t.Errorf("expected match for %q vs %q", a, b)
	}

	c := NormalizeName("Jane Smith")
	d := NormalizeName("John Smith")
	if FuzzyNameMatch(c, d) {
		t.Error("different first initials must not match")
	}
}

func TestFuzzyNameMatchSurnameTypo(t *testing.T) {
	if !FuzzyNameMatch("jane smith", "jane smyth") {
		t.Error("surname within edit distance 1 should match")
	}
	if FuzzyNameMatch("jane smith", "jane jones") {
		t.Error("unrelated surnames must not match")
	}
}

func TestNormalizeNameStripsCredentials(t *testing.T) {
	got := NormalizeName("Dr. Robert O'Brien Jr., DO, PhD")
	if got != "robert o brien" {
		t.Errorf("unexpected normalization: %q", got)
	}
}

func TestSpecialtyMatchesDirect(t *testing.T) {
	if !SpecialtyMatches("Internal Medicine", []string{"internal medicine"}, nil) {
		t.Error("direct containment should match")
	}
}

func TestSpecialtyMatchesSynonym(t *testing.T) {
	if !SpecialtyMatches("Family Medicine", []string{"family practice"}, nil) {
		t.Error("synonym should match")
	}
}

func TestSpecialtyMatchesPrimaryCareUmbrella(t *testing.T) {
	if !SpecialtyMatches("Orthopedic Surgery", []string{"primary care clinic"}, nil) {
		t.Error("primary care labels are never flaggable")
	}
}

func TestSpecialtyMatchesNoMatch(t *testing.T) {
	if SpecialtyMatches("Dermatology", []string{"cardiology"}, nil) {
		t.Error("unrelated specialties must not match")
	}
}

func TestSpecialtyMatchesCustomTable(t *testing.T) {
	table := SynonymTable{"sleep medicine": {"sleep clinic"}}
	if !SpecialtyMatches("Sleep Medicine", []string{"Sleep Clinic"}, table) {
		t.Error("injected table should be honored")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"street", "street", 0},
		{"suite", "suit", 1},
	}
	for _, c := range cases {
		if got := Levenshtein(c.a, c.b); got != c.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
