// Package matching provides the normalization and fuzzy-equality primitives
// used by the compliance checks: street addresses, phone numbers, person
// names and specialty labels. All functions are pure and total; malformed
// input yields an empty or best-effort result, never a panic.
package matching

import (
	"regexp"
	"strings"
)

// addressAbbrevs maps common USPS-style abbreviations to their expanded
// forms. Applied word-by-word after punctuation stripping.
var addressAbbrevs = map[string]string{
	"ste": "suite", "apt": "apartment", "blvd": "boulevard",
	"ave": "avenue", "st": "street", "dr": "drive", "rd": "road",
	"ln": "lane", "ct": "court", "pl": "place", "pkwy": "parkway",
	"hwy": "highway", "cir": "circle", "n": "north", "s": "south",
	"e": "east", "w": "west", "fl": "floor", "flr": "floor",
	"bldg": "building",
}

var (
	addrPunct  = regexp.MustCompile(`[.,#]`)
	multiSpace = regexp.MustCompile(`\s+`)
	zip5Re     = regexp.MustCompile(`\b(\d{5})\b`)
	suiteRe    = regexp.MustCompile(`(?i)\b(suite|apartment|unit|floor|building|room|#)\s*\w*`)
	nonDigitRe = regexp.MustCompile(`\D`)
	credRe     = regexp.MustCompile(`(?i)\b(md|do|phd|np|pa|rn|lpn|lcsw|dds|dpm|od|dc)\b`)
	honorificRe = regexp.MustCompile(`(?i)\b(dr|mr|mrs|ms|jr|sr|ii|iii|iv)\b\.?`)
	namePunct  = regexp.MustCompile(`[.,\-']`)
)

// NormalizeAddress joins the address components, lowercases, strips
// punctuation, expands abbreviations and collapses whitespace so that two
// differently-formatted renderings of the same address compare equal.
func NormalizeAddress(line1, city, state, zip string) string {
	if line1 == "" {
		return ""
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{line1, city, state, zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	addr := strings.ToLower(strings.Join(parts, ", "))

	addr = addrPunct.ReplaceAllString(addr, " ")
	addr = strings.TrimSpace(multiSpace.ReplaceAllString(addr, " "))

	words := strings.Split(addr, " ")
	for i, w := range words {
		if exp, ok := addressAbbrevs[w]; ok {
			words[i] = exp
		}
	}
	return strings.Join(words, " ")
}

// AddressesMatch compares two normalized addresses with tolerance for
// suite/unit differences and minor typos. Symmetric in its arguments.
func AddressesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	// Compare zip5 first, cheap rejection filter.
	zipA := extractZip5(a)
	zipB := extractZip5(b)
	if zipA != "" && zipB != "" && zipA != zipB {
		return false
	}

	coreA := stripSuite(a)
	coreB := stripSuite(b)
	if coreA == coreB {
		return true
	}

	return Levenshtein(coreA, coreB) <= 3
}

func extractZip5(addr string) string {
	m := zip5Re.FindStringSubmatch(addr)
	if m == nil {
		return ""
	}
	return m[1]
}

func stripSuite(addr string) string {
	s := suiteRe.ReplaceAllString(addr, "")
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// NormalizePhone reduces a phone number to bare digits, stripping the US
// country code from 11-digit numbers.
func NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return digits[1:]
	}
	return digits
}

// PhonesMatch reports whether two phone numbers have the same digits.
func PhonesMatch(a, b string) bool {
	na := NormalizePhone(a)
	nb := NormalizePhone(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// NormalizeName strips credential suffixes, honorifics and punctuation from
// a person's name and lowercases it.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = credRe.ReplaceAllString(s, "")
	s = honorificRe.ReplaceAllString(s, "")
	s = namePunct.ReplaceAllString(s, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// FuzzyNameMatch reports whether two normalized names plausibly refer to the
// same person: surnames equal (or within edit distance 1) and first initials
// equal. Deliberately loose because provider names are formatted
// inconsistently across sources (middle initials, nicknames).
func FuzzyNameMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	partsA := strings.Fields(a)
	partsB := strings.Fields(b)
	if len(partsA) == 0 || len(partsB) == 0 {
		return false
	}

	lastA := partsA[len(partsA)-1]
	lastB := partsB[len(partsB)-1]
	if lastA != lastB && Levenshtein(lastA, lastB) > 1 {
		return false
	}

	return partsA[0][0] == partsB[0][0]
}

// Levenshtein computes the classic edit distance between two strings.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	m, n := len(ra), len(rb)

	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		cur[0] = i
		for j := 1; j <= n; j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
			} else {
				cur[j] = 1 + min3(prev[j], cur[j-1], prev[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
