package crawler

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Address holds the components extracted from a page. Any field may be
// empty; a missing address is a valid extraction outcome.
type Address struct {
	Line1 string
	Line2 string
	City  string
	State string
	Zip   string
}

var (
	jsonLdRe   = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)
	streetPropRe = regexp.MustCompile(`(?i)itemprop\s*=\s*["']streetAddress["'][^>]*>([^<]+)`)
	cityPropRe   = regexp.MustCompile(`(?i)itemprop\s*=\s*["']addressLocality["'][^>]*>([^<]+)`)
	statePropRe  = regexp.MustCompile(`(?i)itemprop\s*=\s*["']addressRegion["'][^>]*>([^<]+)`)
	zipPropRe    = regexp.MustCompile(`(?i)itemprop\s*=\s*["']postalCode["'][^>]*>([^<]+)`)

	// "123 Main St, Suite 100, Austin, TX 78701"
	addrTextRe = regexp.MustCompile(`(\d{1,5}\s+[A-Za-z0-9\s.,#\-]+?)[\s,]+([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)\s*,\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)`)
	// Looser Texas-biased fallback.
	addrTxRe = regexp.MustCompile(`(?i)(\d{1,5}\s+[A-Za-z0-9\s.,#\-]{5,40})\s*[\n,]\s*([A-Za-z\s]+),?\s*TX\s+(\d{5})`)

	telLinkRe    = regexp.MustCompile(`(?i)href\s*=\s*["']tel:([^"']+)["']`)
	telPropRe    = regexp.MustCompile(`(?i)itemprop\s*=\s*["']telephone["'][^>]*>([^<]+)`)
	telJsonLdRe  = regexp.MustCompile(`(?i)"telephone"\s*:\s*"([^"]+)"`)
	telLabelRe   = regexp.MustCompile(`(?i)(?:phone|tel|call|office|main)\s*[:.]?\s*\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}`)
	telAnyRe     = regexp.MustCompile(`\(?(\d{3})\)?[\s.\-](\d{3})[\s.\-](\d{4})`)
	namePropRe   = regexp.MustCompile(`(?i)itemprop\s*=\s*["']name["'][^>]*>([^<]+)`)
	credNameRe   = regexp.MustCompile(`(?:Dr\.?\s+)?([A-Z][a-z]+(?:\s+[A-Z]\.?)?\s+[A-Z][a-z]{2,})(?:\s*,\s*(?:MD|DO|NP|PA|PA-C|APRN|ARNP|DNP|PhD|DPM|DC|DDS|DMD|OD|RN|LPC|LCSW|LMFT))`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// healthcareSpecialties is the fixed vocabulary matched against page text.
var healthcareSpecialties = []string{
	"family medicine", "family practice", "internal medicine", "pediatrics",
	"obstetrics", "gynecology", "ob/gyn", "obgyn", "psychiatry", "psychology",
	"dermatology", "cardiology", "orthopedics", "neurology", "oncology",
	"gastroenterology", "endocrinology", "pulmonology", "nephrology",
	"urology", "ophthalmology", "optometry", "dentistry", "dental",
	"chiropractic", "physical therapy", "occupational therapy",
	"mental health", "behavioral health", "counseling", "therapy",
	"primary care", "urgent care", "emergency medicine",
	"nurse practitioner", "physician assistant", "wellness",
	"pain management", "sports medicine", "allergy", "immunology",
	"rheumatology", "hematology", "infectious disease",
	"plastic surgery", "general surgery", "vascular surgery",
	"podiatry", "audiology", "speech therapy",
	"acupuncture", "naturopathic", "functional medicine",
}

// extractAddress tries the extraction strategies in priority order:
// JSON-LD, microdata, shaped text pattern, TX-biased fallback. First
// success wins.
func extractAddress(htmlSrc, text string) Address {
	if a, ok := addressFromJSONLD(htmlSrc); ok {
		return a
	}
	if a, ok := addressFromMicrodata(htmlSrc); ok {
		return a
	}
	if m := addrTextRe.FindStringSubmatch(text); m != nil {
		streetParts := strings.Split(m[1], ",")
		a := Address{
			Line1: strings.TrimSpace(streetParts[0]),
			City:  m[2],
			State: m[3],
			Zip:   zip5(m[4]),
		}
		if len(streetParts) > 1 {
			a.Line2 = strings.TrimSpace(streetParts[1])
		}
		return a
	}
	if m := addrTxRe.FindStringSubmatch(text); m != nil {
		return Address{
			Line1: strings.TrimSpace(m[1]),
			City:  strings.TrimSpace(m[2]),
			State: "TX",
			Zip:   m[3],
		}
	}
	return Address{}
}

func addressFromJSONLD(htmlSrc string) (Address, bool) {
	for _, block := range jsonLdRe.FindAllStringSubmatch(htmlSrc, -1) {
		var data map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(block[1])), &data); err != nil {
			continue
		}
		addr, _ := data["address"].(map[string]any)
		if addr == nil {
			if loc, ok := data["location"].(map[string]any); ok {
				addr, _ = loc["address"].(map[string]any)
			}
		}
		if addr == nil {
			continue
		}
		a := Address{
			Line1: jsonString(addr, "streetAddress"),
			City:  jsonString(addr, "addressLocality"),
			State: jsonString(addr, "addressRegion"),
			Zip:   zip5(jsonString(addr, "postalCode")),
		}
		if a.Line1 != "" {
			return a, true
		}
	}
	return Address{}, false
}

func addressFromMicrodata(htmlSrc string) (Address, bool) {
	street := firstGroup(streetPropRe, htmlSrc)
	if street == "" {
		return Address{}, false
	}
	return Address{
		Line1: street,
		City:  firstGroup(cityPropRe, htmlSrc),
		State: firstGroup(statePropRe, htmlSrc),
		Zip:   zip5(firstGroup(zipPropRe, htmlSrc)),
	}, true
}

// extractPhone tries tel: links, microdata, JSON-LD, labelled text patterns
// and finally any phone-shaped substring.
func extractPhone(htmlSrc, text string) string {
	if m := telLinkRe.FindStringSubmatch(htmlSrc); m != nil {
		return cleanPhone(m[1])
	}
	if p := firstGroup(telPropRe, htmlSrc); p != "" {
		return cleanPhone(p)
	}
	if m := telJsonLdRe.FindStringSubmatch(htmlSrc); m != nil {
		return cleanPhone(m[1])
	}
	if m := telLabelRe.FindString(text); m != "" {
		digits := nonDigitRe.ReplaceAllString(m, "")
		if len(digits) >= 10 {
			return formatPhone(digits[len(digits)-10:])
		}
	}
	if m := telAnyRe.FindStringSubmatch(text); m != nil {
		return formatPhone(m[1] + m[2] + m[3])
	}
	return ""
}

func cleanPhone(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return formatPhone(digits)
	}
	return strings.TrimSpace(raw)
}

func formatPhone(digits string) string {
	return "(" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:]
}

// extractSpecialties matches the fixed vocabulary against body text plus the
// page title and meta description.
func extractSpecialties(htmlSrc, text string) []string {
	lowerText := strings.ToLower(text)
	meta := extractMeta(htmlSrc)
	metaText := strings.ToLower(meta.Title + " " + meta.Description)

	found := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, specialty := range healthcareSpecialties {
		if seen[specialty] {
			continue
		}
		if strings.Contains(lowerText, specialty) || strings.Contains(metaText, specialty) {
			found = append(found, specialty)
			seen[specialty] = true
		}
	}
	return found
}

const maxProviderNames = 50

// extractProviders collects clinician names from microdata, JSON-LD
// person/physician objects and credential-suffix text patterns, deduplicated
// and capped to bound payload size.
func extractProviders(htmlSrc, text string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, m := range namePropRe.FindAllStringSubmatch(htmlSrc, -1) {
		if looksLikeProviderName(m[1]) {
			add(m[1])
		}
	}

	for _, block := range jsonLdRe.FindAllStringSubmatch(htmlSrc, -1) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(block[1])), &data); err != nil {
			continue
		}
		namesFromJSONLD(data, add)
	}

	for _, m := range credNameRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) >= 5 && len(name) <= 40 {
			add(name)
		}
	}

	if len(names) > maxProviderNames {
		names = names[:maxProviderNames]
	}
	return names
}

// looksLikeProviderName rejects obvious non-names picked up from navigation
// and boilerplate.
func looksLikeProviderName(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 4 || len(text) > 50 {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 2 {
		return false
	}
	if words[0][0] < 'A' || words[0][0] > 'Z' {
		return false
	}
	lower := strings.ToLower(text)
	for _, e := range []string{
		"read more", "learn more", "click here", "view all",
		"our team", "our providers", "meet our", "contact us",
	} {
		if strings.Contains(lower, e) {
			return false
		}
	}
	return true
}

func namesFromJSONLD(data any, add func(string)) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			namesFromJSONLD(item, add)
		}
	case map[string]any:
		switch v["@type"] {
		case "Physician", "Person", "MedicalBusiness":
			name := jsonString(v, "name")
			if name == "" {
				name = strings.TrimSpace(jsonString(v, "givenName") + " " + jsonString(v, "familyName"))
			}
			if name != "" && looksLikeProviderName(name) {
				add(name)
			}
		}
		for _, key := range []string{"employee", "member", "physicians"} {
			if nested, ok := v[key]; ok {
				namesFromJSONLD(nested, add)
			}
		}
	}
}

func jsonString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func zip5(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}
