package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// CategoryContent is the per-compliance-category slice of a page: a stable
// hash of the matched content plus a bounded excerpt for evidence.
type CategoryContent struct {
	Hash    string `json:"hash"`
	Excerpt string `json:"excerpt"`
}

const maxExcerptLen = 2000

// categoryPatterns locate compliance-relevant content per category. A page
// where a pattern finds nothing simply has no entry for that category, which
// downstream drift comparison treats as "empty".
var categoryPatterns = map[string]*regexp.Regexp{
	"ai_disclosure":    regexp.MustCompile(`(?i)[^.!?]*\b(artificial intelligence|ai[ -](?:powered|assisted|generated|chatbot|tool)|automated (?:system|response|chat))\b[^.!?]*[.!?]?`),
	"privacy_policy":   regexp.MustCompile(`(?i)[^.!?]*\bprivacy (?:policy|notice|practices)\b[^.!?]*[.!?]?`),
	"hipaa_references": regexp.MustCompile(`(?i)[^.!?]*\bhipaa\b[^.!?]*[.!?]?`),
	"cookie_consent":   regexp.MustCompile(`(?i)[^.!?]*\b(cookie (?:policy|consent|settings)|we use cookies)\b[^.!?]*[.!?]?`),
	"data_collection_forms": regexp.MustCompile(`(?i)<form\b[^>]*>`),
	"third_party_scripts":   regexp.MustCompile(`(?i)<script[^>]+src\s*=\s*["']https?://[^"']+["']`),
}

// ContentHash returns the first 16 hex characters of the SHA-256 digest of
// the input, the stable fingerprint used for drift comparison.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// ExtractCategories derives the per-category content map used to seed
// baselines and to compare against them on later observations.
func ExtractCategories(htmlSrc, text string) map[string]CategoryContent {
	out := make(map[string]CategoryContent)
	for category, re := range categoryPatterns {
		var matches []string
		source := text
		if strings.HasPrefix(category, "third_party") || strings.HasSuffix(category, "_forms") {
			source = htmlSrc
		}
		for _, m := range re.FindAllString(source, 20) {
			matches = append(matches, strings.TrimSpace(m))
		}
		if len(matches) == 0 {
			continue
		}
		content := strings.Join(matches, "\n")
		excerpt := content
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen]
		}
		out[category] = CategoryContent{
			Hash:    ContentHash(content),
			Excerpt: excerpt,
		}
	}
	return out
}
