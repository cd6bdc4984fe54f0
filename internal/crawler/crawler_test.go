package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
<title>Hill Country Family Medicine | Primary Care in Austin</title>
<meta name="description" content="Family medicine and pediatrics clinic">
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "MedicalBusiness",
  "name": "Hill Country Family Medicine",
  "telephone": "(512) 555-0100",
  "address": {
    "streetAddress": "4501 Ranch Road 620",
    "addressLocality": "Austin",
    "addressRegion": "TX",
    "postalCode": "78732-1234"
  },
  "employee": [
    {"@type": "Physician", "name": "Maria Gonzalez"},
    {"@type": "Physician", "givenName": "David", "familyName": "Chen"}
  ]
}
</script>
</head>
<body>
<p>Welcome to our clinic. We provide family medicine, pediatrics and
behavioral health services to the Austin community. Our providers have
decades of combined experience caring for patients of all ages.</p>
<p>Our team includes Sarah Whitfield, NP and James Porter, MD.</p>
<p>Questions about HIPAA? Read our privacy policy for details.</p>
<p>Our chat feature is an AI-powered tool and may produce automated responses.</p>
<a href="tel:+15125550100">Call us</a>
<p>Read More</p>
</body>
</html>`

func TestExtractAddressJSONLD(t *testing.T) {
	addr := extractAddress(fixtureHTML, StripHTML(fixtureHTML))
	if addr.Line1 != "4501 Ranch Road 620" {
		t.Errorf("line1 = %q", addr.Line1)
	}
	if addr.City != "Austin" || addr.State != "TX" {
		t.Errorf("city/state = %q/%q", addr.City, addr.State)
	}
	if addr.Zip != "78732" {
		t.Errorf("zip should be truncated to 5 digits, got %q", addr.Zip)
	}
}

func TestExtractAddressMicrodata(t *testing.T) {
	html := `<div itemprop="streetAddress">900 Congress Ave</div>
<span itemprop="addressLocality">Austin</span>
<span itemprop="addressRegion">TX</span>
<span itemprop="postalCode">78701</span>`
	addr := extractAddress(html, StripHTML(html))
	if addr.Line1 != "900 Congress Ave" || addr.Zip != "78701" {
		t.Errorf("unexpected address: %+v", addr)
	}
}

func TestExtractAddressTextPattern(t *testing.T) {
	html := `<p>Visit us at 1200 Oak Lane, Dallas, TX 75201 today.</p>`
	addr := extractAddress(html, StripHTML(html))
	if addr.Line1 == "" || addr.State != "TX" || addr.Zip != "75201" {
		t.Errorf("unexpected address: %+v", addr)
	}
}

func TestExtractAddressEmpty(t *testing.T) {
	html := `<p>No location information here.</p>`
	addr := extractAddress(html, StripHTML(html))
	if addr.Line1 != "" {
		t.Errorf("expected empty address, got %+v", addr)
	}
}

func TestExtractPhoneTelLink(t *testing.T) {
	got := extractPhone(fixtureHTML, StripHTML(fixtureHTML))
	if got != "(512) 555-0100" {
		t.Errorf("phone = %q", got)
	}
}

func TestExtractPhoneLabelledText(t *testing.T) {
	html := `<p>Phone: 512-555-0199</p>`
	got := extractPhone(html, StripHTML(html))
	if got != "(512) 555-0199" {
		t.Errorf("phone = %q", got)
	}
}

func TestExtractSpecialties(t *testing.T) {
	got := extractSpecialties(fixtureHTML, StripHTML(fixtureHTML))
	want := map[string]bool{"family medicine": true, "pediatrics": true, "behavioral health": true}
	for _, s := range got {
		delete(want, s)
	}
	if len(want) != 0 {
		t.Errorf("missing specialties: %v (got %v)", want, got)
	}
}

func TestExtractProviders(t *testing.T) {
	text := StripHTML(fixtureHTML)
	got := extractProviders(fixtureHTML, text)

	wantNames := []string{"Maria Gonzalez", "David Chen", "Sarah Whitfield", "James Porter"}
	for _, w := range wantNames {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing provider %q in %v", w, got)
		}
	}

	for _, g := range got {
		if strings.Contains(strings.ToLower(g), "read more") {
			t.Errorf("non-name %q passed the filter", g)
		}
	}
}

func TestLooksLikeProviderName(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"Jane Smith", true},
		{"Read More", false},
		{"Our Team", false},
		{"x", false},
		{"lowercase name", false},
	}
	for _, c := range cases {
		if got := looksLikeProviderName(c.in); got != c.want {
			t.Errorf("looksLikeProviderName(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStripHTMLDropsScripts(t *testing.T) {
	html := `<p>visible</p><script>var hidden = 1;</script><style>.x{}</style>`
	got := StripHTML(html)
	if got != "visible" {
		t.Errorf("StripHTML = %q", got)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	if a != b || len(a) != 16 {
		t.Errorf("hash not stable 16-char: %q vs %q", a, b)
	}
	if ContentHash("other") == a {
		t.Error("different content must hash differently")
	}
}

func TestExtractCategories(t *testing.T) {
	text := StripHTML(fixtureHTML)
	cats := ExtractCategories(fixtureHTML, text)

	if _, ok := cats["ai_disclosure"]; !ok {
		t.Error("expected ai_disclosure category")
	}
	if _, ok := cats["privacy_policy"]; !ok {
		t.Error("expected privacy_policy category")
	}
	if _, ok := cats["hipaa_references"]; !ok {
		t.Error("expected hipaa_references category")
	}
	for name, c := range cats {
		if len(c.Hash) != 16 {
			t.Errorf("category %s hash length %d", name, len(c.Hash))
		}
	}
}

func TestLooksLikeJSShell(t *testing.T) {
	shell := `<html><body><div id="root"></div></body></html>`
	if !looksLikeJSShell(shell, StripHTML(shell), 200) {
		t.Error("SPA skeleton should be detected")
	}
	if looksLikeJSShell(fixtureHTML, StripHTML(fixtureHTML), 100) {
		t.Error("rendered page misdetected as shell")
	}
}

func TestCrawlSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixtureHTML))
	}))
	defer srv.Close()

	c := New(Config{MinTextLength: 50})
	snap, err := c.Crawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if snap.AddrLine1 == "" || snap.Phone == "" || snap.ProviderCount == 0 {
		t.Errorf("incomplete snapshot: %+v", snap)
	}
	if len(snap.ContentHash) != 16 {
		t.Errorf("content hash = %q", snap.ContentHash)
	}
}

func TestCrawl404ReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(Config{})
	snap, err := c.Crawl(context.Background(), srv.URL)
	if snap != nil {
		t.Error("expected nil snapshot on 404")
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.Kind != FetchErrStatus {
		t.Errorf("expected FetchErrStatus, got %v", err)
	}
}

func TestCrawlShortBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c := New(Config{})
	_, err := c.Crawl(context.Background(), srv.URL)
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.Kind != FetchErrEmptyBody {
		t.Errorf("expected FetchErrEmptyBody, got %v", err)
	}
}

func TestCrawlRenderFallback(t *testing.T) {
	rendered := strings.Replace(fixtureHTML, "Welcome", "Rendered welcome", 1)
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("render service called with %s", r.Method)
		}
		w.Write([]byte(rendered))
	}))
	defer render.Close()

	shell := `<html><body><div id="root"></div>` + strings.Repeat("<span></span>", 600) + `</body></html>`
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(shell))
	}))
	defer site.Close()

	c := New(Config{RenderEndpoint: render.URL, MinTextLength: 50})
	snap, err := c.Crawl(context.Background(), site.URL)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if snap.Strategy != "rendered" {
		t.Errorf("strategy = %q, want rendered", snap.Strategy)
	}
	if snap.AddrLine1 == "" {
		t.Error("rendered content not extracted")
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := NormalizeURL("example.com"); got != "https://example.com" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeURL("http://example.com"); got != "http://example.com" {
		t.Errorf("got %q", got)
	}
}
