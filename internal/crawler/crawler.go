// Package crawler fetches provider websites and derives structured
// snapshots for the compliance checks and the drift detector. Fetching is
// two-tier: a fast direct HTTP GET, with an optional fallback to an
// external headless-render service for script-rendered pages.
package crawler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Snapshot holds the facts extracted from one crawl of one URL. Immutable
// once produced; a snapshot with only some fields populated is valid and
// checks treat missing fields as inconclusive.
type Snapshot struct {
	URL             string                     `json:"url"`
	FetchedAt       time.Time                  `json:"fetched_at"`
	AddrLine1       string                     `json:"addr_line1"`
	AddrLine2       string                     `json:"addr_line2"`
	AddrCity        string                     `json:"addr_city"`
	AddrState       string                     `json:"addr_state"`
	AddrZip         string                     `json:"addr_zip"`
	Phone           string                     `json:"phone"`
	SpecialtyLabels []string                   `json:"specialty_labels"`
	ProviderNames   []string                   `json:"provider_names"`
	ProviderCount   int                        `json:"provider_count"`
	ContentHash     string                     `json:"content_hash"`
	Categories      map[string]CategoryContent `json:"categories,omitempty"`
	Strategy        string                     `json:"strategy"`
}

// Config holds the crawler configuration.
type Config struct {
	FetchTimeout   time.Duration
	RenderTimeout  time.Duration
	RenderEndpoint string
	RenderAPIKey   string
	UserAgent      string
	MinTextLength  int
	MaxBodyBytes   int64
	RenderRate     rate.Limit
	RenderBurst    int
}

// Crawler fetches pages and produces snapshots.
type Crawler struct {
	cfg           Config
	client        *http.Client
	renderLimiter *rate.Limiter
}

// New initializes a Crawler. Zero config fields get workable defaults.
func New(cfg Config) *Crawler {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.RenderTimeout == 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	}
	if cfg.MinTextLength == 0 {
		cfg.MinTextLength = 200
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	c := &Crawler{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RenderTimeout,
		},
	}
	if cfg.RenderRate > 0 {
		c.renderLimiter = rate.NewLimiter(cfg.RenderRate, cfg.RenderBurst)
	}
	return c
}

// NormalizeURL prefixes https:// when the scheme is missing.
func NormalizeURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

// Crawl fetches the URL and extracts a snapshot. Any network, timeout or
// parse failure returns a nil snapshot and a *FetchError describing the
// failure class; it never panics. Extraction steps are independent and each
// may legitimately find nothing.
func (c *Crawler) Crawl(ctx context.Context, url string) (*Snapshot, error) {
	fetchURL := NormalizeURL(url)

	page, ferr := c.fetchPage(ctx, fetchURL)
	if ferr != nil {
		logrus.WithFields(logrus.Fields{
			"url":  fetchURL,
			"kind": ferr.Kind,
		}).Warn("Crawl failed")
		return nil, ferr
	}

	address := extractAddress(page.HTML, page.Text)
	providers := extractProviders(page.HTML, page.Text)

	snap := &Snapshot{
		URL:             fetchURL,
		FetchedAt:       time.Now().UTC(),
		AddrLine1:       address.Line1,
		AddrLine2:       address.Line2,
		AddrCity:        address.City,
		AddrState:       address.State,
		AddrZip:         address.Zip,
		Phone:           extractPhone(page.HTML, page.Text),
		SpecialtyLabels: extractSpecialties(page.HTML, page.Text),
		ProviderNames:   providers,
		ProviderCount:   len(providers),
		ContentHash:     ContentHash(page.HTML),
		Categories:      ExtractCategories(page.HTML, page.Text),
		Strategy:        page.Strategy,
	}

	logrus.WithFields(logrus.Fields{
		"url":       fetchURL,
		"strategy":  page.Strategy,
		"providers": snap.ProviderCount,
		"hash":      snap.ContentHash,
	}).Debug("Crawl complete")

	return snap, nil
}
