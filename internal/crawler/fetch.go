package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// FetchErrorKind classifies why a fetch step failed so callers can branch on
// the failure class instead of on message text.
type FetchErrorKind string

const (
	FetchErrTimeout   FetchErrorKind = "timeout"
	FetchErrStatus    FetchErrorKind = "non_2xx"
	FetchErrEmptyBody FetchErrorKind = "empty_body"
	FetchErrParse     FetchErrorKind = "parse_failure"
	FetchErrTransport FetchErrorKind = "transport"
)

// FetchError is the enumerated failure returned by every fetch step.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// fetchResult is the outcome of one fetch strategy.
type fetchResult struct {
	HTML       string
	Text       string
	StatusCode int
	FinalURL   string
	Strategy   string // "direct" or "rendered"
}

// spaIndicators mark HTML that is a JS-framework shell needing a real
// browser to render.
var spaIndicators = []string{
	`<div id="root"></div>`,
	`<div id="root"> </div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	`<noscript>you need to enable javascript`,
	`<noscript>please enable javascript`,
	`loading...</div>`,
	`__next_data__`,
}

// looksLikeJSShell reports whether the fetched HTML is an unrendered SPA
// skeleton: indicator markup plus almost no readable text.
func looksLikeJSShell(html, text string, minTextLength int) bool {
	lower := strings.ToLower(html)
	hits := 0
	for _, ind := range spaIndicators {
		if strings.Contains(lower, ind) {
			hits++
		}
	}
	if hits >= 1 && len(text) < minTextLength {
		return true
	}
	if len(html) > 5000 && len(text) < 100 {
		return true
	}
	return false
}

// directFetch performs the fast first-tier fetch with browser-like headers.
func (c *Crawler) directFetch(ctx context.Context, url string) (*fetchResult, *FetchError) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchErrParse, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := FetchErrTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FetchErrTimeout
		}
		return nil, &FetchError{Kind: kind, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Kind: FetchErrStatus, URL: url,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: FetchErrTransport, URL: url, Err: err}
	}
	if len(body) < 100 {
		return nil, &FetchError{Kind: FetchErrEmptyBody, URL: url,
			Err: fmt.Errorf("body %d bytes", len(body))}
	}

	html := string(body)
	return &fetchResult{
		HTML:       html,
		Text:       StripHTML(html),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Strategy:   "direct",
	}, nil
}

// renderFetch asks the external headless-render service for fully rendered
// HTML. The service is a black box invoked over HTTP; when it is not
// configured the step is skipped.
func (c *Crawler) renderFetch(ctx context.Context, url string) (*fetchResult, *FetchError) {
	if c.cfg.RenderEndpoint == "" {
		return nil, &FetchError{Kind: FetchErrTransport, URL: url,
			Err: errors.New("render service not configured")}
	}

	if c.renderLimiter != nil {
		if err := c.renderLimiter.Wait(ctx); err != nil {
			return nil, &FetchError{Kind: FetchErrTimeout, URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RenderTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"url":         url,
		"bestAttempt": true,
	})
	if err != nil {
		return nil, &FetchError{Kind: FetchErrParse, URL: url, Err: err}
	}

	endpoint := c.cfg.RenderEndpoint
	if c.cfg.RenderAPIKey != "" {
		endpoint += "?token=" + c.cfg.RenderAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &FetchError{Kind: FetchErrParse, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := FetchErrTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FetchErrTimeout
		}
		return nil, &FetchError{Kind: kind, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Kind: FetchErrStatus, URL: url,
			Err: fmt.Errorf("render service status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: FetchErrTransport, URL: url, Err: err}
	}

	html := string(body)
	return &fetchResult{
		HTML:     html,
		Text:     StripHTML(html),
		Strategy: "rendered",
	}, nil
}

// fetchPage runs the two-tier strategy: direct fetch first, render fallback
// when the result looks like an unrendered JS shell. Partial direct content
// beats nothing.
func (c *Crawler) fetchPage(ctx context.Context, url string) (*fetchResult, *FetchError) {
	direct, derr := c.directFetch(ctx, url)
	if derr != nil {
		logrus.WithFields(logrus.Fields{
			"url":  url,
			"kind": derr.Kind,
		}).Debug("Direct fetch failed, trying render service")

		rendered, rerr := c.renderFetch(ctx, url)
		if rerr == nil && len(rendered.Text) >= c.cfg.MinTextLength {
			return rendered, nil
		}
		return nil, derr
	}

	if !looksLikeJSShell(direct.HTML, direct.Text, c.cfg.MinTextLength) &&
		len(direct.Text) >= c.cfg.MinTextLength {
		return direct, nil
	}

	rendered, rerr := c.renderFetch(ctx, url)
	if rerr == nil && len(rendered.Text) >= c.cfg.MinTextLength {
		rendered.StatusCode = direct.StatusCode
		rendered.FinalURL = direct.FinalURL
		return rendered, nil
	}

	if len(direct.Text) > 0 {
		return direct, nil
	}
	return nil, &FetchError{Kind: FetchErrEmptyBody, URL: url,
		Err: errors.New("all strategies returned empty content")}
}
