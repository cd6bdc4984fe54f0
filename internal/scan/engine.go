// Package scan orchestrates one compliance scan: site crawl and registry
// lookup in parallel, the check modules against the combined context, then
// scoring, drift comparison and persistence.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/provmon/provmon/internal/checks"
	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/database/models"
	"github.com/provmon/provmon/internal/drift"
	"github.com/provmon/provmon/internal/matching"
	"github.com/provmon/provmon/internal/registry"
)

// Engine runs compliance scans. The database and detector are optional; a
// nil database skips persistence, a nil detector skips drift comparison.
type Engine struct {
	crawler  *crawler.Crawler
	registry *registry.Client
	checks   *checks.Registry
	db       database.Database
	detector *drift.Detector
	synonyms matching.SynonymTable
	cfg      *Config
}

// NewEngine builds a scan engine. A nil cfg uses the defaults.
func NewEngine(c *crawler.Crawler, r *registry.Client, reg *checks.Registry,
	db database.Database, detector *drift.Detector, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{
			CheckTimeout:        10 * time.Second,
			MaxConcurrentChecks: 4,
			RiskBands:           DefaultRiskBands(),
		}
	}
	return &Engine{
		crawler:  c,
		registry: r,
		checks:   reg,
		db:       db,
		detector: detector,
		synonyms: matching.DefaultSynonyms,
		cfg:      cfg,
	}
}

// SetSynonyms replaces the specialty synonym table used by the taxonomy
// check.
func (e *Engine) SetSynonyms(table matching.SynonymTable) {
	e.synonyms = table
}

// Run executes one scan session for a provider. Crawl or registry failures
// degrade to inconclusive checks rather than failing the session; Run only
// errors on invalid input or a persistence failure.
func (e *Engine) Run(ctx context.Context, npi, rawURL string, tier checks.Tier, triggeredBy string) (*models.ScanSession, error) {
	if !checks.ValidTier(tier) {
		return nil, fmt.Errorf("unknown tier: %s", tier)
	}
	url := crawler.NormalizeURL(rawURL)
	startedAt := time.Now().UTC()

	var (
		snapshot  *crawler.Snapshot
		org       *registry.OrgRecord
		providers []registry.ProviderRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := e.crawler.Crawl(gctx, url)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"npi": npi,
				"url": url,
			}).WithError(err).Warn("Crawl failed; checks will run without a snapshot")
			return nil
		}
		snapshot = snap
		return nil
	})
	g.Go(func() error {
		rec, err := e.registry.FetchOrganization(gctx, npi)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				logrus.WithField("npi", npi).Warn("Provider not found in registry")
			} else {
				logrus.WithField("npi", npi).WithError(err).Warn("Registry lookup failed")
			}
			return nil
		}
		org = rec

		provs, err := e.registry.FetchProvidersByGeo(gctx, rec.PracticeCity, rec.PracticeState, rec.PracticeZip)
		if err != nil {
			logrus.WithField("npi", npi).WithError(err).Warn("Geo roster lookup failed")
			return nil
		}
		providers = provs
		return nil
	})
	g.Wait()

	scanCtx := &checks.Context{
		NPI:       npi,
		URL:       url,
		Snapshot:  snapshot,
		Org:       org,
		Providers: providers,
		Synonyms:  e.synonyms,
	}

	results := e.runChecks(ctx, scanCtx)
	summary := Aggregate(results, e.cfg.RiskBands)

	// Results above the requested tier keep status and score but not the
	// supporting detail.
	for i := range results {
		if !checks.TierAtLeast(tier, results[i].Tier) {
			results[i].Evidence = nil
			results[i].RemediationSteps = nil
		}
	}

	session := &models.ScanSession{
		ID:             uuid.NewString(),
		NPI:            npi,
		URL:            url,
		Tier:           tier,
		TriggeredBy:    triggeredBy,
		CompositeScore: summary.CompositeScore,
		RiskLevel:      summary.RiskLevel,
		CategoryScores: summary.CategoryScores,
		ChecksTotal:    len(results),
		ChecksPassed:   summary.Passed,
		ChecksFailed:   summary.Failed,
		ChecksWarned:   summary.Warned,
		Results:        results,
		StartedAt:      startedAt,
		CompletedAt:    time.Now().UTC(),
	}

	e.compareDrift(ctx, npi, url, snapshot)

	if e.db != nil {
		if err := e.db.AddScanSession(ctx, *session); err != nil {
			return nil, fmt.Errorf("persist scan session: %w", err)
		}
		if watched, err := e.db.GetWatchedProvider(ctx, npi); err == nil {
			watched.LastScanAt = session.CompletedAt
			watched.LastScore = session.CompositeScore
			if err := e.db.PutWatchedProvider(ctx, watched); err != nil {
				logrus.WithField("npi", npi).WithError(err).Warn("Failed to update watch list entry")
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"npi":        npi,
		"url":        url,
		"tier":       tier,
		"risk_level": session.RiskLevel,
		"checks":     session.ChecksTotal,
	}).Info("Scan completed")

	return session, nil
}

// runChecks executes every registered module concurrently against the
// immutable context, bounded by the configured concurrency. Results keep
// registration order.
func (e *Engine) runChecks(ctx context.Context, scanCtx *checks.Context) []checks.Result {
	modules := e.checks.All()
	results := make([]checks.Result, len(modules))

	sem := semaphore.NewWeighted(e.cfg.MaxConcurrentChecks)
	var wg sync.WaitGroup

	for i, module := range modules {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = checks.Inconclusive(module, "Scan cancelled",
				"The scan was cancelled before this check could run")
			continue
		}
		wg.Add(1)
		go func(i int, module checks.Module) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = e.runCheck(ctx, module, scanCtx)
		}(i, module)
	}
	wg.Wait()

	return results
}

// runCheck runs one module with a timeout. A panicking check yields an
// inconclusive result instead of aborting the session.
func (e *Engine) runCheck(ctx context.Context, module checks.Module, scanCtx *checks.Context) (res checks.Result) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"check": module.ID(),
				"panic": r,
			}).Error("Check panicked")
			res = checks.Inconclusive(module, "Check failed internally",
				"This check could not complete and was excluded from scoring")
		}
	}()

	checkCtx, cancel := context.WithTimeout(ctx, e.cfg.CheckTimeout)
	defer cancel()
	return module.Run(checkCtx, scanCtx)
}

// compareDrift diffs the snapshot's category contents against stored
// baselines, reporting mismatches and auto-resolving categories that are
// back in sync. Missing data is skipped, never treated as drift.
func (e *Engine) compareDrift(ctx context.Context, npi, url string, snapshot *crawler.Snapshot) {
	if e.detector == nil || e.db == nil || snapshot == nil {
		return
	}
	baselines, err := e.db.GetBaselines(ctx, npi, url)
	if err != nil {
		logrus.WithField("npi", npi).WithError(err).Warn("Baseline lookup failed")
		return
	}
	if len(baselines) == 0 {
		return
	}

	observations := drift.Compare(baselines, snapshot.Categories)
	if len(observations) > 0 {
		if _, err := e.detector.ReportObservations(ctx, npi, url, observations); err != nil {
			logrus.WithField("npi", npi).WithError(err).Warn("Drift reporting failed")
		}
	}

	drifted := make(map[string]bool, len(observations))
	for _, obs := range observations {
		drifted[obs.Category] = true
	}
	for _, base := range baselines {
		if drifted[base.Category] {
			continue
		}
		if cur, ok := snapshot.Categories[base.Category]; ok && cur.Hash == base.Hash {
			if _, err := e.detector.ResolveOpen(ctx, npi, base.Category, "rescan"); err != nil {
				logrus.WithField("npi", npi).WithError(err).Warn("Drift auto-resolution failed")
			}
		}
	}
}
