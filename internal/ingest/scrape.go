package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"treegift/internal/logging"
	"treegift/internal/services"
)

// ErrScrapeInProgress rejects a scrape while another one is running.
var ErrScrapeInProgress = fmt.Errorf("%w: scrape already in progress", services.ErrIngestion)

// ScrapeService harvests images from a web page into a request's namespace.
type ScrapeService interface {
	ScrapeImagesFromWebPage(ctx context.Context, requestID, pageURL string) ([]string, error)
}

// Scraper feeds scraped photos into the image pool. It never creates or edits
// recipients.
type Scraper struct {
	service ScrapeService
	pool    *ImagePool
	logger  *slog.Logger
	running atomic.Bool
}

// NewScraper constructs a scraper writing into pool.
func NewScraper(service ScrapeService, pool *ImagePool, logger *slog.Logger) *Scraper {
	return &Scraper{
		service: service,
		pool:    pool,
		logger:  logging.NewComponentLogger(logger, "scraper"),
	}
}

// Scraping reports whether a scrape is running. Hosts use it to disable the
// trigger.
func (s *Scraper) Scraping() bool {
	return s.running.Load()
}

// Scrape harvests pageURL, merges the results into the pool, and refreshes
// the pool from the source. It returns the refreshed pool.
func (s *Scraper) Scrape(ctx context.Context, requestID, pageURL string) ([]string, error) {
	pageURL = strings.TrimSpace(pageURL)
	parsed, err := url.ParseRequestURI(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "scrape", fmt.Sprintf("invalid page url %q", pageURL), nil)
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "scrape", "request id required", nil)
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScrapeInProgress
	}
	defer s.running.Store(false)

	started := time.Now()
	s.logger.Info("scrape started",
		logging.String(logging.FieldRequestID, requestID),
		logging.String("page_url", pageURL),
	)
	found, err := s.service.ScrapeImagesFromWebPage(ctx, requestID, pageURL)
	if err != nil {
		logging.WarnWithContext(s.logger, "scrape failed", "scrape_failed",
			logging.String(logging.FieldRequestID, requestID),
			logging.String("page_url", pageURL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the page is public and try again"),
			logging.String(logging.FieldImpact, "no new photos added"),
		)
		return nil, services.Wrap(services.ErrIngestion, "ingest", "scrape", "harvest page", err)
	}

	merged := s.pool.Merge(requestID, found...)
	refreshed, err := s.pool.Refresh(ctx, requestID)
	if err != nil {
		refreshed = merged
	}
	s.logger.Info("scrape completed",
		logging.String(logging.FieldRequestID, requestID),
		logging.Int("scraped", len(found)),
		logging.Int("pool", len(refreshed)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return refreshed, nil
}
