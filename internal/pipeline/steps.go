package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/hmfcrawl/internal/crawler"
	"github.com/nao1215/hmfcrawl/internal/fetcher"
	"github.com/nao1215/hmfcrawl/internal/model"
)

// CrawlStep runs the breadth-first crawl for the report's start URL and
// stores the page records in the report.
type CrawlStep struct {
	fetcher  fetcher.Fetcher
	settings crawler.Settings

	concurrency  int
	crawlTimeout time.Duration
	onPage       func(*model.PageRecord)
	logger       *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlConcurrency sets the number of concurrent fetches.
func WithCrawlConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.concurrency = n
	}
}

// WithCrawlTimeout bounds the duration of the crawl. 0 disables the limit.
func WithCrawlTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.crawlTimeout = d
	}
}

// WithCrawlLogger sets the logger for the crawl step and its spider.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// WithCrawlPageCallback registers a function called for every page record.
func WithCrawlPageCallback(fn func(*model.PageRecord)) CrawlStepOption {
	return func(s *CrawlStep) {
		s.onPage = fn
	}
}

// NewCrawlStep creates a crawl step. The start URL is taken from the report.
func NewCrawlStep(f fetcher.Fetcher, settings crawler.Settings, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher:     f,
		settings:    settings,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl. An invalid configuration is returned as an error.
// An expired crawl deadline or a cancelled context keeps the partial
// results; the former also marks the report as timed out.
func (s *CrawlStep) Do(ctx context.Context, report *model.SiteReport) error {
	settings := s.settings
	settings.StartURL = report.StartURL
	report.Settings = settings.Snapshot()

	spider, err := crawler.NewSpider(s.fetcher, settings,
		crawler.WithConcurrency(s.concurrency),
		crawler.WithCrawlTimeout(s.crawlTimeout),
		crawler.WithLogger(s.logger),
		crawler.WithPageCallback(s.onPage),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	pages, err := spider.Crawl(ctx)
	report.Duration = time.Since(start)
	report.Pages = pages

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		report.TimedOut = true
		s.logger.Warn("crawl timed out, keeping partial results", "url", report.StartURL, "pages", len(pages))
	case err != nil:
		s.logger.Warn("crawl interrupted, keeping partial results", "url", report.StartURL, "error", err)
	}

	stats := spider.Stats()
	s.logger.Info("crawl completed",
		"url", report.StartURL,
		"pages", stats.PagesRecorded,
		"failed", stats.PagesFailed,
		"duplicates_skipped", stats.DuplicatesSkipped,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return nil
}

// SummaryStep aggregates the page records of the report.
type SummaryStep struct{}

// NewSummaryStep creates a summary step.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do fills report.Summary.
func (s *SummaryStep) Do(_ context.Context, report *model.SiteReport) error {
	report.Summary = model.Summarize(report.Pages)
	return nil
}

// DefaultPipeline creates the standard pipeline for one start URL: crawl,
// then summarize.
func DefaultPipeline(f fetcher.Fetcher, settings crawler.Settings, pipelineOpts []Option, crawlOpts ...CrawlStepOption) *Pipeline {
	p := New(pipelineOpts...)
	p.AddSteps(
		NewCrawlStep(f, settings, crawlOpts...),
		NewSummaryStep(),
	)
	return p
}
