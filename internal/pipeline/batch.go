package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// PipelineFactory builds the pipeline for one start URL. It may return an
// error, for example when the fetcher for that site cannot be created.
type PipelineFactory func(startURL string) (*Pipeline, error)

// BatchProcessor crawls several start URLs concurrently. Every start URL
// gets its own pipeline and report.
type BatchProcessor struct {
	factory     PipelineFactory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. The default concurrency is 4.
func NewBatchProcessor(factory PipelineFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls all start URLs and returns one report per URL, in
// input order. Failed crawls are returned with report.Error set. Start URLs
// not begun before ctx is done have no report (nil entry), and the context
// error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, startURLs []string) ([]*model.SiteReport, error) {
	results := make([]*model.SiteReport, len(startURLs))
	err := bp.ProcessBatchWithCallback(ctx, startURLs, func(report *model.SiteReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback crawls all start URLs and calls callback with
// each finished report and its index in startURLs. The callback runs on the
// crawl's goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	startURLs []string,
	callback func(report *model.SiteReport, index int),
) error {
	bp.logger.Info("starting batch",
		"targets", len(startURLs),
		"concurrency", bp.concurrency,
	)
	started := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling", "url", startURL, "index", i+1, "total", len(startURLs))
			report := model.NewSiteReport(startURL)

			p, err := bp.factory(startURL)
			if err != nil {
				report.Error = err.Error()
			} else if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("crawl failed", "url", startURL, "error", err)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"targets", len(startURLs),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return err
}
