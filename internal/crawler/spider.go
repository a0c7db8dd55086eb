package crawler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/hmfcrawl/internal/fetcher"
	"github.com/nao1215/hmfcrawl/internal/model"
)

// Spider runs a breadth-first crawl from a start URL.
//
// The frontier is processed one depth level at a time. Within a level, tasks
// are admitted in FIFO order: each task's URL is checked against and added to
// the visited set, and admission stops once the page budget is used up.
// Admitted tasks are then fetched with bounded concurrency, and their records
// are emitted in admission order once the whole level has finished. The
// output is therefore the same for every concurrency setting.
type Spider struct {
	processor *Processor
	settings  Settings

	// concurrency bounds in-flight fetches within one level.
	concurrency int

	// crawlTimeout bounds the whole crawl; 0 means no limit.
	crawlTimeout time.Duration

	logger *slog.Logger

	// onPage is called for each record as it is emitted.
	onPage func(*model.PageRecord)

	// visited holds the normalized URLs of every admitted task.
	visited map[string]bool

	// mutex protects visited and stats.
	mutex sync.Mutex

	stats SpiderStats
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesRecorded is the number of page records emitted.
	PagesRecorded int

	// PagesFailed is the number of records carrying an error.
	PagesFailed int

	// DuplicatesSkipped is the number of dequeued tasks discarded because
	// their URL had already been visited.
	DuplicatesSkipped int

	// URLsVisited is the number of distinct normalized URLs admitted.
	URLsVisited int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets the maximum number of concurrent fetches.
// Values below 1 are treated as 1.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = max(n, 1)
	}
}

// WithCrawlTimeout bounds the total duration of a crawl.
func WithCrawlTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.crawlTimeout = d
	}
}

// WithLogger sets the logger for crawl progress.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageCallback registers a function called for every emitted record.
func WithPageCallback(fn func(*model.PageRecord)) SpiderOption {
	return func(s *Spider) {
		s.onPage = fn
	}
}

// NewSpider creates a Spider for the given settings.
// It fails if the start URL or any selector or pattern is invalid.
func NewSpider(f fetcher.Fetcher, settings Settings, opts ...SpiderOption) (*Spider, error) {
	settings.StartURL = strings.TrimSpace(settings.StartURL)
	processor, err := NewProcessor(f, settings)
	if err != nil {
		return nil, err
	}

	s := &Spider{
		processor:   processor,
		settings:    settings,
		concurrency: 1,
		logger:      slog.New(slog.DiscardHandler),
		visited:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Crawl runs the crawl and returns one record per processed task, in
// breadth-first order.
//
// When ctx is cancelled or the crawl timeout expires, in-flight fetches fail
// and are recorded as transport errors; Crawl then returns the records
// gathered so far together with the context error.
func (s *Spider) Crawl(ctx context.Context) ([]*model.PageRecord, error) {
	if s.crawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.crawlTimeout)
		defer cancel()
	}

	records := make([]*model.PageRecord, 0)
	level := []Task{{URL: s.settings.StartURL, Depth: 0}}

	for len(level) > 0 && len(records) < s.settings.MaxPages {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		admitted := s.admit(level, s.settings.MaxPages-len(records))
		results := s.processLevel(ctx, admitted)

		var next []Task
		for i, res := range results {
			task := admitted[i]
			records = append(records, res.record)
			s.recordStats(res.record)
			s.logger.Debug("page processed",
				"url", task.URL,
				"depth", task.Depth,
				"unique", res.record.Unique(),
				"error", res.record.Error,
			)
			if s.onPage != nil {
				s.onPage(res.record)
			}

			if res.record.Failed() || task.Depth >= s.settings.MaxDepth {
				continue
			}
			for _, candidate := range res.candidates {
				if !s.isVisited(candidate) {
					next = append(next, Task{URL: candidate, Depth: task.Depth + 1})
				}
			}
		}
		level = next
	}

	if err := ctx.Err(); err != nil {
		return records, err
	}
	return records, nil
}

type pageResult struct {
	record     *model.PageRecord
	candidates []string
}

// admit walks a level in FIFO order, marking each new URL as visited and
// discarding already visited ones, until budget tasks are admitted.
func (s *Spider) admit(level []Task, budget int) []Task {
	admitted := make([]Task, 0, min(len(level), budget))
	for _, task := range level {
		if len(admitted) >= budget {
			break
		}
		if !s.markVisited(task.URL) {
			s.mutex.Lock()
			s.stats.DuplicatesSkipped++
			s.mutex.Unlock()
			continue
		}
		admitted = append(admitted, task)
	}
	return admitted
}

// processLevel processes tasks concurrently and returns results in task order.
func (s *Spider) processLevel(ctx context.Context, tasks []Task) []pageResult {
	results := make([]pageResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			record, candidates := s.processor.Process(ctx, task)
			results[i] = pageResult{record: record, candidates: candidates}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

// markVisited adds the URL's normalized form to the visited set. It returns
// false if the URL was already visited.
func (s *Spider) markVisited(pageURL string) bool {
	key := s.processor.Normalize(pageURL)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	s.stats.URLsVisited++
	return true
}

// isVisited checks if a URL has been visited.
func (s *Spider) isVisited(pageURL string) bool {
	key := s.processor.Normalize(pageURL)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[key]
}

func (s *Spider) recordStats(record *model.PageRecord) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.PagesRecorded++
	if record.Failed() {
		s.stats.PagesFailed++
	}
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}
