// Package crawler runs the breadth-first crawl.
//
// # Components
//
//   - Spider: manages the frontier, the visited set and the depth and page
//     bounds, and emits one PageRecord per processed task
//   - Processor: fetches one page, extracts and classifies its references,
//     deduplicates them and derives the next crawl candidates
//
// # Usage
//
//	settings := crawler.DefaultSettings("https://example.com/")
//	f, _ := fetcher.New(fetcher.KindHTTP, fetcher.Options{})
//	spider, err := crawler.NewSpider(f, settings, crawler.WithConcurrency(4))
//	if err != nil {
//		return err
//	}
//	records, err := spider.Crawl(ctx)
//
// # Failures
//
// Only an invalid configuration is fatal. Transport errors, non-2xx
// responses and non-HTML content produce a record with an error and no
// candidates; the crawl continues with the rest of the frontier.
package crawler
