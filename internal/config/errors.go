package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when no start URL is given.
	ErrNoTarget = errors.New("no target specified: provide a start URL")

	// ErrInvalidStartURL is returned when a start URL is not an absolute
	// http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http(s) URL")

	// ErrInvalidMaxDepth is returned when the maximum depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlTimeout is returned when the crawl timeout is negative.
	// Use 0 for no limit.
	ErrInvalidCrawlTimeout = errors.New("invalid crawl timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSelector is returned when a header or footer selector is not
	// a valid CSS selector list.
	ErrInvalidSelector = errors.New("invalid CSS selector")

	// ErrInvalidDedupScope is returned when the dedup scope is not
	// "region" or "page".
	ErrInvalidDedupScope = errors.New("invalid dedup scope: must be region or page")

	// ErrUnknownFetcher is returned for a fetcher other than "http" or "colly".
	ErrUnknownFetcher = errors.New("unknown fetcher: must be http or colly")

	// ErrInvalidProxyURL is returned when the proxy URL has no scheme or host.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --csv is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown and --csv")
)
