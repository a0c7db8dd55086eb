package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/andybalholm/cascadia"

	"github.com/nao1215/hmfcrawl/internal/crawler"
	"github.com/nao1215/hmfcrawl/internal/extract"
	"github.com/nao1215/hmfcrawl/internal/fetcher"
	"github.com/nao1215/hmfcrawl/internal/urlnorm"
)

// Default configuration values.
const (
	// DefaultMaxDepth is the deepest level whose header links are still followed.
	DefaultMaxDepth = 2

	// DefaultMaxPages bounds the number of page records per crawl.
	DefaultMaxPages = 300

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = fetcher.DefaultTimeout

	// DefaultConcurrency is the number of concurrent fetches within one crawl.
	// 1 keeps the crawl polite by default.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of start URLs crawled at the same time.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize

	// DefaultUserAgent identifies hmfcrawl in HTTP requests.
	DefaultUserAgent = fetcher.DefaultUserAgent

	// DefaultFetcher is the fetcher implementation used unless --fetcher is set.
	DefaultFetcher = fetcher.KindHTTP

	// AppName is the application name used for XDG directory paths.
	AppName = "hmfcrawl"
)

// Config holds all configuration options for hmfcrawl.
// It is populated from the config file, environment variables and CLI flags,
// and passed through the application rather than kept in global state.
type Config struct {
	// Targets are the start URLs to crawl. Each one is an independent crawl.
	Targets []string

	// MaxDepth is the maximum task depth whose candidates are followed.
	// 0 means only the start page is processed.
	MaxDepth int

	// MaxPages bounds the number of page records per crawl.
	MaxPages int

	// SameOriginOnly requires scheme, host and port to match the start URL
	// for a reference to count as internal.
	SameOriginOnly bool

	// IncludeSubdomains treats subdomains of the start host as internal.
	// Only used when SameOriginOnly is false.
	IncludeSubdomains bool

	// DedupByURL keeps only the first reference per normalized URL.
	DedupByURL bool

	// DedupScope is "region" or "page".
	DedupScope string

	// FollowFromHeaderOnly restricts recursion to links found in the header.
	FollowFromHeaderOnly bool

	// ParamIgnorePrefixes lists query parameter name prefixes dropped during
	// URL normalization, e.g. "utm_".
	ParamIgnorePrefixes []string

	// HeaderSelector and FooterSelector are CSS selector lists locating the
	// page header and footer.
	HeaderSelector string
	FooterSelector string

	// URLAttributes are additional attributes holding a single URL, scanned
	// besides href, src, poster and data.
	URLAttributes []string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlTimeout bounds one whole crawl. 0 disables the limit.
	CrawlTimeout time.Duration

	// Concurrency is the number of concurrent fetches within one crawl.
	Concurrency int

	// BatchSize is the number of crawls run at the same time when several
	// start URLs are given.
	BatchSize int

	// MaxBodySize is the maximum response body size in bytes.
	// Larger bodies are truncated.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// ProxyURL routes requests through an HTTP or SOCKS5 proxy when set.
	ProxyURL string

	// Fetcher selects the fetcher implementation: "http" or "colly".
	Fetcher string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// NoColor disables colored console logs.
	NoColor bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the defaults and per-host overrides from the config file.
	SiteConfigs *File

	// JSONReport, MarkdownReport and CSVReport select the report format.
	// At most one may be set; none selects the simple text report.
	JSONReport     bool
	MarkdownReport bool
	CSVReport      bool

	// ReportFile is the output path for the report. Empty writes to stdout.
	ReportFile string

	// PagesCSV and SummaryCSV are optional extra output files holding the
	// per-page table and the summary metrics.
	PagesCSV   string
	SummaryCSV string

	// DBDir is the directory holding the results database.
	DBDir string

	// SaveToDB stores each crawl in the results database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:             DefaultMaxDepth,
		MaxPages:             DefaultMaxPages,
		SameOriginOnly:       true,
		DedupByURL:           true,
		DedupScope:           string(crawler.DedupRegion),
		FollowFromHeaderOnly: true,
		ParamIgnorePrefixes:  slices.Clone(urlnorm.DefaultIgnorePrefixes),
		HeaderSelector:       extract.DefaultHeaderSelector,
		FooterSelector:       extract.DefaultFooterSelector,
		Timeout:              DefaultTimeout,
		Concurrency:          DefaultConcurrency,
		BatchSize:            DefaultBatchSize,
		MaxBodySize:          DefaultMaxBodySize,
		UserAgent:            DefaultUserAgent,
		Fetcher:              DefaultFetcher,
	}
}

// XDGDataDir returns the XDG data directory for hmfcrawl.
// On Linux: ~/.local/share/hmfcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for hmfcrawl.
// On Linux: ~/.config/hmfcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found, wrapping one of the package's sentinel errors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := validateStartURL(target); err != nil {
			return err
		}
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlTimeout < 0 {
		return ErrInvalidCrawlTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	for _, sel := range []string{c.HeaderSelector, c.FooterSelector} {
		if err := validateSelector(sel); err != nil {
			return err
		}
	}
	if _, err := crawler.ParseDedupScope(c.DedupScope); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDedupScope, c.DedupScope)
	}

	switch strings.ToLower(c.Fetcher) {
	case "", fetcher.KindHTTP, fetcher.KindColly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFetcher, c.Fetcher)
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidProxyURL, c.ProxyURL)
		}
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.CSVReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	return nil
}

func validateStartURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStartURL, raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidStartURL, raw)
	}
	return nil
}

// validateSelector checks that sel is a valid CSS selector list.
// Empty selects the default.
func validateSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSelector, sel, err)
	}
	return nil
}

// site returns the merged file configuration for a start URL.
func (c *Config) site(startURL string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(HostOf(startURL))
}

// CrawlSettings builds the crawl settings for one start URL, applying the
// config file's defaults and per-host overrides on top of c.
func (c *Config) CrawlSettings(startURL string) crawler.Settings {
	scope, err := crawler.ParseDedupScope(c.DedupScope)
	if err != nil {
		scope = crawler.DedupRegion
	}

	s := crawler.Settings{
		StartURL:             strings.TrimSpace(startURL),
		MaxDepth:             c.MaxDepth,
		MaxPages:             c.MaxPages,
		SameOriginOnly:       c.SameOriginOnly,
		IncludeSubdomains:    c.IncludeSubdomains,
		ParamIgnorePrefixes:  slices.Clone(c.ParamIgnorePrefixes),
		HeaderSelector:       c.HeaderSelector,
		FooterSelector:       c.FooterSelector,
		URLAttributes:        slices.Clone(c.URLAttributes),
		FollowFromHeaderOnly: c.FollowFromHeaderOnly,
		DedupByURL:           c.DedupByURL,
		DedupScope:           scope,
	}

	site := c.site(startURL)
	if site.Depth != nil {
		s.MaxDepth = *site.Depth
	}
	if site.MaxPages > 0 {
		s.MaxPages = site.MaxPages
	}
	if site.HeaderSelector != "" {
		s.HeaderSelector = site.HeaderSelector
	}
	if site.FooterSelector != "" {
		s.FooterSelector = site.FooterSelector
	}
	if len(site.ParamIgnore) > 0 {
		s.ParamIgnorePrefixes = slices.Clone(site.ParamIgnore)
	}
	if site.FollowFromHeaderOnly != nil {
		s.FollowFromHeaderOnly = *site.FollowFromHeaderOnly
	}
	s.IgnorePatterns = slices.Clone(site.IgnorePatterns)
	s.FollowPatterns = slices.Clone(site.FollowPatterns)

	return s
}

// FetcherOptions builds the fetcher options for one start URL, including
// the headers and cookie configured for its host.
func (c *Config) FetcherOptions(startURL string) fetcher.Options {
	site := c.site(startURL)

	var headers map[string]string
	if len(site.Headers) > 0 {
		headers = make(map[string]string, len(site.Headers))
		for k, v := range site.Headers {
			headers[k] = v
		}
	}

	return fetcher.Options{
		UserAgent:   c.UserAgent,
		Headers:     headers,
		Cookie:      site.Cookie,
		Timeout:     c.Timeout,
		MaxBodySize: c.MaxBodySize,
		ProxyURL:    c.ProxyURL,
	}
}

// HostOf returns the lowercased host name of a URL, or the trimmed input
// lowercased if it has no host part.
func HostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(raw)
}
