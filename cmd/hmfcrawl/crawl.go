package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nao1215/hmfcrawl/internal/config"
	"github.com/nao1215/hmfcrawl/internal/database"
	"github.com/nao1215/hmfcrawl/internal/fetcher"
	applog "github.com/nao1215/hmfcrawl/internal/log"
	"github.com/nao1215/hmfcrawl/internal/model"
	"github.com/nao1215/hmfcrawl/internal/pipeline"
	"github.com/nao1215/hmfcrawl/internal/report"
)

// envPrefix prefixes the environment variable of every crawl flag,
// e.g. HMFCRAWL_MAX_PAGES for --max-pages.
const envPrefix = "HMFCRAWL_"

// legacyEnv lists additional environment variable names accepted for some
// flags, matching the names used by earlier crawl scripts.
var legacyEnv = map[string]string{
	"start-url":               "START_URL",
	"depth":                   "MAX_DEPTH",
	"max-pages":               "MAX_PAGES",
	"same-origin-only":        "SAME_ORIGIN_ONLY",
	"include-subdomains":      "INCLUDE_SUBDOMAINS",
	"dedup-by-url":            "DEDUP_BY_URL",
	"follow-from-header-only": "FOLLOW_FROM_HEADER_ONLY",
	"param-ignore":            "PARAM_IGNORE",
	"header-selector":         "HEADER_SELECTORS",
	"footer-selector":         "FOOTER_SELECTORS",
	"pages-csv":               "PAGES_CSV",
	"summary-csv":             "SUMMARY_CSV",
}

// crawlFlags are the flags bound to viper, in definition order.
var crawlFlags = []string{
	"depth", "max-pages", "same-origin-only", "include-subdomains",
	"dedup-by-url", "dedup-scope", "follow-from-header-only", "param-ignore",
	"header-selector", "footer-selector", "url-attr",
	"timeout", "crawl-timeout", "concurrency", "batch", "max-body-size",
	"user-agent", "proxy", "fetcher",
	"config", "json", "markdown", "csv", "output", "pages-csv", "summary-csv",
	"save", "db-dir", "log-json", "no-color", "verbose",
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url...]",
		Short: "Crawl a website and inventory its header, main and footer links",
		Long: `Crawl fetches the start URL, records every URL-bearing reference on the page
by region (HEADER, MAIN, FOOTER), and follows the internal HTML links found in
the header breadth-first up to --depth levels and --max-pages pages.

Each reference is classified by resource type (HTML, IMAGE, PDF, MAIL, ...)
and scope (INTERNAL, EXTERNAL, OTHER). Several start URLs are crawled
independently, --batch at a time.

Every flag can also be set with an environment variable named HMFCRAWL_<FLAG>,
e.g. HMFCRAWL_MAX_PAGES. START_URL, MAX_DEPTH, MAX_PAGES, SAME_ORIGIN_ONLY,
INCLUDE_SUBDOMAINS, DEDUP_BY_URL, FOLLOW_FROM_HEADER_ONLY, PARAM_IGNORE,
HEADER_SELECTORS, FOOTER_SELECTORS, PAGES_CSV and SUMMARY_CSV are accepted too.

Examples:
  # Crawl a site with the default settings
  hmfcrawl crawl https://example.com/

  # Follow links from the whole page, three levels deep
  hmfcrawl crawl --follow-from-header-only=false -d 3 https://example.com/

  # Write the per-page table and the summary as CSV files
  hmfcrawl crawl --pages-csv pages.csv --summary-csv summary.csv https://example.com/

  # JSON report to a file, saved to the history database
  hmfcrawl crawl -j -o report.json --save https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	defaults := config.NewConfig()
	f := cmd.Flags()

	// Crawl behavior
	f.IntP("depth", "d", defaults.MaxDepth, "Maximum crawl depth (0 processes only the start page)")
	f.IntP("max-pages", "p", defaults.MaxPages, "Maximum number of pages per start URL")
	f.Bool("same-origin-only", defaults.SameOriginOnly, "Treat only the start URL's origin (scheme, host, port) as internal")
	f.Bool("include-subdomains", defaults.IncludeSubdomains, "Treat subdomains as internal when --same-origin-only=false")
	f.Bool("dedup-by-url", defaults.DedupByURL, "Count each normalized URL once per deduplication scope")
	f.String("dedup-scope", defaults.DedupScope, "Deduplication scope: region or page")
	f.Bool("follow-from-header-only", defaults.FollowFromHeaderOnly, "Follow only links found in the page header")
	f.StringSlice("param-ignore", defaults.ParamIgnorePrefixes, "Query parameter prefixes removed during URL normalization")
	f.String("header-selector", defaults.HeaderSelector, "CSS selector list locating the page header")
	f.String("footer-selector", defaults.FooterSelector, "CSS selector list locating the page footer")
	f.StringSlice("url-attr", nil, "Additional attributes holding a single URL")

	// Fetching
	f.DurationP("timeout", "t", defaults.Timeout, "Timeout for each request")
	f.Duration("crawl-timeout", 0, "Timeout for one whole crawl (0 = none)")
	f.IntP("concurrency", "n", defaults.Concurrency, "Concurrent fetches within one crawl")
	f.IntP("batch", "b", defaults.BatchSize, "Number of start URLs crawled at the same time")
	f.Int64("max-body-size", defaults.MaxBodySize, "Maximum response body size in bytes")
	f.String("user-agent", defaults.UserAgent, "User-Agent header")
	f.String("proxy", "", "Proxy URL (http, https or socks5)")
	f.String("fetcher", defaults.Fetcher, "Fetcher implementation: http or colly")

	// Configuration file and logging
	f.StringP("config", "c", "", "Configuration file path (default: .hmfcrawl in current or home directory)")
	f.Bool("log-json", false, "Write logs as JSON")
	f.Bool("no-color", false, "Disable colored logs")

	// Reports
	f.BoolP("json", "j", false, "Output a JSON report")
	f.BoolP("markdown", "m", false, "Output a Markdown report")
	f.Bool("csv", false, "Output the per-page table as CSV")
	f.StringP("output", "o", "", "Write the report to a file (a host suffix is added for several start URLs)")
	f.String("pages-csv", "", "Also write the per-page table to this CSV file")
	f.String("summary-csv", "", "Also write the summary metrics to this CSV file")

	// History database
	f.Bool("save", false, "Save results to the history database")
	f.String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewLogger(cmd.ErrOrStderr(), applog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
		Color:   !cfg.NoColor,
	})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, keeping partial results")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd, cfg, logger)
}

// newCrawlViper binds the crawl flags and their environment variables to a
// fresh viper instance. Explicit flags win over environment variables,
// which win over flag defaults.
func newCrawlViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	for _, name := range crawlFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.Root().PersistentFlags().Lookup(name)
		}
		if flag == nil {
			return nil, fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(name, flag); err != nil {
			return nil, err
		}
		if err := v.BindEnv(envKeys(name)...); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv(envKeys("start-url")...); err != nil {
		return nil, err
	}
	return v, nil
}

// envKeys returns the viper key followed by its environment variable names.
func envKeys(name string) []string {
	keys := []string{name, envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
	if legacy, ok := legacyEnv[name]; ok {
		keys = append(keys, legacy)
	}
	return keys
}

// splitList flattens comma-separated entries. Environment variables arrive
// as one string, flags as a list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// buildConfig creates a Config from flags, environment variables and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	v, err := newCrawlViper(cmd)
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()

	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			cfg.Targets = append(cfg.Targets, arg)
		}
	}
	if len(cfg.Targets) == 0 {
		if start := strings.TrimSpace(v.GetString("start-url")); start != "" {
			cfg.Targets = []string{start}
		}
	}

	cfg.MaxDepth = v.GetInt("depth")
	cfg.MaxPages = v.GetInt("max-pages")
	cfg.SameOriginOnly = v.GetBool("same-origin-only")
	cfg.IncludeSubdomains = v.GetBool("include-subdomains")
	cfg.DedupByURL = v.GetBool("dedup-by-url")
	cfg.DedupScope = v.GetString("dedup-scope")
	cfg.FollowFromHeaderOnly = v.GetBool("follow-from-header-only")
	cfg.ParamIgnorePrefixes = splitList(v.GetStringSlice("param-ignore"))
	cfg.HeaderSelector = v.GetString("header-selector")
	cfg.FooterSelector = v.GetString("footer-selector")
	cfg.URLAttributes = splitList(v.GetStringSlice("url-attr"))

	cfg.Timeout = v.GetDuration("timeout")
	cfg.CrawlTimeout = v.GetDuration("crawl-timeout")
	cfg.Concurrency = v.GetInt("concurrency")
	cfg.BatchSize = v.GetInt("batch")
	cfg.MaxBodySize = v.GetInt64("max-body-size")
	cfg.UserAgent = v.GetString("user-agent")
	cfg.ProxyURL = v.GetString("proxy")
	cfg.Fetcher = strings.ToLower(v.GetString("fetcher"))

	cfg.Verbose = v.GetBool("verbose")
	cfg.LogJSON = v.GetBool("log-json")
	cfg.NoColor = v.GetBool("no-color")

	cfg.JSONReport = v.GetBool("json")
	cfg.MarkdownReport = v.GetBool("markdown")
	cfg.CSVReport = v.GetBool("csv")
	cfg.ReportFile = v.GetString("output")
	cfg.PagesCSV = v.GetString("pages-csv")
	cfg.SummaryCSV = v.GetString("summary-csv")

	cfg.SaveToDB = v.GetBool("save")
	cfg.DBDir = v.GetString("db-dir")
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	// An explicit config path must exist; otherwise a missing file means
	// no per-site settings.
	cfg.ConfigFilePath = v.GetString("config")
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

// runCrawl crawls every target and writes the requested outputs.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.ResultDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	// Progress lines go to stderr when a machine-readable report is printed.
	status := cmd.OutOrStdout()
	if cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport || cfg.CSVReport) {
		status = cmd.ErrOrStderr()
	}

	bp := pipeline.NewBatchProcessor(
		func(target string) (*pipeline.Pipeline, error) {
			return newCrawlPipeline(cfg, target, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	started := time.Now()
	var mu sync.Mutex
	reports := make([]*model.SiteReport, len(cfg.Targets))
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.SiteReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		reports[index] = r
		fmt.Fprintf(status, "[%d/%d] %s: %d pages in %s\n",
			index+1, len(cfg.Targets), r.StartURL, len(r.Pages), r.Duration.Round(time.Millisecond))
	})
	if len(cfg.Targets) > 1 {
		fmt.Fprintf(status, "Crawled %d start URLs in %s\n\n", len(cfg.Targets), time.Since(started).Round(time.Millisecond))
	}

	suffixes := outputSuffixes(cfg.Targets)
	saveCtx := context.WithoutCancel(ctx)
	var (
		failed    int
		outputErr error
	)
	for i, r := range reports {
		if r == nil {
			continue
		}
		if r.Failed() {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "crawl error for %s: %s\n", r.StartURL, r.Error)
			continue
		}
		if err := writeOutputs(cmd, cfg, r, suffixes[i], status); err != nil {
			logger.Error("report failed", "url", r.StartURL, "error", err)
			outputErr = errors.Join(outputErr, err)
		}
		if err := saveSiteReport(saveCtx, db, r, logger); err != nil {
			logger.Error("failed to save crawl", "url", r.StartURL, "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(cfg.Targets))
	}
	return outputErr
}

// newCrawlPipeline builds the pipeline for one start URL with the fetcher
// options and crawl settings of its host.
func newCrawlPipeline(cfg *config.Config, target string, logger *slog.Logger) (*pipeline.Pipeline, error) {
	f, err := fetcher.New(cfg.Fetcher, cfg.FetcherOptions(target))
	if err != nil {
		return nil, err
	}
	return pipeline.DefaultPipeline(f, cfg.CrawlSettings(target),
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithCrawlConcurrency(cfg.Concurrency),
		pipeline.WithCrawlTimeout(cfg.CrawlTimeout),
		pipeline.WithCrawlLogger(logger),
	), nil
}

// outputSuffixes returns the file name suffix per target. A single target
// gets none; several get their host, numbered when a host repeats.
func outputSuffixes(targets []string) []string {
	suffixes := make([]string, len(targets))
	if len(targets) < 2 {
		return suffixes
	}
	seen := make(map[string]int)
	for i, t := range targets {
		host := config.HostOf(t)
		seen[host]++
		if n := seen[host]; n > 1 {
			host += "-" + strconv.Itoa(n)
		}
		suffixes[i] = host
	}
	return suffixes
}

// withSuffix inserts "-suffix" before the file extension.
func withSuffix(path, suffix string) string {
	if path == "" || suffix == "" {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + suffix + ext
}

// writeOutputs renders the report in the selected format plus the optional
// CSV files and the console summary.
func writeOutputs(cmd *cobra.Command, cfg *config.Config, r *model.SiteReport, suffix string, status io.Writer) error {
	var writer func(io.Writer) report.Writer
	switch {
	case cfg.JSONReport:
		writer = func(w io.Writer) report.Writer {
			return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
		}
	case cfg.MarkdownReport:
		writer = func(w io.Writer) report.Writer { return report.NewMarkdownWriter(w) }
	case cfg.CSVReport:
		writer = func(w io.Writer) report.Writer { return report.NewCSVWriter(w) }
	default:
		writer = func(w io.Writer) report.Writer {
			return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
		}
	}

	textToStdout := cfg.ReportFile == "" && !cfg.JSONReport && !cfg.MarkdownReport && !cfg.CSVReport

	if cfg.ReportFile == "" {
		if _, err := writer(cmd.OutOrStdout()).Write(r); err != nil {
			return err
		}
	} else if err := writeFile(withSuffix(cfg.ReportFile, suffix), func(w io.Writer) error {
		_, err := writer(w).Write(r)
		return err
	}); err != nil {
		return err
	}

	if cfg.PagesCSV != "" {
		if err := writeFile(withSuffix(cfg.PagesCSV, suffix), func(w io.Writer) error {
			_, err := report.NewCSVWriter(w).Write(r)
			return err
		}); err != nil {
			return err
		}
	}
	if cfg.SummaryCSV != "" {
		if err := writeFile(withSuffix(cfg.SummaryCSV, suffix), func(w io.Writer) error {
			_, err := report.NewSummaryCSVWriter(w).Write(r)
			return err
		}); err != nil {
			return err
		}
	}

	// The text report already contains the summary.
	if !textToStdout {
		if _, err := report.NewSimpleWriter(status).WriteSummary(r); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates path with owner-only permissions, creating parent
// directories as needed, and passes it to fn.
func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// saveSiteReport stores the report if a database is open.
func saveSiteReport(ctx context.Context, db *database.ResultDB, r *model.SiteReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	runID, err := db.SaveSiteReport(ctx, r)
	if err != nil {
		return err
	}
	logger.Info("crawl saved to database", "url", r.StartURL, "run", runID)
	return nil
}
