package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/hmfcrawl/internal/config"
	"github.com/nao1215/hmfcrawl/internal/database"
	"github.com/nao1215/hmfcrawl/internal/report"
)

const testHomePage = `<!DOCTYPE html>
<html>
<head><title>Home</title></head>
<body>
  <header>
    <a href="/">Home</a>
    <a href="/about">About</a>
  </header>
  <main>
    <img src="/logo.png" alt="logo">
    <a href="https://external.test/page">Partner</a>
  </main>
  <footer><a href="mailto:info@example.com">Mail</a></footer>
</body>
</html>`

const testAboutPage = `<!DOCTYPE html>
<html><body><main><a href="/docs/guide.pdf">Guide</a></main></body></html>`

// newTestSite serves a two-page site.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testHomePage) //nolint:errcheck
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testAboutPage) //nolint:errcheck
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// parseCrawlCmd returns the crawl command of a fresh root command with args
// parsed, plus the positional arguments.
func parseCrawlCmd(t *testing.T, args ...string) (*cobra.Command, []string) {
	t.Helper()

	cmd, _, err := NewRootCmd().Find([]string{"crawl"})
	if err != nil {
		t.Fatalf("crawl command not found: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd, cmd.Flags().Args()
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "depth", shorthand: "d", defValue: "2"},
		{name: "max-pages", shorthand: "p", defValue: "300"},
		{name: "follow-from-header-only", defValue: "true"},
		{name: "same-origin-only", defValue: "true"},
		{name: "dedup-scope", defValue: "region"},
		{name: "concurrency", shorthand: "n"},
		{name: "batch", shorthand: "b"},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o"},
		{name: "config", shorthand: "c"},
		{name: "pages-csv"},
		{name: "summary-csv"},
		{name: "save", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected flag --%s", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if tt.defValue != "" && flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCrawlCmd(t, "https://example.com/")
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		want := config.NewConfig()
		if !slices.Equal(cfg.Targets, []string{"https://example.com/"}) {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if cfg.MaxDepth != want.MaxDepth || cfg.MaxPages != want.MaxPages {
			t.Errorf("got depth %d pages %d", cfg.MaxDepth, cfg.MaxPages)
		}
		if !cfg.FollowFromHeaderOnly || !cfg.SameOriginOnly || !cfg.DedupByURL {
			t.Error("expected default booleans to be true")
		}
		if !slices.Equal(cfg.ParamIgnorePrefixes, want.ParamIgnorePrefixes) {
			t.Errorf("unexpected param prefixes %v", cfg.ParamIgnorePrefixes)
		}
		if cfg.DBDir != config.XDGDataDir() {
			t.Errorf("unexpected db dir %s", cfg.DBDir)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config is invalid: %v", err)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCrawlCmd(t,
			"-d", "0", "-p", "5",
			"--follow-from-header-only=false",
			"--dedup-scope", "page",
			"--param-ignore", "utm_,ref_",
			"--url-attr", "data-href",
			"--fetcher", "COLLY",
			"-n", "2", "-b", "3",
			"-j", "-o", "out.json",
			"--save", "--db-dir", "/tmp/hmfcrawl-db",
			"-v",
			"https://a.test/", " ", "https://b.test/",
		)
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		if !slices.Equal(cfg.Targets, []string{"https://a.test/", "https://b.test/"}) {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if cfg.MaxDepth != 0 || cfg.MaxPages != 5 {
			t.Errorf("got depth %d pages %d", cfg.MaxDepth, cfg.MaxPages)
		}
		if cfg.FollowFromHeaderOnly {
			t.Error("expected follow-from-header-only to be false")
		}
		if cfg.DedupScope != "page" {
			t.Errorf("unexpected dedup scope %s", cfg.DedupScope)
		}
		if !slices.Equal(cfg.ParamIgnorePrefixes, []string{"utm_", "ref_"}) {
			t.Errorf("unexpected param prefixes %v", cfg.ParamIgnorePrefixes)
		}
		if !slices.Equal(cfg.URLAttributes, []string{"data-href"}) {
			t.Errorf("unexpected url attributes %v", cfg.URLAttributes)
		}
		if cfg.Fetcher != "colly" {
			t.Errorf("unexpected fetcher %s", cfg.Fetcher)
		}
		if cfg.Concurrency != 2 || cfg.BatchSize != 3 {
			t.Errorf("got concurrency %d batch %d", cfg.Concurrency, cfg.BatchSize)
		}
		if !cfg.JSONReport || cfg.ReportFile != "out.json" {
			t.Error("expected JSON report to out.json")
		}
		if !cfg.SaveToDB || cfg.DBDir != "/tmp/hmfcrawl-db" {
			t.Errorf("unexpected database settings %t %s", cfg.SaveToDB, cfg.DBDir)
		}
		if !cfg.Verbose {
			t.Error("expected verbose")
		}
	})

	t.Run("loads site settings from config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "hmfcrawl.yaml")
		content := "sites:\n  example.com:\n    depth: 0\n    cookie: \"session=1\"\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd, args := parseCrawlCmd(t, "-c", path, "https://example.com/")
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if got := cfg.CrawlSettings("https://example.com/").MaxDepth; got != 0 {
			t.Errorf("expected site depth 0, got %d", got)
		}
		if got := cfg.FetcherOptions("https://example.com/").Cookie; got != "session=1" {
			t.Errorf("expected site cookie, got %q", got)
		}
		if got := cfg.CrawlSettings("https://other.test/").MaxDepth; got != config.DefaultMaxDepth {
			t.Errorf("expected default depth for other hosts, got %d", got)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd, args := parseCrawlCmd(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "https://example.com/")
		_, err := buildConfig(cmd, args)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestBuildConfigFromEnv(t *testing.T) {
	t.Setenv("START_URL", "https://env.test/")
	t.Setenv("MAX_DEPTH", "4")
	t.Setenv("HMFCRAWL_MAX_PAGES", "7")
	t.Setenv("PARAM_IGNORE", "utm_, ref_")
	t.Setenv("FOLLOW_FROM_HEADER_ONLY", "false")
	t.Setenv("HMFCRAWL_SUMMARY_CSV", "summary.csv")

	t.Run("environment variables set values", func(t *testing.T) {
		cmd, args := parseCrawlCmd(t)
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if !slices.Equal(cfg.Targets, []string{"https://env.test/"}) {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if cfg.MaxDepth != 4 || cfg.MaxPages != 7 {
			t.Errorf("got depth %d pages %d", cfg.MaxDepth, cfg.MaxPages)
		}
		if !slices.Equal(cfg.ParamIgnorePrefixes, []string{"utm_", "ref_"}) {
			t.Errorf("unexpected param prefixes %v", cfg.ParamIgnorePrefixes)
		}
		if cfg.FollowFromHeaderOnly {
			t.Error("expected follow-from-header-only to be false")
		}
		if cfg.SummaryCSV != "summary.csv" {
			t.Errorf("unexpected summary CSV %q", cfg.SummaryCSV)
		}
	})

	t.Run("flags and arguments win over environment variables", func(t *testing.T) {
		cmd, args := parseCrawlCmd(t, "-d", "1", "https://arg.test/")
		cfg, err := buildConfig(cmd, args)
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if !slices.Equal(cfg.Targets, []string{"https://arg.test/"}) {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if cfg.MaxDepth != 1 {
			t.Errorf("expected depth 1, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 7 {
			t.Errorf("expected max pages from environment, got %d", cfg.MaxPages)
		}
	})
}

func TestEnvKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want []string
	}{
		{name: "depth", want: []string{"depth", "HMFCRAWL_DEPTH", "MAX_DEPTH"}},
		{name: "header-selector", want: []string{"header-selector", "HMFCRAWL_HEADER_SELECTOR", "HEADER_SELECTORS"}},
		{name: "user-agent", want: []string{"user-agent", "HMFCRAWL_USER_AGENT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := envKeys(tt.name); !slices.Equal(got, tt.want) {
				t.Errorf("envKeys(%q) = %v, expected %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "flag values", input: []string{"utm_", "ref_"}, want: []string{"utm_", "ref_"}},
		{name: "comma separated", input: []string{"utm_, ref_,,gclid"}, want: []string{"utm_", "ref_", "gclid"}},
		{name: "blank entries", input: []string{" ", ","}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := splitList(tt.input); !slices.Equal(got, tt.want) {
				t.Errorf("splitList(%v) = %v, expected %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestOutputSuffixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		targets []string
		want    []string
	}{
		{name: "single target", targets: []string{"https://a.test/"}, want: []string{""}},
		{name: "distinct hosts", targets: []string{"https://a.test/", "https://B.test/x"}, want: []string{"a.test", "b.test"}},
		{name: "repeated host", targets: []string{"https://a.test/", "https://a.test/blog/", "https://a.test/shop/"}, want: []string{"a.test", "a.test-2", "a.test-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := outputSuffixes(tt.targets); !slices.Equal(got, tt.want) {
				t.Errorf("outputSuffixes(%v) = %v, expected %v", tt.targets, got, tt.want)
			}
		})
	}
}

func TestWithSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		suffix string
		want   string
	}{
		{path: "report.json", suffix: "", want: "report.json"},
		{path: "report.json", suffix: "a.test", want: "report-a.test.json"},
		{path: "out/pages.csv", suffix: "b.test-2", want: "out/pages-b.test-2.csv"},
		{path: "report", suffix: "a.test", want: "report-a.test"},
		{path: "", suffix: "a.test", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path+"+"+tt.suffix, func(t *testing.T) {
			t.Parallel()

			if got := withSuffix(tt.path, tt.suffix); got != tt.want {
				t.Errorf("withSuffix(%q, %q) = %q, expected %q", tt.path, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestRunCrawlCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints text report", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		stdout, _, err := executeCmd(t, "crawl", "--no-color", server.URL+"/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		for _, want := range []string{"[1/1]", "HMFCRAWL REPORT", "SUMMARY", server.URL + "/about"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("output does not contain %q", want)
			}
		}
	})

	t.Run("writes report files", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		dir := t.TempDir()
		reportPath := filepath.Join(dir, "report.json")
		pagesPath := filepath.Join(dir, "csv", "pages.csv")
		summaryPath := filepath.Join(dir, "csv", "summary.csv")

		stdout, _, err := executeCmd(t, "crawl", "--no-color",
			"-j", "-o", reportPath,
			"--pages-csv", pagesPath,
			"--summary-csv", summaryPath,
			server.URL+"/",
		)
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !strings.Contains(stdout, "Pages: 2 (0 failed)") {
			t.Errorf("expected console summary, got %q", stdout)
		}

		data, err := os.ReadFile(reportPath) //nolint:gosec
		if err != nil {
			t.Fatalf("report was not written: %v", err)
		}
		var jr report.JSONReport
		if err := json.Unmarshal(data, &jr); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if jr.Version == "" || jr.Report == nil {
			t.Fatalf("incomplete JSON report: %s", data)
		}
		if len(jr.Report.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(jr.Report.Pages))
		}
		if jr.Report.Summary.Pages != 2 {
			t.Errorf("expected summary of 2 pages, got %d", jr.Report.Summary.Pages)
		}

		pages, err := os.ReadFile(pagesPath) //nolint:gosec
		if err != nil {
			t.Fatalf("pages CSV was not written: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(string(pages)), "\n"); len(lines) != 3 || !strings.HasPrefix(lines[0], "pageUrl;total;unique") {
			t.Errorf("unexpected pages CSV:\n%s", pages)
		}

		if info, err := os.Stat(summaryPath); err != nil || info.Size() == 0 {
			t.Errorf("summary CSV was not written: %v", err)
		}
	})

	t.Run("machine-readable report to stdout", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		stdout, stderr, err := executeCmd(t, "crawl", "--no-color", "-j", "-d", "0", server.URL+"/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		var jr report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &jr); err != nil {
			t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
		}
		if len(jr.Report.Pages) != 1 {
			t.Errorf("expected 1 page at depth 0, got %d", len(jr.Report.Pages))
		}
		if !strings.Contains(stderr, "[1/1]") {
			t.Error("expected progress on stderr")
		}
	})

	t.Run("saves to database", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		dbDir := t.TempDir()
		if _, _, err := executeCmd(t, "crawl", "--no-color", "--save", "--db-dir", dbDir, server.URL+"/"); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		db, err := database.Open(dbDir, database.Options{})
		if err != nil {
			t.Fatalf("database was not created: %v", err)
		}
		defer db.Close()

		runs, err := db.GetRunHistory(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].Pages != 2 {
			t.Errorf("unexpected saved runs %+v", runs)
		}
	})

	t.Run("several targets get suffixed files", func(t *testing.T) {
		t.Parallel()

		first := newTestSite(t)
		second := newTestSite(t)
		dir := t.TempDir()

		// Both servers listen on 127.0.0.1, so the second file is numbered.
		if _, _, err := executeCmd(t, "crawl", "--no-color", "--csv", "-o", filepath.Join(dir, "pages.csv"),
			first.URL+"/", second.URL+"/"); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		for _, name := range []string{"pages-127.0.0.1.csv", "pages-127.0.0.1-2.csv"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				t.Errorf("expected %s: %v", name, err)
			}
		}
	})

	t.Run("failed start page is recorded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(server.Close)

		stdout, _, err := executeCmd(t, "crawl", "--no-color", "-j", server.URL+"/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		var jr report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &jr); err != nil {
			t.Fatalf("stdout is not a JSON report: %v", err)
		}
		if len(jr.Report.Pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(jr.Report.Pages))
		}
		page := jr.Report.Pages[0]
		if page.Error == "" || page.StatusCode != http.StatusNotFound {
			t.Errorf("expected failed page with status 404, got %+v", page)
		}
	})

	t.Run("crawl setup failure", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		path := filepath.Join(t.TempDir(), "hmfcrawl.yaml")
		content := "sites:\n  127.0.0.1:\n    ignorePatterns: [\"/[\"]\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		_, stderr, err := executeCmd(t, "crawl", "--no-color", "-c", path, server.URL+"/")
		if err == nil || !strings.Contains(err.Error(), "1 of 1 crawls failed") {
			t.Fatalf("expected crawl failure, got %v", err)
		}
		if !strings.Contains(stderr, "crawl error for") {
			t.Errorf("expected error report on stderr, got %q", stderr)
		}
	})
}

func TestRunCrawlCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "invalid start URL", args: []string{"crawl", "ftp://example.com/"}, want: config.ErrInvalidStartURL},
		{name: "conflicting formats", args: []string{"crawl", "-j", "-m", "https://example.com/"}, want: config.ErrConflictingReportFormats},
		{name: "negative depth", args: []string{"crawl", "--depth=-1", "https://example.com/"}, want: config.ErrInvalidMaxDepth},
		{name: "unknown fetcher", args: []string{"crawl", "--fetcher", "chrome", "https://example.com/"}, want: config.ErrUnknownFetcher},
		{name: "invalid dedup scope", args: []string{"crawl", "--dedup-scope", "site", "https://example.com/"}, want: config.ErrInvalidDedupScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			root := NewRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&strings.Builder{})
			root.SetErr(&strings.Builder{})
			err := root.ExecuteContext(ctx)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
