package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/hmfcrawl/internal/config"
	"github.com/nao1215/hmfcrawl/internal/database"
	"github.com/nao1215/hmfcrawl/internal/model"
)

const (
	trendGrown     = "grown"
	trendShrunk    = "shrunk"
	trendUnchanged = "unchanged"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [start-url]",
		Short: "Show and compare saved crawls",
		Long: `History reads crawls saved with 'hmfcrawl crawl --save' and compares them.

By default the latest two crawls of the start URL are compared:
- unique links per region, resource type and scope
- pages that appeared or disappeared
- pages that newly failed

Examples:
  # Compare the latest two crawls
  hmfcrawl history https://example.com/

  # List all saved crawls of a start URL
  hmfcrawl history --list https://example.com/

  # Compare the latest crawl with a specific one
  hmfcrawl history --with-run-id 3 https://example.com/

  # Show the PDF links found in the latest crawl
  hmfcrawl history --references --type PDF https://example.com/

  # List all start URLs in the database
  hmfcrawl history --list-urls

  # Delete crawls older than 30 days
  hmfcrawl history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List saved crawls of the start URL")
	cmd.Flags().BoolP("list-urls", "L", false, "List all start URLs in the database")

	cmd.Flags().Int64P("with-run-id", "i", 0, "Compare the latest crawl with this run ID")
	cmd.Flags().StringP("since", "s", "", "Compare with the first crawl on or after this date (YYYY-MM-DD)")

	cmd.Flags().BoolP("references", "r", false, "List the stored references of a crawl")
	cmd.Flags().Int64("run-id", 0, "Run ID for --references (default: latest)")
	cmd.Flags().String("region", "", "Filter --references by region (HEADER, MAIN, FOOTER)")
	cmd.Flags().String("type", "", "Filter --references by resource type (e.g. HTML, PDF)")
	cmd.Flags().String("scope", "", "Filter --references by scope (INTERNAL, EXTERNAL, OTHER)")

	cmd.Flags().Duration("prune", 0, "Delete crawls older than this duration")

	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the comparison as Markdown")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	listURLs, err := flags.GetBool("list-urls")
	if err != nil {
		return err
	}
	prune, err := flags.GetDuration("prune")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	var startURL string
	if len(args) > 0 {
		startURL = strings.TrimSpace(args[0])
	}
	if startURL == "" && !listURLs && prune == 0 {
		return errors.New("start URL is required (use --list-urls to see saved start URLs)")
	}
	if prune < 0 {
		return fmt.Errorf("invalid --prune duration: %s", prune)
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if prune > 0 {
		n, err := db.DeleteRunsBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d crawl(s) older than %s\n", n, prune)
		if startURL == "" && !listURLs {
			return nil
		}
	}

	if listURLs {
		return listStartURLs(ctx, out, db)
	}

	if list, err := flags.GetBool("list"); err != nil {
		return err
	} else if list {
		return listRunHistory(ctx, out, db, startURL)
	}

	if refs, err := flags.GetBool("references"); err != nil {
		return err
	} else if refs {
		return listReferences(ctx, cmd, db, startURL)
	}

	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	withRunID, err := flags.GetInt64("with-run-id")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}

	result, err := runComparison(ctx, db, startURL, withRunID, since)
	if err != nil {
		return err
	}
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

func listStartURLs(ctx context.Context, out io.Writer, db *database.ResultDB) error {
	urls, err := db.ListStartURLs(ctx)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintln(out, "No saved crawls found in the database.")
		fmt.Fprintln(out, "\nUse 'hmfcrawl crawl --save <start-url>' to save a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Saved start URLs (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  • %s\n", u)
	}
	fmt.Fprintln(out, "\nUse 'hmfcrawl history --list <start-url>' to see the crawls of a start URL.")
	return nil
}

func listRunHistory(ctx context.Context, out io.Writer, db *database.ResultDB, startURL string) error {
	runs, err := db.GetRunHistory(ctx, startURL)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No saved crawls found for %s\n", startURL)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", startURL, len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %6s  %6s  %7s  %7s  %s\n", "ID", "Date", "Pages", "Failed", "Total", "Unique", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %6d  %6d  %7d  %7d  %s\n",
			run.ID,
			run.CrawledAt.Local().Format("2006-01-02 15:04:05"),
			run.Pages, run.FailedPages, run.Total, run.Unique,
			runStatus(run),
		)
	}
	fmt.Fprintln(out, "\nUse 'hmfcrawl history <start-url>' to compare the latest two crawls.")
	return nil
}

func runStatus(run database.RunMetadata) string {
	switch {
	case run.Error != "":
		return "error"
	case run.TimedOut:
		return "timed out"
	default:
		return "ok"
	}
}

func listReferences(ctx context.Context, cmd *cobra.Command, db *database.ResultDB, startURL string) error {
	flags := cmd.Flags()
	runID, err := flags.GetInt64("run-id")
	if err != nil {
		return err
	}
	region, err := flags.GetString("region")
	if err != nil {
		return err
	}
	resourceType, err := flags.GetString("type")
	if err != nil {
		return err
	}
	scopeName, err := flags.GetString("scope")
	if err != nil {
		return err
	}

	if runID == 0 {
		runs, err := db.GetRunHistory(ctx, startURL)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no saved crawls found for %s", startURL)
		}
		runID = runs[0].ID
	}

	refs, err := db.QueryReferences(ctx, runID, database.ReferenceFilter{
		Region:       model.Region(strings.ToUpper(region)),
		ResourceType: model.ResourceType(strings.ToUpper(resourceType)),
		Scope:        model.Scope(strings.ToUpper(scopeName)),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "References of run %d (%d):\n\n", runID, len(refs))
	for _, ref := range refs {
		fmt.Fprintf(out, "  %-6s  %-8s  %-8s  %s\n", ref.Region, ref.ResourceType, ref.Scope, ref.ResolvedURL)
		fmt.Fprintf(out, "          on %s: %s\n", ref.PageURL, ref.Label)
	}
	return nil
}

// ComparisonResult holds the differences between two crawls of a start URL.
type ComparisonResult struct {
	StartURL    string      `json:"start_url"`
	PreviousRun RunSnapshot `json:"previous_run"`
	CurrentRun  RunSnapshot `json:"current_run"`

	// Trend is "grown", "shrunk" or "unchanged", based on unique references.
	Trend string `json:"trend"`

	Regions []CountChange `json:"regions"`
	Types   []CountChange `json:"types"`
	Scopes  []CountChange `json:"scopes"`

	NewPages     []string `json:"new_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`

	// NewFailures are pages that fail now but were absent or fine before.
	NewFailures []string `json:"new_failures,omitempty"`
}

// RunSnapshot describes one side of a comparison.
type RunSnapshot struct {
	ID          int64     `json:"id"`
	DateCrawled time.Time `json:"date_crawled"`
	Pages       int       `json:"pages"`
	FailedPages int       `json:"failed_pages"`
	Total       int       `json:"total"`
	Unique      int       `json:"unique"`
	TimedOut    bool      `json:"timed_out"`
}

// CountChange is a unique-reference count in both crawls.
type CountChange struct {
	Name     string `json:"name"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// runComparison selects the two runs to compare and builds the result.
func runComparison(ctx context.Context, db *database.ResultDB, startURL string, withRunID int64, since string) (*ComparisonResult, error) {
	runs, err := db.GetRunHistory(ctx, startURL)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no saved crawls found for %s", startURL)
	}
	if len(runs) < 2 && withRunID == 0 && since == "" {
		return nil, fmt.Errorf("at least 2 saved crawls are required for comparison (found %d)", len(runs))
	}

	currentID := runs[0].ID
	var previousID int64

	switch {
	case withRunID > 0:
		previousID = withRunID
	case since != "":
		day, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// runs are newest first; the oldest run on or after day is wanted.
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].CrawledAt.Before(day) {
				previousID = runs[i].ID
				break
			}
		}
		if previousID == 0 {
			return nil, fmt.Errorf("no crawls found since %s", since)
		}
	default:
		previousID = runs[1].ID
	}
	if previousID == currentID {
		return nil, errors.New("the selected crawl is the latest one; at least 2 crawls are required for comparison")
	}

	current, err := db.GetSiteReportByID(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("run with ID %d not found", currentID)
	}
	previous, err := db.GetSiteReportByID(ctx, previousID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, fmt.Errorf("run with ID %d not found", previousID)
	}
	if previous.StartURL != startURL {
		return nil, fmt.Errorf("run ID %d belongs to %s, not %s", previousID, previous.StartURL, startURL)
	}

	result := compareReports(previous, current)
	result.PreviousRun.ID = previousID
	result.CurrentRun.ID = currentID
	return result, nil
}

// compareReports computes the differences between two reports.
func compareReports(previous, current *model.SiteReport) *ComparisonResult {
	prevSummary := model.Summarize(previous.Pages)
	currSummary := model.Summarize(current.Pages)

	result := &ComparisonResult{
		StartURL:    current.StartURL,
		PreviousRun: snapshotOf(previous, prevSummary),
		CurrentRun:  snapshotOf(current, currSummary),
	}

	for _, region := range model.Regions {
		result.Regions = append(result.Regions, countChange(string(region),
			prevSummary.Regions[region].Unique, currSummary.Regions[region].Unique))
	}
	for _, t := range model.TypeColumnsOf(prevSummary.Types, currSummary.Types) {
		p, c := prevSummary.Types[t], currSummary.Types[t]
		if p == 0 && c == 0 {
			continue
		}
		result.Types = append(result.Types, countChange(string(t), p, c))
	}
	for _, sc := range model.Scopes {
		result.Scopes = append(result.Scopes, countChange(string(sc), prevSummary.Scopes[sc], currSummary.Scopes[sc]))
	}

	prevPages := pagesByURL(previous.Pages)
	currPages := pagesByURL(current.Pages)
	for u, page := range currPages {
		before, existed := prevPages[u]
		if !existed {
			result.NewPages = append(result.NewPages, u)
		}
		if page.Failed() && (!existed || !before.Failed()) {
			result.NewFailures = append(result.NewFailures, u)
		}
	}
	for u := range prevPages {
		if _, ok := currPages[u]; !ok {
			result.RemovedPages = append(result.RemovedPages, u)
		}
	}
	sort.Strings(result.NewPages)
	sort.Strings(result.RemovedPages)
	sort.Strings(result.NewFailures)

	switch {
	case currSummary.Unique > prevSummary.Unique:
		result.Trend = trendGrown
	case currSummary.Unique < prevSummary.Unique:
		result.Trend = trendShrunk
	default:
		result.Trend = trendUnchanged
	}
	return result
}

func snapshotOf(r *model.SiteReport, s model.Summary) RunSnapshot {
	return RunSnapshot{
		DateCrawled: r.DateCrawled,
		Pages:       s.Pages,
		FailedPages: s.FailedPages,
		Total:       s.Total,
		Unique:      s.Unique,
		TimedOut:    r.TimedOut,
	}
}

func countChange(name string, previous, current int) CountChange {
	return CountChange{Name: name, Previous: previous, Current: current, Delta: current - previous}
}

func pagesByURL(pages []*model.PageRecord) map[string]*model.PageRecord {
	m := make(map[string]*model.PageRecord, len(pages))
	for _, p := range pages {
		if p != nil {
			m[p.RequestURL] = p
		}
	}
	return m
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	md.H1("Crawl Comparison: " + result.StartURL)
	md.PlainText("")
	md.PlainText("**Trend:** " + formatTrend(result.Trend))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", result.PreviousRun.DateCrawled.Format("2006-01-02 15:04"), result.CurrentRun.DateCrawled.Format("2006-01-02 15:04"), "-"},
			metricRow("Pages", result.PreviousRun.Pages, result.CurrentRun.Pages),
			metricRow("Failed pages", result.PreviousRun.FailedPages, result.CurrentRun.FailedPages),
			metricRow("Total", result.PreviousRun.Total, result.CurrentRun.Total),
			metricRow("Unique", result.PreviousRun.Unique, result.CurrentRun.Unique),
		},
	})
	md.PlainText("")

	for _, section := range []struct {
		title   string
		changes []CountChange
	}{
		{"Unique Links by Region", result.Regions},
		{"Unique Links by Resource Type", result.Types},
		{"Unique Links by Scope", result.Scopes},
	} {
		if len(section.changes) == 0 {
			continue
		}
		md.H2(section.title)
		md.PlainText("")
		rows := make([][]string, 0, len(section.changes))
		for _, c := range section.changes {
			rows = append(rows, metricRow(c.Name, c.Previous, c.Current))
		}
		md.Table(markdown.TableSet{Header: []string{"Name", "Previous", "Current", "Change"}, Rows: rows})
		md.PlainText("")
	}

	writeURLList := func(title string, urls []string) {
		if len(urls) == 0 {
			return
		}
		md.H2(fmt.Sprintf("%s (%d)", title, len(urls)))
		md.PlainText("")
		items := make([]string, 0, len(urls))
		for _, u := range urls {
			items = append(items, "`"+u+"`")
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	writeURLList("New Pages", result.NewPages)
	writeURLList("Removed Pages", result.RemovedPages)
	writeURLList("New Failures", result.NewFailures)

	return md.Build()
}

func metricRow(name string, previous, current int) []string {
	return []string{name, strconv.Itoa(previous), strconv.Itoa(current), formatDelta(current - previous)}
}

func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", result.StartURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nTrend: %s\n", formatTrend(result.Trend))
	fmt.Fprintf(out, "\nPrevious crawl: %s (run %d)\n", result.PreviousRun.DateCrawled.Format("2006-01-02 15:04:05"), result.PreviousRun.ID)
	fmt.Fprintf(out, "Current crawl:  %s (run %d)\n", result.CurrentRun.DateCrawled.Format("2006-01-02 15:04:05"), result.CurrentRun.ID)

	line := func(name string, previous, current int) {
		fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", name, previous, current, formatDelta(current-previous))
	}
	header := func(title string) {
		fmt.Fprintf(out, "\n%s:\n", title)
		fmt.Fprintf(out, "  %-12s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
		fmt.Fprintln(out, "  "+strings.Repeat("-", 47))
	}

	header("Summary")
	line("Pages", result.PreviousRun.Pages, result.CurrentRun.Pages)
	line("Failed", result.PreviousRun.FailedPages, result.CurrentRun.FailedPages)
	line("Total", result.PreviousRun.Total, result.CurrentRun.Total)
	line("Unique", result.PreviousRun.Unique, result.CurrentRun.Unique)

	for _, section := range []struct {
		title   string
		changes []CountChange
	}{
		{"Unique links by region", result.Regions},
		{"Unique links by type", result.Types},
		{"Unique links by scope", result.Scopes},
	} {
		if len(section.changes) == 0 {
			continue
		}
		header(section.title)
		for _, c := range section.changes {
			line(c.Name, c.Previous, c.Current)
		}
	}

	for _, list := range []struct {
		title  string
		marker string
		urls   []string
	}{
		{"New pages", "+", result.NewPages},
		{"Removed pages", "-", result.RemovedPages},
		{"New failures", "!", result.NewFailures},
	} {
		if len(list.urls) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%d):\n", list.title, len(list.urls))
		for _, u := range list.urls {
			fmt.Fprintf(out, "  [%s] %s\n", list.marker, u)
		}
	}
	return nil
}

func formatTrend(trend string) string {
	switch trend {
	case trendGrown:
		return "GROWN (more unique links)"
	case trendShrunk:
		return "SHRUNK (fewer unique links)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a delta with its sign.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
