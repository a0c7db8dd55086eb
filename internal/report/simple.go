package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every reference below its page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists the references of each page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report: crawl information, summary and one line
// per page.
func (w *SimpleWriter) Write(report *model.SiteReport) (int, error) {
	var sb strings.Builder
	summary := summaryOf(report)

	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	w.writePages(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the short console summary printed after a crawl.
func (w *SimpleWriter) WriteSummary(report *model.SiteReport) (int, error) {
	summary := summaryOf(report)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Start URL: %s\n", report.StartURL)
	fmt.Fprintf(&sb, "Pages: %d (%d failed)\n", summary.Pages, summary.FailedPages)
	for _, region := range model.Regions {
		fmt.Fprintf(&sb, "%-6s links (unique per page): %d\n", region, summary.Regions[region].Unique)
	}
	if report.TimedOut {
		sb.WriteString("Crawl timed out, results are partial\n")
	}
	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SiteReport, summary model.Summary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                           HMFCRAWL REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Start URL:    %s\n", report.StartURL)
	fmt.Fprintf(sb, "Crawl Date:   %s\n", report.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:     %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Settings:     maxDepth=%d maxPages=%d sameOriginOnly=%t includeSubdomains=%t\n",
		report.Settings.MaxDepth, report.Settings.MaxPages,
		report.Settings.SameOriginOnly, report.Settings.IncludeSubdomains)
	fmt.Fprintf(sb, "              followFromHeaderOnly=%t dedupByUrl=%t dedupScope=%s\n",
		report.Settings.FollowFromHeaderOnly, report.Settings.DedupByURL, report.Settings.DedupScope)
	fmt.Fprintf(sb, "Pages:        %d (%d failed, max depth %d)\n", summary.Pages, summary.FailedPages, summary.MaxDepth)
	fmt.Fprintf(sb, "Status:       %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary model.Summary) {
	rule(sb, "-")
	sb.WriteString("SUMMARY\n")
	rule(sb, "-")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  %-10s %8s %8s\n", "REGION", "TOTAL", "UNIQUE")
	for _, region := range model.Regions {
		rc := summary.Regions[region]
		fmt.Fprintf(sb, "  %-10s %8d %8d\n", region, rc.Total, rc.Unique)
	}
	fmt.Fprintf(sb, "  %-10s %8d %8d\n", "ALL", summary.Total, summary.Unique)
	sb.WriteString("\n")

	var types []string
	for _, t := range model.TypeColumnsOf(summary.Types) {
		if n := summary.Types[t]; n > 0 {
			types = append(types, fmt.Sprintf("%s=%d", t, n))
		}
	}
	if len(types) > 0 {
		fmt.Fprintf(sb, "  Types:  %s\n", strings.Join(types, " "))
	}

	scopes := make([]string, 0, len(model.Scopes))
	for _, sc := range model.Scopes {
		scopes = append(scopes, fmt.Sprintf("%s=%d", sc, summary.Scopes[sc]))
	}
	fmt.Fprintf(sb, "  Scopes: %s\n", strings.Join(scopes, " "))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.SiteReport) {
	if len(report.Pages) == 0 {
		return
	}

	rule(sb, "-")
	sb.WriteString("PAGES\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, p := range report.Pages {
		if p.Failed() {
			fmt.Fprintf(sb, "  [%d] %s\n      ERROR: %s\n", p.Depth, p.PageURL, p.Error)
			continue
		}

		h := p.RegionCounts[model.RegionHeader]
		m := p.RegionCounts[model.RegionMain]
		f := p.RegionCounts[model.RegionFooter]
		fmt.Fprintf(sb, "  [%d] %s\n      header %d/%d  main %d/%d  footer %d/%d  (unique/total)\n",
			p.Depth, p.PageURL, h.Unique, h.Total, m.Unique, m.Total, f.Unique, f.Total)

		if w.verbose {
			for _, ref := range p.References {
				fmt.Fprintf(sb, "      %-6s %-6s %-8s %s %s\n",
					ref.Region, ref.ResourceType, ref.Scope, ref.ResolvedURL, ref.Label)
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by hmfcrawl\n")
	sb.WriteString("https://github.com/nao1215/hmfcrawl\n")
	rule(sb, "=")
}
