package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// MarkdownWriter outputs reports as GitHub flavored Markdown with tables
// and a mermaid pie chart of resource types.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.SiteReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, report, summary)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the crawl information and summary sections only.
func (w *MarkdownWriter) WriteSummary(report *model.SiteReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, report, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SiteReport, summary model.Summary) {
	md.H1("hmfcrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + report.StartURL + "`"},
			{"Crawl Date", report.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.String()},
			{"Pages", strconv.Itoa(summary.Pages)},
			{"Failed Pages", strconv.Itoa(summary.FailedPages)},
			{"Max Depth / Max Pages", strconv.Itoa(report.Settings.MaxDepth) + " / " + strconv.Itoa(report.Settings.MaxPages)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SiteReport, summary model.Summary) {
	md.H2("Links by Region")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Regions)+1)
	for _, region := range model.Regions {
		rc := summary.Regions[region]
		rows = append(rows, []string{string(region), strconv.Itoa(rc.Total), strconv.Itoa(rc.Unique)})
	}
	rows = append(rows, []string{"**All**", "**" + strconv.Itoa(summary.Total) + "**", "**" + strconv.Itoa(summary.Unique) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Region", "Total", "Unique"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Resource Types")
	md.PlainText("")
	if summary.Unique > 0 {
		w.writePieChart(md, summary)
	} else {
		md.PlainText("No references found.")
		md.PlainText("")
	}

	scopeRows := make([][]string, 0, len(model.Scopes))
	for _, sc := range model.Scopes {
		scopeRows = append(scopeRows, []string{string(sc), strconv.Itoa(summary.Scopes[sc])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Scope", "Unique"},
		Rows:   scopeRows,
	})
	md.PlainText("")

	switch {
	case report.Failed():
		md.Cautionf("The crawl could not run: %s", report.Error)
	case report.TimedOut:
		md.Warningf("The crawl timed out after %d page(s). Results are partial.", summary.Pages)
	case summary.FailedPages > 0:
		md.Importantf("%d of %d page(s) could not be processed.", summary.FailedPages, summary.Pages)
	default:
		md.Tip("All pages were processed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Unique References by Resource Type"),
		piechart.WithShowData(true),
	)
	for _, t := range model.TypeColumnsOf(summary.Types) {
		if n := summary.Types[t]; n > 0 {
			chart.LabelAndIntValue(string(t), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Pages))
	for _, p := range report.Pages {
		errText := "-"
		if p.Failed() {
			errText = truncateString(p.Error, 60)
		}
		rows = append(rows, []string{
			truncateString(p.PageURL, 80),
			strconv.Itoa(p.Depth),
			regionCell(p, model.RegionHeader),
			regionCell(p, model.RegionMain),
			regionCell(p, model.RegionFooter),
			strconv.Itoa(p.Unique()),
			errText,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Depth", "Header", "Main", "Footer", "Unique", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// regionCell renders a region count as "unique/total".
func regionCell(p *model.PageRecord, region model.Region) string {
	rc := p.RegionCounts[region]
	return strconv.Itoa(rc.Unique) + "/" + strconv.Itoa(rc.Total)
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [hmfcrawl](https://github.com/nao1215/hmfcrawl)*")
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
