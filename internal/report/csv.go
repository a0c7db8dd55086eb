package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// CSVSeparator separates the fields of the CSV reports.
const CSVSeparator = ";"

// CSVWriter outputs the per-page table (pages.csv) and, through
// WriteSummary, the metric table (summary.csv). Every field is quoted.
//
// Page columns: pageUrl;total;unique;type_*;scope_*;header_total;
// header_unique;main_total;main_unique;footer_total;footer_unique;error.
// The type columns are the canonical types followed by any extra type
// found in the report.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one header row and one row per page.
func (w *CSVWriter) Write(report *model.SiteReport) (int, error) {
	types := model.TypeColumns(report.Pages)

	head := []string{"pageUrl", "total", "unique"}
	for _, t := range types {
		head = append(head, "type_"+string(t))
	}
	for _, sc := range model.Scopes {
		head = append(head, "scope_"+string(sc))
	}
	for _, region := range model.Regions {
		head = append(head, region.Lower()+"_total", region.Lower()+"_unique")
	}
	head = append(head, "error")

	var sb strings.Builder
	sb.WriteString(strings.Join(head, CSVSeparator))
	sb.WriteString("\n")

	for _, p := range report.Pages {
		row := []string{p.PageURL, strconv.Itoa(p.Total()), strconv.Itoa(p.Unique())}
		for _, t := range types {
			row = append(row, strconv.Itoa(p.Counts[t]))
		}
		for _, sc := range model.Scopes {
			row = append(row, strconv.Itoa(p.ScopeCounts[sc]))
		}
		for _, region := range model.Regions {
			rc := p.RegionCounts[region]
			row = append(row, strconv.Itoa(rc.Total), strconv.Itoa(rc.Unique))
		}
		row = append(row, p.Error)
		writeCSVRow(&sb, row)
	}

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the metric;value table of the report summary.
func (w *CSVWriter) WriteSummary(report *model.SiteReport) (int, error) {
	summary := summaryOf(report)

	var sb strings.Builder
	sb.WriteString("metric" + CSVSeparator + "value\n")

	metric := func(name string, value int) {
		writeCSVRow(&sb, []string{name, strconv.Itoa(value)})
	}
	metric("pages", summary.Pages)
	metric("failed_pages", summary.FailedPages)
	metric("total", summary.Total)
	metric("unique", summary.Unique)
	for _, region := range model.Regions {
		rc := summary.Regions[region]
		metric(region.Lower()+"_total", rc.Total)
		metric(region.Lower()+"_unique", rc.Unique)
	}
	for _, t := range model.TypeColumnsOf(summary.Types) {
		metric("type_"+string(t), summary.Types[t])
	}
	for _, sc := range model.Scopes {
		metric("scope_"+string(sc), summary.Scopes[sc])
	}

	return io.WriteString(w.output, sb.String())
}

// SummaryCSVWriter writes the summary metric table for both Write and
// WriteSummary, so that it can sit next to a CSVWriter in a MultiWriter.
type SummaryCSVWriter struct {
	csv *CSVWriter
}

// NewSummaryCSVWriter creates a SummaryCSVWriter that outputs to the given writer.
func NewSummaryCSVWriter(output io.Writer) *SummaryCSVWriter {
	return &SummaryCSVWriter{csv: NewCSVWriter(output)}
}

// Write outputs the summary metric table.
func (w *SummaryCSVWriter) Write(report *model.SiteReport) (int, error) {
	return w.csv.WriteSummary(report)
}

// WriteSummary outputs the summary metric table.
func (w *SummaryCSVWriter) WriteSummary(report *model.SiteReport) (int, error) {
	return w.csv.WriteSummary(report)
}

func writeCSVRow(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(CSVSeparator)
		}
		sb.WriteString(quoteCSV(f))
	}
	sb.WriteString("\n")
}

// quoteCSV wraps a field in double quotes, doubling embedded quotes.
func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
