package report

import (
	"io"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// Writer defines the interface for report output.
// Implementations render a crawl report in one format.
type Writer interface {
	// Write outputs the full report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.SiteReport) (int, error)

	// WriteSummary outputs only the aggregated summary of the report.
	WriteSummary(report *model.SiteReport) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a CSV file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all Writers and returns the total bytes
// written. It stops at the first error.
func (m *MultiWriter) Write(report *model.SiteReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all Writers.
func (m *MultiWriter) WriteSummary(report *model.SiteReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// summaryOf returns the report's summary, computing it from the pages when
// the summary step has not run.
func summaryOf(report *model.SiteReport) model.Summary {
	if report.Summary.Regions == nil {
		return model.Summarize(report.Pages)
	}
	return report.Summary
}

func statusText(report *model.SiteReport) string {
	switch {
	case report.Failed():
		return "ERROR - " + report.Error
	case report.TimedOut:
		return "TIMED OUT (partial results)"
	default:
		return "Complete"
	}
}
