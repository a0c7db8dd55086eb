package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is shorthand for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report, page records and references included.
func (w *JSONWriter) Write(report *model.SiteReport) (int, error) {
	report.Summary = summaryOf(report)
	return w.writeJSON(report)
}

// SummaryJSON is the JSON form of a summary-only report.
type SummaryJSON struct {
	StartURL string        `json:"start_url"`
	TimedOut bool          `json:"timed_out"`
	Error    string        `json:"error,omitempty"`
	Summary  model.Summary `json:"summary"`
}

// WriteSummary outputs the start URL and the aggregated summary.
func (w *JSONWriter) WriteSummary(report *model.SiteReport) (int, error) {
	return w.writeJSON(SummaryJSON{
		StartURL: report.StartURL,
		TimedOut: report.TimedOut,
		Error:    report.Error,
		Summary:  summaryOf(report),
	})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a report with the version of hmfcrawl that produced it.
type JSONReport struct {
	Version string            `json:"version"`
	Report  *model.SiteReport `json:"report"`
}

// FullJSONWriter outputs reports wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter
	version string
}

// NewFullJSONWriter creates a writer for versioned reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with version information.
func (w *FullJSONWriter) Write(report *model.SiteReport) (int, error) {
	report.Summary = summaryOf(report)
	return w.writeJSON(JSONReport{Version: w.version, Report: report})
}
