// Package report renders crawl reports.
//
// Writers:
//   - SimpleWriter: text output for the terminal
//   - JSONWriter and FullJSONWriter: JSON output for tool integration
//   - MarkdownWriter: Markdown with tables and a resource type pie chart
//   - CSVWriter and SummaryCSVWriter: the pages.csv and summary.csv tables
//
// All writers implement Writer and can be combined with MultiWriter.
package report
