// Package pipeline runs the processing of a start URL as a sequence of steps.
//
// The default pipeline crawls the site and then aggregates the page records
// into a summary. Each step receives the SiteReport built so far and adds to
// it. BatchProcessor runs one pipeline per start URL with bounded
// concurrency and returns the reports in input order.
package pipeline
