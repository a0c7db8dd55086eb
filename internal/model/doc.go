// Package model defines the data structures shared by the crawler, the
// report writers and the results archive.
//
// The main types are:
//   - ReferenceRecord: one URL-bearing reference found on a page
//   - PageRecord: the result of processing one crawl task
//   - Summary: aggregate counts over all page records
//   - SiteReport: everything produced by crawling one start URL
//
// All types serialize to JSON for report output and database storage.
package model
