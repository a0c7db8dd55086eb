// Package database stores crawl results in SQLite (modernc.org/sqlite).
//
// ResultDB keeps three tables:
//   - crawl_runs: one row per saved SiteReport, including the full report as JSON
//   - pages: one row per page record of a run
//   - page_references: the deduplicated references of each page
//
// Saved runs back the history command, which lists past crawls of a start
// URL and compares the latest two.
package database
