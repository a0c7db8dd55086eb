// Package main provides the entry point for the hmfcrawl CLI.
//
// hmfcrawl crawls a website breadth-first and inventories the links found in
// the header, main content and footer of every page, classified by resource
// type and scope.
//
// Usage:
//
//	hmfcrawl crawl <start-url>
//	hmfcrawl history <start-url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
