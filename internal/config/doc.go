// Package config provides the configuration of hmfcrawl: crawl bounds,
// region selectors, fetch options, report outputs and the optional
// .hmfcrawl file with per-host overrides.
package config
