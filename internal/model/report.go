package model

import "time"

// SiteReport is the result of crawling one start URL.
// It is what report writers render and what the results archive stores.
type SiteReport struct {
	// StartURL is the crawl's start URL as given by the user.
	StartURL string `json:"start_url"`

	// DateCrawled is when the crawl started.
	DateCrawled time.Time `json:"date_crawled"`

	// Duration is how long the crawl took.
	Duration time.Duration `json:"duration"`

	// Settings is a snapshot of the effective crawl settings.
	Settings ReportSettings `json:"settings"`

	// Pages holds one record per processed crawl task, in processing order.
	Pages []*PageRecord `json:"pages"`

	// Summary aggregates Pages. It is filled by the summary step.
	Summary Summary `json:"summary"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true when the crawl deadline expired before the frontier
	// was exhausted.
	TimedOut bool `json:"timed_out"`

	// Error holds a fatal error message, if the crawl could not run.
	Error string `json:"error,omitempty"`
}

// ReportSettings records the options a crawl ran with.
type ReportSettings struct {
	MaxDepth             int      `json:"max_depth"`
	MaxPages             int      `json:"max_pages"`
	SameOriginOnly       bool     `json:"same_origin_only"`
	IncludeSubdomains    bool     `json:"include_subdomains"`
	FollowFromHeaderOnly bool     `json:"follow_from_header_only"`
	DedupByURL           bool     `json:"dedup_by_url"`
	DedupScope           string   `json:"dedup_scope"`
	HeaderSelector       string   `json:"header_selector"`
	FooterSelector       string   `json:"footer_selector"`
	ParamIgnorePrefixes  []string `json:"param_ignore_prefixes,omitempty"`
}

// NewSiteReport creates an empty report for a start URL.
func NewSiteReport(startURL string) *SiteReport {
	return &SiteReport{
		StartURL:    startURL,
		DateCrawled: time.Now(),
		Pages:       make([]*PageRecord, 0),
	}
}

// AddStep records that a pipeline step has run.
func (r *SiteReport) AddStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// Failed reports whether the crawl itself failed.
func (r *SiteReport) Failed() bool {
	return r.Error != ""
}
