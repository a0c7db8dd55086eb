package crawler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/hmfcrawl/internal/extract"
	"github.com/nao1215/hmfcrawl/internal/model"
	"github.com/nao1215/hmfcrawl/internal/urlnorm"
)

// DedupScope selects where reference deduplication applies.
type DedupScope string

const (
	// DedupRegion keeps the first occurrence of a URL within each region.
	DedupRegion DedupScope = "region"

	// DedupPage keeps the first occurrence of a URL on the whole page.
	DedupPage DedupScope = "page"
)

// ErrInvalidDedupScope is returned for an unknown DedupScope value.
var ErrInvalidDedupScope = errors.New("invalid dedup scope: must be region or page")

// ParseDedupScope converts a string to a DedupScope. Empty selects DedupRegion.
func ParseDedupScope(s string) (DedupScope, error) {
	switch DedupScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupRegion:
		return DedupRegion, nil
	case DedupPage:
		return DedupPage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDedupScope, s)
	}
}

// Settings is the immutable configuration of one crawl. It is built once
// and shared by every component of that crawl.
type Settings struct {
	// StartURL is the absolute http(s) URL the crawl starts from.
	StartURL string

	// MaxDepth is the deepest task depth whose candidates are still followed.
	// 0 processes only the start page.
	MaxDepth int

	// MaxPages bounds the number of page records.
	MaxPages int

	// SameOriginOnly requires scheme, host and port to match the start URL.
	SameOriginOnly bool

	// IncludeSubdomains treats subdomains of the start host as internal.
	// Ignored when SameOriginOnly is set.
	IncludeSubdomains bool

	// ParamIgnorePrefixes lists query parameter name prefixes removed during
	// normalization.
	ParamIgnorePrefixes []string

	// HeaderSelector and FooterSelector locate the page regions.
	HeaderSelector string
	FooterSelector string

	// URLAttributes are extra single-URL attributes to scan besides
	// href, src, poster and data.
	URLAttributes []string

	// FollowFromHeaderOnly restricts crawl candidates to header references.
	FollowFromHeaderOnly bool

	// DedupByURL enables per-page deduplication of references.
	DedupByURL bool

	// DedupScope selects region-level or page-level deduplication.
	DedupScope DedupScope

	// IgnorePatterns and FollowPatterns filter crawl candidates by URL path.
	IgnorePatterns []string
	FollowPatterns []string
}

// DefaultSettings returns the default settings for a start URL.
func DefaultSettings(startURL string) Settings {
	return Settings{
		StartURL:             startURL,
		MaxDepth:             2,
		MaxPages:             300,
		SameOriginOnly:       true,
		ParamIgnorePrefixes:  slices.Clone(urlnorm.DefaultIgnorePrefixes),
		HeaderSelector:       extract.DefaultHeaderSelector,
		FooterSelector:       extract.DefaultFooterSelector,
		FollowFromHeaderOnly: true,
		DedupByURL:           true,
		DedupScope:           DedupRegion,
	}
}

// Snapshot returns the settings in report form.
func (s Settings) Snapshot() model.ReportSettings {
	return model.ReportSettings{
		MaxDepth:             s.MaxDepth,
		MaxPages:             s.MaxPages,
		SameOriginOnly:       s.SameOriginOnly,
		IncludeSubdomains:    s.IncludeSubdomains,
		FollowFromHeaderOnly: s.FollowFromHeaderOnly,
		DedupByURL:           s.DedupByURL,
		DedupScope:           string(s.DedupScope),
		HeaderSelector:       s.HeaderSelector,
		FooterSelector:       s.FooterSelector,
		ParamIgnorePrefixes:  slices.Clone(s.ParamIgnorePrefixes),
	}
}
