package config

import (
	"maps"
	"strings"
)

// SiteConfig holds site-specific crawl configuration for one host.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth. A pointer so that 0 can be
	// configured explicitly.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the global page budget when positive.
	MaxPages int `yaml:"maxPages,omitempty"`

	// HeaderSelector and FooterSelector override the region selectors.
	HeaderSelector string `yaml:"headerSelector,omitempty"`
	FooterSelector string `yaml:"footerSelector,omitempty"`

	// ParamIgnore replaces the list of ignored query parameter prefixes.
	ParamIgnore []string `yaml:"paramIgnore,omitempty"`

	// FollowFromHeaderOnly overrides whether only header links are followed.
	FollowFromHeaderOnly *bool `yaml:"followFromHeaderOnly,omitempty"`

	// IgnorePatterns are glob patterns on the URL path that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to URL paths matching one of them.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .hmfcrawl configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// site-specific entry over the defaults. Host matching is case-insensitive.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		result.Headers = maps.Clone(result.Headers)
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				siteConfig, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if siteConfig.Depth != nil {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.MaxPages > 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.HeaderSelector != "" {
		result.HeaderSelector = siteConfig.HeaderSelector
	}
	if siteConfig.FooterSelector != "" {
		result.FooterSelector = siteConfig.FooterSelector
	}
	if len(siteConfig.ParamIgnore) > 0 {
		result.ParamIgnore = siteConfig.ParamIgnore
	}
	if siteConfig.FollowFromHeaderOnly != nil {
		result.FollowFromHeaderOnly = siteConfig.FollowFromHeaderOnly
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
