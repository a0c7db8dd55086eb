// Package urlnorm canonicalizes URLs so that equivalent references compare
// equal. Canonical forms serve as visited-set keys and deduplication keys.
package urlnorm

import (
	"net/url"
	"strings"
)

// DefaultIgnorePrefixes are the tracking-parameter prefixes stripped by default.
var DefaultIgnorePrefixes = []string{"utm_", "gclid", "fbclid", "mc_", "pk_"}

// Normalize returns the canonical form of raw.
//
// The fragment is removed, scheme and host are lower-cased, default ports are
// dropped, an empty http(s) path becomes "/", and every query parameter whose
// name starts with one of ignorePrefixes (case-insensitive) is removed. The
// remaining parameters keep their original encoding and order.
//
// If raw cannot be parsed, the input truncated at the first "#" is returned.
// Normalize is idempotent.
func Normalize(raw string, ignorePrefixes []string) string {
	stripped, _, _ := strings.Cut(raw, "#")

	u, err := url.Parse(stripped)
	if err != nil {
		return stripped
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if isHTTP(u.Scheme) {
		u.Host = stripDefaultPort(u.Scheme, u.Host)
		if u.Path == "" && u.Opaque == "" && u.Host != "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}

	u.RawQuery = filterQuery(u.RawQuery, ignorePrefixes)
	u.ForceQuery = false

	return u.String()
}

// stripTabsAndNewlines removes ASCII tab, LF and CR anywhere in a URL, the
// way browsers do before parsing.
var stripTabsAndNewlines = strings.NewReplacer("\t", "", "\n", "", "\r", "")

// Resolve resolves href against base and returns the absolute URL.
// The second result is false when href cannot be parsed.
func Resolve(href string, base *url.URL) (string, bool) {
	href = stripTabsAndNewlines.Replace(strings.TrimSpace(href))
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", false
		}
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}

// IsHTTP reports whether raw is an absolute http or https URL.
func IsHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return isHTTP(strings.ToLower(u.Scheme)) && u.Host != ""
}

func isHTTP(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// filterQuery drops empty pairs and pairs whose name carries an ignored prefix.
func filterQuery(rawQuery string, ignorePrefixes []string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if hasIgnoredPrefix(name, ignorePrefixes) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func hasIgnoredPrefix(name string, ignorePrefixes []string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range ignorePrefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
