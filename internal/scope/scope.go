// Package scope decides whether a URL belongs to the crawled site.
//
// The same Policy is used to label references for reporting and to gate
// recursion, so a reference reported as INTERNAL is always eligible to be
// followed and vice versa.
package scope

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// ErrInvalidStartURL is returned when the start URL is not an absolute
// http(s) URL with a host.
var ErrInvalidStartURL = errors.New("invalid start URL")

// Policy classifies URLs relative to a start URL. It is immutable and safe
// for concurrent use.
type Policy struct {
	startScheme string
	startHost   string
	startPort   string

	sameOriginOnly    bool
	includeSubdomains bool
}

// NewPolicy creates a Policy for startURL.
//
// With sameOriginOnly, scheme, host and port must all match. Otherwise, with
// includeSubdomains, the host must equal the start host or be a subdomain of
// it. Otherwise only the host must match.
func NewPolicy(startURL string, sameOriginOnly, includeSubdomains bool) (*Policy, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidStartURL, startURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %s: must be an absolute http(s) URL", ErrInvalidStartURL, startURL)
	}
	return &Policy{
		startScheme:       scheme,
		startHost:         strings.ToLower(u.Hostname()),
		startPort:         effectivePort(scheme, u.Port()),
		sameOriginOnly:    sameOriginOnly,
		includeSubdomains: includeSubdomains,
	}, nil
}

// Classify returns the scope of an absolute URL. Malformed and non-HTTP(S)
// URLs are OTHER.
func (p *Policy) Classify(absURL string) model.Scope {
	u, err := url.Parse(absURL)
	if err != nil {
		return model.ScopeOther
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return model.ScopeOther
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return model.ScopeOther
	}
	if p.matches(scheme, host, effectivePort(scheme, u.Port())) {
		return model.ScopeInternal
	}
	return model.ScopeExternal
}

// InScope reports whether absURL may be crawled, which is exactly when it is
// classified INTERNAL.
func (p *Policy) InScope(absURL string) bool {
	return p.Classify(absURL) == model.ScopeInternal
}

func (p *Policy) matches(scheme, host, port string) bool {
	switch {
	case p.sameOriginOnly:
		return scheme == p.startScheme && host == p.startHost && port == p.startPort
	case p.includeSubdomains:
		return host == p.startHost || strings.HasSuffix(host, "."+p.startHost)
	default:
		return host == p.startHost
	}
}

func effectivePort(scheme, port string) string {
	if port != "" {
		return port
	}
	if scheme == "https" {
		return "443"
	}
	return "80"
}
