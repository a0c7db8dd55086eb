package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// pathFilter decides whether a candidate URL may be crawled based on glob
// patterns matched against its path.
//
// Patterns containing "/" match the whole path, with "*" staying inside one
// segment and "**" crossing segments ("/admin/**"). Patterns without "/"
// match the last path segment ("*.pdf").
type pathFilter struct {
	ignore []pathPattern
	follow []pathPattern
}

type pathPattern struct {
	g        glob.Glob
	basename bool
}

func newPathFilter(ignore, follow []string) (*pathFilter, error) {
	f := &pathFilter{}
	var err error
	if f.ignore, err = compilePatterns(ignore); err != nil {
		return nil, err
	}
	if f.follow, err = compilePatterns(follow); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(patterns []string) ([]pathPattern, error) {
	compiled := make([]pathPattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
		compiled = append(compiled, pathPattern{g: g, basename: !strings.Contains(p, "/")})
	}
	return compiled, nil
}

// Allow reports whether rawURL passes the filter: it must match no ignore
// pattern and, if follow patterns exist, at least one of them.
func (f *pathFilter) Allow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.ignore {
		if pattern.match(p) {
			return false
		}
	}
	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if pattern.match(p) {
			return true
		}
	}
	return false
}

func (p pathPattern) match(urlPath string) bool {
	if p.basename {
		return p.g.Match(path.Base(urlPath))
	}
	return p.g.Match(urlPath)
}
