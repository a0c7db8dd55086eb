package extract

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/hmfcrawl/internal/model"
	"github.com/nao1215/hmfcrawl/internal/urlnorm"
)

// Default region selectors.
const (
	DefaultHeaderSelector = `header, [role="banner"], .header, .site-header`
	DefaultFooterSelector = `footer, [role="contentinfo"], .footer, .site-footer`
)

// DefaultURLAttributes are the element attributes that carry a single URL.
var DefaultURLAttributes = []string{"href", "src", "poster", "data"}

// Reference is a URL-bearing reference found in a document, before
// classification.
type Reference struct {
	Region      model.Region
	Label       string
	RawHref     string
	ResolvedURL string
}

// Result holds the references of a document grouped by region: header
// references first, then main, then footer, each in document order.
type Result struct {
	References []Reference

	// HeaderFound is false when no element matched the header selector.
	HeaderFound bool

	// FooterFound is false when no element matched the footer selector.
	FooterFound bool
}

// In returns the references of a single region.
func (r *Result) In(region model.Region) []Reference {
	var refs []Reference
	for _, ref := range r.References {
		if ref.Region == region {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Extractor splits documents into header, main and footer regions and
// collects the references in each. It is immutable and safe for concurrent use.
type Extractor struct {
	header   cascadia.Selector
	footer   cascadia.Selector
	urlAttrs []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithURLAttributes adds attributes to the list of single-URL attributes.
func WithURLAttributes(attrs ...string) Option {
	return func(e *Extractor) {
		for _, attr := range attrs {
			attr = strings.ToLower(strings.TrimSpace(attr))
			if attr == "" || attr == "srcset" || attr == "style" {
				continue
			}
			if !slices.Contains(e.urlAttrs, attr) {
				e.urlAttrs = append(e.urlAttrs, attr)
			}
		}
	}
}

// NewExtractor compiles the header and footer selectors.
// Empty selectors fall back to the defaults.
func NewExtractor(headerSelector, footerSelector string, opts ...Option) (*Extractor, error) {
	if strings.TrimSpace(headerSelector) == "" {
		headerSelector = DefaultHeaderSelector
	}
	if strings.TrimSpace(footerSelector) == "" {
		footerSelector = DefaultFooterSelector
	}

	header, err := CompileSelector(headerSelector)
	if err != nil {
		return nil, fmt.Errorf("header selector: %w", err)
	}
	footer, err := CompileSelector(footerSelector)
	if err != nil {
		return nil, fmt.Errorf("footer selector: %w", err)
	}

	e := &Extractor{
		header:   header,
		footer:   footer,
		urlAttrs: append([]string(nil), DefaultURLAttributes...),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CompileSelector parses a comma-separated CSS selector group.
func CompileSelector(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

// ParseDocument parses an HTML document.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Extract collects every reference in doc and attributes it to a region.
// References are resolved against base; those that cannot be resolved are
// dropped.
func (e *Extractor) Extract(doc *goquery.Document, base *url.URL) *Result {
	result := &Result{}
	if doc == nil || len(doc.Nodes) == 0 {
		return result
	}

	tree := NewTree(doc.Nodes[0])
	header := e.locateHeader(doc, tree)
	footer := e.locateFooter(doc, tree)
	result.HeaderFound = header != noParent
	result.FooterFound = footer != noParent

	byRegion := make(map[model.Region][]Reference, len(model.Regions))
	for i := 0; i < tree.Len(); i++ {
		n := tree.Node(i)
		if n.Type != html.ElementNode {
			continue
		}

		region := model.RegionMain
		switch {
		case tree.Within(i, header):
			region = model.RegionHeader
		case tree.Within(i, footer):
			region = model.RegionFooter
		}

		for _, ref := range e.elementReferences(doc, n, base) {
			ref.Region = region
			byRegion[region] = append(byRegion[region], ref)
		}
	}

	for _, region := range model.Regions {
		result.References = append(result.References, byRegion[region]...)
	}
	return result
}

// locateHeader returns the index of the first header match. In document
// order the first match is also the outermost one.
func (e *Extractor) locateHeader(doc *goquery.Document, tree *Tree) int {
	matches := doc.FindMatcher(e.header)
	if matches.Length() == 0 {
		return noParent
	}
	i, ok := tree.IndexOf(matches.Nodes[0])
	if !ok {
		return noParent
	}
	return i
}

// locateFooter returns the index of the last footer match, widened to its
// outermost enclosing footer match.
func (e *Extractor) locateFooter(doc *goquery.Document, tree *Tree) int {
	matches := doc.FindMatcher(e.footer)
	if matches.Length() == 0 {
		return noParent
	}
	matched := make(map[int]bool, matches.Length())
	for _, n := range matches.Nodes {
		if i, ok := tree.IndexOf(n); ok {
			matched[i] = true
		}
	}
	last, ok := tree.IndexOf(matches.Nodes[matches.Length()-1])
	if !ok {
		return noParent
	}
	return tree.Outermost(last, func(i int) bool { return matched[i] })
}

// DocumentAnchors returns every resolvable a[href] in doc, regardless of region.
func DocumentAnchors(doc *goquery.Document, base *url.URL) []Reference {
	if doc == nil {
		return nil
	}
	var refs []Reference
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := urlnorm.Resolve(href, base)
		if !ok {
			return
		}
		refs = append(refs, Reference{
			Region:      model.RegionMain,
			Label:       anchorLabel(s, "href"),
			RawHref:     strings.TrimSpace(href),
			ResolvedURL: resolved,
		})
	})
	return refs
}
