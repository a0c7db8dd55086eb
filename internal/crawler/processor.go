package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/hmfcrawl/internal/extract"
	"github.com/nao1215/hmfcrawl/internal/fetcher"
	"github.com/nao1215/hmfcrawl/internal/model"
	"github.com/nao1215/hmfcrawl/internal/resource"
	"github.com/nao1215/hmfcrawl/internal/scope"
	"github.com/nao1215/hmfcrawl/internal/urlnorm"
)

// Task is one unit of crawl work: a URL and the depth it was discovered at.
type Task struct {
	URL   string
	Depth int
}

// Processor turns a crawl task into a PageRecord and a list of crawl
// candidates. It holds no per-crawl state and is safe for concurrent use.
type Processor struct {
	fetcher   fetcher.Fetcher
	settings  Settings
	policy    *scope.Policy
	extractor *extract.Extractor
	paths     *pathFilter
}

// NewProcessor creates a Processor. It fails if the start URL, the region
// selectors or the path patterns are invalid.
func NewProcessor(f fetcher.Fetcher, s Settings) (*Processor, error) {
	policy, err := scope.NewPolicy(s.StartURL, s.SameOriginOnly, s.IncludeSubdomains)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.NewExtractor(s.HeaderSelector, s.FooterSelector, extract.WithURLAttributes(s.URLAttributes...))
	if err != nil {
		return nil, err
	}
	paths, err := newPathFilter(s.IgnorePatterns, s.FollowPatterns)
	if err != nil {
		return nil, err
	}
	if s.DedupScope == "" {
		s.DedupScope = DedupRegion
	}
	return &Processor{
		fetcher:   f,
		settings:  s,
		policy:    policy,
		extractor: extractor,
		paths:     paths,
	}, nil
}

// Normalize returns the canonical form of rawURL under the crawl's
// parameter-ignore prefixes.
func (p *Processor) Normalize(rawURL string) string {
	return urlnorm.Normalize(rawURL, p.settings.ParamIgnorePrefixes)
}

// Process fetches and analyzes one page. It always returns a record; on
// failure the record carries zero counts and an error, and no candidates
// are returned.
func (p *Processor) Process(ctx context.Context, task Task) (*model.PageRecord, []string) {
	resp, err := p.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return model.NewFailedPageRecord(task.URL, "", task.Depth, fmt.Errorf("%w: %w", ErrTransport, err)), nil
	}

	fail := func(err error) (*model.PageRecord, []string) {
		record := model.NewFailedPageRecord(task.URL, resp.FinalURL, task.Depth, err)
		record.StatusCode = resp.StatusCode
		record.ContentType = resp.ContentType
		return record, nil
	}

	if !resp.IsSuccess() {
		return fail(fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode))
	}
	if !resp.IsHTML() {
		contentType := strings.TrimSpace(resp.ContentType)
		if contentType == "" {
			contentType = "missing content type"
		}
		return fail(fmt.Errorf("%w: %s", ErrNonHTML, contentType))
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		if base, err = url.Parse(task.URL); err != nil {
			return fail(fmt.Errorf("%w: %w", ErrParse, err))
		}
	}

	doc, err := extract.ParseDocument(bytes.NewReader(resp.Body))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrParse, err))
	}

	result := p.extractor.Extract(doc, base)
	refs, totals := p.classify(result.References)

	record := model.NewPageRecord(task.URL, resp.FinalURL, task.Depth, refs, totals)
	record.StatusCode = resp.StatusCode
	record.ContentType = resp.ContentType

	return record, p.candidates(doc, base, refs, result.HeaderFound)
}

// classify labels references with type and scope and deduplicates them by
// normalized URL, keeping the first occurrence. It also returns the
// pre-deduplication count per region.
func (p *Processor) classify(found []extract.Reference) ([]model.ReferenceRecord, map[model.Region]int) {
	totals := make(map[model.Region]int, len(model.Regions))
	seen := make(map[string]struct{}, len(found))
	refs := make([]model.ReferenceRecord, 0, len(found))

	for _, ref := range found {
		totals[ref.Region]++

		if p.settings.DedupByURL {
			key := p.Normalize(ref.ResolvedURL)
			if p.settings.DedupScope == DedupRegion {
				key = string(ref.Region) + " " + key
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		refs = append(refs, model.ReferenceRecord{
			Region:       ref.Region,
			Label:        ref.Label,
			RawHref:      ref.RawHref,
			ResolvedURL:  ref.ResolvedURL,
			ResourceType: resource.Classify(ref.RawHref, ref.ResolvedURL),
			Scope:        p.policy.Classify(ref.ResolvedURL),
		})
	}
	return refs, totals
}

// candidates returns the normalized, deduplicated URLs to crawl next.
//
// With FollowFromHeaderOnly only followable header references qualify.
// Without it, or when the page has no header, every followable anchor of
// the page qualifies.
func (p *Processor) candidates(doc *goquery.Document, base *url.URL, refs []model.ReferenceRecord, headerFound bool) []string {
	var urls []string
	if p.settings.FollowFromHeaderOnly && headerFound {
		for _, ref := range refs {
			if ref.Region == model.RegionHeader && ref.Followable() {
				urls = append(urls, ref.ResolvedURL)
			}
		}
	} else {
		for _, a := range extract.DocumentAnchors(doc, base) {
			if resource.Classify(a.RawHref, a.ResolvedURL) == model.ResourceHTML && p.policy.InScope(a.ResolvedURL) {
				urls = append(urls, a.ResolvedURL)
			}
		}
	}

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := p.Normalize(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !p.paths.Allow(key) {
			continue
		}
		out = append(out, key)
	}
	return out
}
