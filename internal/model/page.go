package model

// RegionCount holds the reference counts for one region of a page.
type RegionCount struct {
	// Total is the number of references before deduplication.
	Total int `json:"total"`

	// Unique is the number of references after deduplication.
	Unique int `json:"unique"`
}

// PageRecord is the result of processing one crawl task.
// Exactly one PageRecord exists for every task the crawler dequeued and did
// not discard as already visited, including tasks whose fetch failed.
type PageRecord struct {
	// RequestURL is the URL that was requested.
	RequestURL string `json:"request_url"`

	// PageURL is the final URL after redirects. It equals RequestURL when
	// the fetch failed before a response was received.
	PageURL string `json:"page_url"`

	// Depth is the depth of the crawl task that produced this record.
	Depth int `json:"depth"`

	// StatusCode is the HTTP status code, or 0 if no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Counts holds the number of unique references per resource type.
	Counts map[ResourceType]int `json:"counts"`

	// ScopeCounts holds the number of unique references per scope.
	ScopeCounts map[Scope]int `json:"scope_counts"`

	// RegionCounts holds total and unique reference counts per region.
	RegionCounts map[Region]RegionCount `json:"region_counts"`

	// References are the deduplicated references in document order,
	// grouped by region (header, main, footer).
	References []ReferenceRecord `json:"references,omitempty"`

	// Error describes why the page could not be processed.
	// Empty for successfully processed pages.
	Error string `json:"error,omitempty"`
}

// NewPageRecord builds a record from deduplicated references and the
// pre-deduplication totals per region.
func NewPageRecord(requestURL, pageURL string, depth int, refs []ReferenceRecord, totals map[Region]int) *PageRecord {
	p := newEmptyPageRecord(requestURL, pageURL, depth)
	p.References = refs
	for _, ref := range refs {
		p.Counts[ref.ResourceType]++
		p.ScopeCounts[ref.Scope]++
		rc := p.RegionCounts[ref.Region]
		rc.Unique++
		p.RegionCounts[ref.Region] = rc
	}
	for region, total := range totals {
		rc := p.RegionCounts[region]
		rc.Total = total
		p.RegionCounts[region] = rc
	}
	return p
}

// NewFailedPageRecord builds a zero-count record carrying an error message.
func NewFailedPageRecord(requestURL, pageURL string, depth int, err error) *PageRecord {
	p := newEmptyPageRecord(requestURL, pageURL, depth)
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

func newEmptyPageRecord(requestURL, pageURL string, depth int) *PageRecord {
	if pageURL == "" {
		pageURL = requestURL
	}
	p := &PageRecord{
		RequestURL:   requestURL,
		PageURL:      pageURL,
		Depth:        depth,
		Counts:       make(map[ResourceType]int),
		ScopeCounts:  make(map[Scope]int),
		RegionCounts: make(map[Region]RegionCount, len(Regions)),
	}
	for _, region := range Regions {
		p.RegionCounts[region] = RegionCount{}
	}
	return p
}

// Failed reports whether the page could not be processed.
func (p *PageRecord) Failed() bool {
	return p.Error != ""
}

// Total returns the number of references on the page before deduplication.
func (p *PageRecord) Total() int {
	n := 0
	for _, rc := range p.RegionCounts {
		n += rc.Total
	}
	return n
}

// Unique returns the number of references on the page after deduplication.
func (p *PageRecord) Unique() int {
	return len(p.References)
}

// ReferencesIn returns the page's references for a single region.
func (p *PageRecord) ReferencesIn(region Region) []ReferenceRecord {
	var refs []ReferenceRecord
	for _, ref := range p.References {
		if ref.Region == region {
			refs = append(refs, ref)
		}
	}
	return refs
}
