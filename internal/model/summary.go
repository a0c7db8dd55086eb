package model

import (
	"slices"
	"sort"
)

// Summary aggregates the page records of one crawl.
type Summary struct {
	// Pages is the number of page records, failed ones included.
	Pages int `json:"pages"`

	// FailedPages is the number of records carrying an error.
	FailedPages int `json:"failed_pages"`

	// Total is the sum of pre-deduplication reference counts.
	Total int `json:"total"`

	// Unique is the sum of post-deduplication reference counts.
	Unique int `json:"unique"`

	// Regions sums total and unique counts per region.
	Regions map[Region]RegionCount `json:"regions"`

	// Types sums unique references per resource type.
	Types map[ResourceType]int `json:"types"`

	// Scopes sums unique references per scope.
	Scopes map[Scope]int `json:"scopes"`

	// MaxDepth is the deepest task depth that produced a record.
	MaxDepth int `json:"max_depth"`
}

// Summarize aggregates page records into a Summary.
func Summarize(pages []*PageRecord) Summary {
	s := Summary{
		Regions: make(map[Region]RegionCount, len(Regions)),
		Types:   make(map[ResourceType]int),
		Scopes:  make(map[Scope]int, len(Scopes)),
	}
	for _, region := range Regions {
		s.Regions[region] = RegionCount{}
	}
	for _, scope := range Scopes {
		s.Scopes[scope] = 0
	}

	for _, p := range pages {
		if p == nil {
			continue
		}
		s.Pages++
		if p.Failed() {
			s.FailedPages++
		}
		if p.Depth > s.MaxDepth {
			s.MaxDepth = p.Depth
		}
		s.Total += p.Total()
		s.Unique += p.Unique()
		for region, rc := range p.RegionCounts {
			agg := s.Regions[region]
			agg.Total += rc.Total
			agg.Unique += rc.Unique
			s.Regions[region] = agg
		}
		for t, n := range p.Counts {
			s.Types[t] += n
		}
		for sc, n := range p.ScopeCounts {
			s.Scopes[sc] += n
		}
	}
	return s
}

// TypeColumns returns the resource types to report for the given pages:
// the canonical list followed by any extra scheme-derived types, sorted.
func TypeColumns(pages []*PageRecord) []ResourceType {
	counts := make([]map[ResourceType]int, 0, len(pages))
	for _, p := range pages {
		if p != nil {
			counts = append(counts, p.Counts)
		}
	}
	return TypeColumnsOf(counts...)
}

// TypeColumnsOf is like TypeColumns for plain count maps.
func TypeColumnsOf(counts ...map[ResourceType]int) []ResourceType {
	cols := slices.Clone(ResourceTypes)
	var extra []string
	for _, c := range counts {
		for t := range c {
			if !slices.Contains(cols, t) && !slices.Contains(extra, string(t)) {
				extra = append(extra, string(t))
			}
		}
	}
	sort.Strings(extra)
	for _, t := range extra {
		cols = append(cols, ResourceType(t))
	}
	return cols
}
