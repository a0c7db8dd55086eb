package model

import "strings"

// Region identifies the structural page region a reference was found in.
type Region string

const (
	// RegionHeader is the subtree rooted at the first header-selector match.
	RegionHeader Region = "HEADER"

	// RegionMain is everything that is neither header nor footer.
	RegionMain Region = "MAIN"

	// RegionFooter is the subtree rooted at the last footer-selector match.
	RegionFooter Region = "FOOTER"
)

// Regions lists every region in reporting order.
var Regions = []Region{RegionHeader, RegionMain, RegionFooter}

// Lower returns the region name in lower case, as used in CSV column names.
func (r Region) Lower() string {
	return strings.ToLower(string(r))
}

// Scope describes where a reference points relative to the crawl's start URL.
type Scope string

const (
	// ScopeInternal marks HTTP(S) references belonging to the crawled site.
	ScopeInternal Scope = "INTERNAL"

	// ScopeExternal marks HTTP(S) references to any other site.
	ScopeExternal Scope = "EXTERNAL"

	// ScopeOther marks non-HTTP(S) and malformed references.
	ScopeOther Scope = "OTHER"
)

// Scopes lists every scope in reporting order.
var Scopes = []Scope{ScopeInternal, ScopeExternal, ScopeOther}

// ResourceType is the coarse category of the resource a reference points to.
// Besides the constants below, any non-HTTP(S) scheme without a dedicated
// category is reported as its upper-cased scheme name (e.g. "JAVASCRIPT").
type ResourceType string

// Resource categories.
const (
	ResourceHTML  ResourceType = "HTML"
	ResourceImage ResourceType = "IMAGE"
	ResourceSVG   ResourceType = "SVG"
	ResourcePDF   ResourceType = "PDF"
	ResourceCSS   ResourceType = "CSS"
	ResourceJS    ResourceType = "JS"
	ResourceFont  ResourceType = "FONT"
	ResourceVideo ResourceType = "VIDEO"
	ResourceAudio ResourceType = "AUDIO"
	ResourceJSON  ResourceType = "JSON"
	ResourceXML   ResourceType = "XML"
	ResourceIcon  ResourceType = "ICON"
	ResourceMail  ResourceType = "MAIL"
	ResourceTel   ResourceType = "TEL"
	ResourceData  ResourceType = "DATA"
	ResourceBlob  ResourceType = "BLOB"
	ResourceFTP   ResourceType = "FTP"
	ResourceOther ResourceType = "OTHER"
)

// ResourceTypes is the canonical type list. Reports always emit a column for
// each of these, followed by any additional scheme-derived types in sorted order.
var ResourceTypes = []ResourceType{
	ResourceHTML, ResourceImage, ResourceSVG, ResourcePDF, ResourceCSS, ResourceJS,
	ResourceFont, ResourceVideo, ResourceAudio, ResourceJSON, ResourceXML, ResourceIcon,
	ResourceMail, ResourceTel, ResourceData, ResourceBlob, ResourceFTP, ResourceOther,
}

// ReferenceRecord is one URL-bearing reference discovered on a page.
// Records are owned by their PageRecord and never modified once built.
type ReferenceRecord struct {
	// Region is where on the page the reference was found.
	Region Region `json:"region"`

	// Label is the anchor text for links, or a "[tag@attr]" placeholder.
	Label string `json:"label"`

	// RawHref is the attribute value as written in the document.
	RawHref string `json:"raw_href"`

	// ResolvedURL is RawHref resolved against the page's final URL.
	ResolvedURL string `json:"resolved_url"`

	// ResourceType is the category of the referenced resource.
	ResourceType ResourceType `json:"resource_type"`

	// Scope is the origin relation to the crawl's start URL.
	Scope Scope `json:"scope"`
}

// Followable reports whether the reference is a crawl candidate:
// an internal HTML page.
func (r ReferenceRecord) Followable() bool {
	return r.ResourceType == ResourceHTML && r.Scope == ScopeInternal
}
