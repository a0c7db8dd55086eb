package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/hmfcrawl/internal/urlnorm"
)

// styleURLPattern matches url(...) tokens in inline CSS. A double-quoted,
// single-quoted or bare argument lands in group 1, 2 or 3.
var styleURLPattern = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^)]*?))\s*\)`)

// elementReferences returns the references carried by a single element:
// single-URL attributes in configured order, then srcset candidates, then
// url(...) tokens of the inline style.
func (e *Extractor) elementReferences(doc *goquery.Document, n *html.Node, base *url.URL) []Reference {
	var refs []Reference
	tag := strings.ToLower(n.Data)

	add := func(raw, label string) {
		resolved, ok := urlnorm.Resolve(raw, base)
		if !ok {
			return
		}
		refs = append(refs, Reference{
			Label:       label,
			RawHref:     strings.TrimSpace(raw),
			ResolvedURL: resolved,
		})
	}

	for _, attr := range e.urlAttrs {
		val, ok := attrValue(n, attr)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		label := placeholder(tag, attr)
		if tag == "a" {
			label = anchorLabel(doc.FindNodes(n), attr)
		}
		add(val, label)
	}

	if val, ok := attrValue(n, "srcset"); ok {
		for _, candidate := range SrcsetURLs(val) {
			add(candidate, placeholder(tag, "srcset"))
		}
	}

	if val, ok := attrValue(n, "style"); ok {
		for _, candidate := range StyleURLs(val) {
			add(candidate, placeholder(tag, "style-url"))
		}
	}

	return refs
}

// SrcsetURLs returns the URL token of every comma-separated srcset entry.
func SrcsetURLs(srcset string) []string {
	var urls []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		urls = append(urls, fields[0])
	}
	return urls
}

// StyleURLs returns every url(...) argument found in an inline style.
func StyleURLs(style string) []string {
	var urls []string
	for _, m := range styleURLPattern.FindAllStringSubmatch(style, -1) {
		for _, group := range m[1:] {
			if u := strings.TrimSpace(group); u != "" {
				urls = append(urls, u)
				break
			}
		}
	}
	return urls
}

// anchorLabel returns the anchor's visible text, whitespace-collapsed and
// NFC-normalized, or a placeholder when the anchor has no text.
func anchorLabel(s *goquery.Selection, attr string) string {
	if text := CleanText(s.Text()); text != "" {
		return text
	}
	return placeholder("a", attr)
}

// CleanText collapses runs of whitespace to a single space, trims the
// result and normalizes it to NFC.
func CleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func placeholder(tag, attr string) string {
	return "[" + tag + "@" + attr + "]"
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
