package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/hmfcrawl/internal/model"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func mustBase(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func mustExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := NewExtractor("", "", opts...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func resolvedIn(res *Result, region model.Region) []string {
	var urls []string
	for _, ref := range res.In(region) {
		urls = append(urls, ref.ResolvedURL)
	}
	return urls
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const samplePage = `<!DOCTYPE html>
<html>
<head><link rel="stylesheet" href="/style.css"></head>
<body>
  <header>
    <a href="/">Home</a>
    <a href="/about">  About
       us </a>
    <img src="/logo.png" srcset="/logo-1x.png 1x, /logo-2x.png 2x">
  </header>
  <main>
    <a href="https://b.test/ext">External</a>
    <div style="background: url('/bg.jpg'); border-image: url(/border.svg)"></div>
    <video poster="/poster.webp" src="/clip.mp4"></video>
  </main>
  <footer>
    <a href="mailto:info@a.test">Mail us</a>
  </footer>
</body>
</html>`

// TestExtractRegions tests region attribution and reference discovery.
func TestExtractRegions(t *testing.T) {
	t.Parallel()

	e := mustExtractor(t)
	res := e.Extract(mustDoc(t, samplePage), mustBase(t, "https://a.test/index.html"))

	t.Run("finds header and footer", func(t *testing.T) {
		t.Parallel()
		if !res.HeaderFound || !res.FooterFound {
			t.Errorf("expected header and footer, got %v %v", res.HeaderFound, res.FooterFound)
		}
	})

	t.Run("header references in document order", func(t *testing.T) {
		t.Parallel()
		want := []string{
			"https://a.test/",
			"https://a.test/about",
			"https://a.test/logo.png",
			"https://a.test/logo-1x.png",
			"https://a.test/logo-2x.png",
		}
		if got := resolvedIn(res, model.RegionHeader); !equalStrings(got, want) {
			t.Errorf("got %v, expected %v", got, want)
		}
	})

	t.Run("main includes head, style urls and media attributes", func(t *testing.T) {
		t.Parallel()
		want := []string{
			"https://a.test/style.css",
			"https://b.test/ext",
			"https://a.test/bg.jpg",
			"https://a.test/border.svg",
			"https://a.test/clip.mp4",
			"https://a.test/poster.webp",
		}
		if got := resolvedIn(res, model.RegionMain); !equalStrings(got, want) {
			t.Errorf("got %v, expected %v", got, want)
		}
	})

	t.Run("footer references", func(t *testing.T) {
		t.Parallel()
		want := []string{"mailto:info@a.test"}
		if got := resolvedIn(res, model.RegionFooter); !equalStrings(got, want) {
			t.Errorf("got %v, expected %v", got, want)
		}
	})

	t.Run("references are grouped header, main, footer", func(t *testing.T) {
		t.Parallel()
		order := map[model.Region]int{model.RegionHeader: 0, model.RegionMain: 1, model.RegionFooter: 2}
		last := 0
		for _, ref := range res.References {
			if order[ref.Region] < last {
				t.Fatalf("region %s out of order", ref.Region)
			}
			last = order[ref.Region]
		}
	})

	t.Run("labels", func(t *testing.T) {
		t.Parallel()
		header := res.In(model.RegionHeader)
		if header[1].Label != "About us" {
			t.Errorf("got label %q, expected collapsed anchor text", header[1].Label)
		}
		if header[2].Label != "[img@src]" {
			t.Errorf("got label %q, expected [img@src]", header[2].Label)
		}
		if header[3].Label != "[img@srcset]" {
			t.Errorf("got label %q, expected [img@srcset]", header[3].Label)
		}
		main := res.In(model.RegionMain)
		if main[2].Label != "[div@style-url]" {
			t.Errorf("got label %q, expected [div@style-url]", main[2].Label)
		}
	})

	t.Run("raw href is kept as written", func(t *testing.T) {
		t.Parallel()
		if got := res.In(model.RegionHeader)[1].RawHref; got != "/about" {
			t.Errorf("got raw href %q", got)
		}
	})
}

// TestExtractFooterIsLastMatch verifies that the last footer match wins and
// that deeply nested references inside it are attributed to the footer.
func TestExtractFooterIsLastMatch(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<div class="footer"><a href="/early">Early</a></div>
	<section>
	  <footer>
	    <div><ul><li><a href="/deep">Deep</a></li></ul></div>
	  </footer>
	</section>
	</body></html>`

	res := mustExtractor(t).Extract(mustDoc(t, page), mustBase(t, "https://a.test/"))

	if got := resolvedIn(res, model.RegionFooter); !equalStrings(got, []string{"https://a.test/deep"}) {
		t.Errorf("footer: got %v", got)
	}
	if got := resolvedIn(res, model.RegionMain); !equalStrings(got, []string{"https://a.test/early"}) {
		t.Errorf("main: got %v", got)
	}
}

// TestExtractHeaderIsFirstMatch verifies that only the first header match
// forms the header region.
func TestExtractHeaderIsFirstMatch(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<div role="banner"><a href="/one">One</a></div>
	<header><a href="/two">Two</a></header>
	</body></html>`

	res := mustExtractor(t).Extract(mustDoc(t, page), mustBase(t, "https://a.test/"))

	if got := resolvedIn(res, model.RegionHeader); !equalStrings(got, []string{"https://a.test/one"}) {
		t.Errorf("header: got %v", got)
	}
	if got := resolvedIn(res, model.RegionMain); !equalStrings(got, []string{"https://a.test/two"}) {
		t.Errorf("main: got %v", got)
	}
}

// TestExtractNestedMatches verifies that nested selector matches resolve to
// the outermost matching element.
func TestExtractNestedMatches(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	<header style="background:url(/hdr.png)">
	  <a href="/outer">Outer</a>
	  <div class="site-header"><a href="/inner">Inner</a></div>
	</header>
	<footer>
	  <a href="/f-outer">Outer</a>
	  <div class="footer"><a href="/f-inner">Inner</a></div>
	</footer>
	</body></html>`

	res := mustExtractor(t).Extract(mustDoc(t, page), mustBase(t, "https://a.test/"))

	wantHeader := []string{"https://a.test/hdr.png", "https://a.test/outer", "https://a.test/inner"}
	if got := resolvedIn(res, model.RegionHeader); !equalStrings(got, wantHeader) {
		t.Errorf("header: got %v, expected %v", got, wantHeader)
	}
	wantFooter := []string{"https://a.test/f-outer", "https://a.test/f-inner"}
	if got := resolvedIn(res, model.RegionFooter); !equalStrings(got, wantFooter) {
		t.Errorf("footer: got %v, expected %v", got, wantFooter)
	}
	if got := res.In(model.RegionMain); len(got) != 0 {
		t.Errorf("expected empty main, got %v", got)
	}
}

// TestExtractWithoutRegions verifies that pages without header or footer
// put every reference in main.
func TestExtractWithoutRegions(t *testing.T) {
	t.Parallel()

	page := `<html><body><a href="/a">A</a><a href="http://[::1">Broken</a><a href="">Empty</a><img src="x.gif"></body></html>`
	res := mustExtractor(t).Extract(mustDoc(t, page), mustBase(t, "https://a.test/dir/page"))

	if res.HeaderFound || res.FooterFound {
		t.Error("expected no header and no footer")
	}
	want := []string{"https://a.test/a", "https://a.test/dir/x.gif"}
	if got := resolvedIn(res, model.RegionMain); !equalStrings(got, want) {
		t.Errorf("got %v, expected %v", got, want)
	}
}

func TestExtractEmptyAnchorLabel(t *testing.T) {
	t.Parallel()

	page := `<html><body><header><a href="/"><img src="/logo.svg"></a></header></body></html>`
	res := mustExtractor(t).Extract(mustDoc(t, page), mustBase(t, "https://a.test/"))

	header := res.In(model.RegionHeader)
	if len(header) != 2 {
		t.Fatalf("got %d header refs, expected 2", len(header))
	}
	if header[0].Label != "[a@href]" {
		t.Errorf("got label %q, expected [a@href]", header[0].Label)
	}
}

func TestExtractCustomSelectorsAndAttributes(t *testing.T) {
	t.Parallel()

	e, err := NewExtractor("#top", "#bottom", WithURLAttributes("action", "HREF", " "))
	if err != nil {
		t.Fatal(err)
	}
	page := `<html><body>
	<div id="top"><form action="/search"></form></div>
	<header><a href="/not-header">x</a></header>
	<div id="bottom"><a href="/legal">Legal</a></div>
	</body></html>`
	res := e.Extract(mustDoc(t, page), mustBase(t, "https://a.test/"))

	if got := resolvedIn(res, model.RegionHeader); !equalStrings(got, []string{"https://a.test/search"}) {
		t.Errorf("header: got %v", got)
	}
	if got := resolvedIn(res, model.RegionFooter); !equalStrings(got, []string{"https://a.test/legal"}) {
		t.Errorf("footer: got %v", got)
	}
	if len(e.urlAttrs) != len(DefaultURLAttributes)+1 {
		t.Errorf("expected one extra attribute, got %v", e.urlAttrs)
	}
}

func TestNewExtractorInvalidSelector(t *testing.T) {
	t.Parallel()

	if _, err := NewExtractor("header[", ""); err == nil {
		t.Error("expected error for invalid header selector")
	}
	if _, err := NewExtractor("", "footer[role="); err == nil {
		t.Error("expected error for invalid footer selector")
	}
}

// TestDocumentAnchors tests whole-page anchor collection.
func TestDocumentAnchors(t *testing.T) {
	t.Parallel()

	refs := DocumentAnchors(mustDoc(t, samplePage), mustBase(t, "https://a.test/"))
	var got []string
	for _, ref := range refs {
		got = append(got, ref.ResolvedURL)
	}
	want := []string{"https://a.test/", "https://a.test/about", "https://b.test/ext", "mailto:info@a.test"}
	if !equalStrings(got, want) {
		t.Errorf("got %v, expected %v", got, want)
	}
	if refs[1].Label != "About us" {
		t.Errorf("got label %q", refs[1].Label)
	}
	if DocumentAnchors(nil, nil) != nil {
		t.Error("expected nil for nil document")
	}
}

func TestSrcsetURLs(t *testing.T) {
	t.Parallel()

	got := SrcsetURLs(" a.png 1x,b.png   2x , , c.png")
	if !equalStrings(got, []string{"a.png", "b.png", "c.png"}) {
		t.Errorf("got %v", got)
	}
}

func TestStyleURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		style string
		want  []string
	}{
		{
			name:  "quoted and bare arguments",
			style: `background:URL( "a.png" ); mask: url(b.svg); x: url('c.gif')`,
			want:  []string{"a.png", "b.svg", "c.gif"},
		},
		{
			name:  "parentheses inside double quotes",
			style: `background:url("a(1).png")`,
			want:  []string{"a(1).png"},
		},
		{
			name:  "parentheses and spaces inside single quotes",
			style: `background-image: url('img/x (2).jpg')`,
			want:  []string{"img/x (2).jpg"},
		},
		{
			name:  "bare data URI containing quotes",
			style: `background:url(data:image/svg+xml;utf8,<svg xmlns='http://www.w3.org/2000/svg'/>)`,
			want:  []string{`data:image/svg+xml;utf8,<svg xmlns='http://www.w3.org/2000/svg'/>`},
		},
		{
			name:  "empty arguments are skipped",
			style: `a: url(); b: url(""); c: url(d.png)`,
			want:  []string{"d.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StyleURLs(tt.style); !equalStrings(got, tt.want) {
				t.Errorf("StyleURLs(%q) = %v, expected %v", tt.style, got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	// "e" followed by a combining acute accent composes to a single rune.
	if got := CleanText("  Cafe\u0301 \n\t Menu "); got != "Caf\u00e9 Menu" {
		t.Errorf("got %q", got)
	}
}
