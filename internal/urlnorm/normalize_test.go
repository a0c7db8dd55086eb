package urlnorm

import (
	"net/url"
	"testing"
)

// TestNormalize tests URL canonicalization.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://a.test/x#top", "https://a.test/x"},
		{"strips tracking params", "https://a.test/x?utm_source=n&id=5", "https://a.test/x?id=5"},
		{"tracking prefix is case-insensitive", "https://a.test/x?UTM_Source=n&id=5&GCLID=abc", "https://a.test/x?id=5"},
		{"drops query when all params ignored", "https://a.test/x?fbclid=1&mc_cid=2", "https://a.test/x"},
		{"keeps param order and encoding", "https://a.test/s?b=2&a=%20x&c", "https://a.test/s?b=2&a=%20x&c"},
		{"drops empty pairs", "https://a.test/s?a=1&&b=2&", "https://a.test/s?a=1&b=2"},
		{"lowercases scheme and host", "HTTPS://A.Test/Path", "https://a.test/Path"},
		{"adds root path", "https://a.test", "https://a.test/"},
		{"drops default https port", "https://a.test:443/x", "https://a.test/x"},
		{"drops default http port", "http://a.test:80/x", "http://a.test/x"},
		{"keeps other ports", "https://a.test:8443/x", "https://a.test:8443/x"},
		{"drops bare question mark", "https://a.test/x?", "https://a.test/x"},
		{"mailto keeps opaque part", "mailto:x@a.test#frag", "mailto:x@a.test"},
		{"unparseable input is truncated at fragment", "http://[::1#frag", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in, DefaultIgnorePrefixes)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeIdempotent verifies that normalizing twice changes nothing.
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://a.test/x?utm_source=n&id=5#frag",
		"HTTP://A.TEST:80",
		"https://a.test/a b/c?q=a+b&x=%2F",
		"https://a.test/%7Euser/?&&",
		"mailto:X@A.test",
		"javascript:void(0)",
		"data:image/png;base64,AAAA",
		"http://[::1#broken",
		"/relative/path?pk_campaign=1",
		"",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			once := Normalize(in, DefaultIgnorePrefixes)
			twice := Normalize(once, DefaultIgnorePrefixes)
			if once != twice {
				t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
			}
		})
	}
}

// TestNormalizeFragmentIrrelevant verifies that appending a fragment never
// changes the canonical form.
func TestNormalizeFragmentIrrelevant(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://a.test/",
		"https://a.test/x?id=1",
		"https://a.test/x#already",
		"http://[::1",
		"mailto:x@a.test",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			for _, frag := range []string{"#", "#anything", "#%zz", "#a#b"} {
				if Normalize(in+frag, nil) != Normalize(in, nil) {
					t.Errorf("fragment %q changed canonical form of %q", frag, in)
				}
			}
		})
	}
}

func TestNormalizeWithoutPrefixes(t *testing.T) {
	t.Parallel()

	got := Normalize("https://a.test/x?utm_source=n", nil)
	if got != "https://a.test/x?utm_source=n" {
		t.Errorf("expected params kept without prefixes, got %q", got)
	}
}

// TestResolve tests relative reference resolution.
func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://a.test/docs/index.html")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{"relative path", "guide.html", "https://a.test/docs/guide.html", true},
		{"root relative", "/about", "https://a.test/about", true},
		{"protocol relative", "//cdn.test/x.js", "https://cdn.test/x.js", true},
		{"absolute", "https://b.test/", "https://b.test/", true},
		{"surrounding whitespace", "  /about \n", "https://a.test/about", true},
		{"mailto", "mailto:x@a.test", "mailto:x@a.test", true},
		{"newline inside path", "/a\nb", "https://a.test/ab", true},
		{"tab and carriage return", "guide\t.ht\r\nml", "https://a.test/docs/guide.html", true},
		{"line break in query", "/search?q=a\n&x=1", "https://a.test/search?q=a&x=1", true},
		{"empty", "   ", "", false},
		{"malformed", "http://[::1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tt.href, base)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve(%q) = %q, %v; expected %q, %v", tt.href, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	t.Run("nil base requires absolute href", func(t *testing.T) {
		t.Parallel()
		if _, ok := Resolve("/about", nil); ok {
			t.Error("expected relative href to fail without base")
		}
		if got, ok := Resolve("https://a.test/", nil); !ok || got != "https://a.test/" {
			t.Errorf("got %q, %v", got, ok)
		}
	})
}

func TestIsHTTP(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"https://a.test/":   true,
		"HTTP://a.test/":    true,
		"ftp://a.test/":     false,
		"mailto:x@a.test":   false,
		"/relative":         false,
		"http://[::1":       false,
		"javascript:void(0)": false,
	}
	for in, want := range tests {
		if got := IsHTTP(in); got != want {
			t.Errorf("IsHTTP(%q) = %v, expected %v", in, got, want)
		}
	}
}
