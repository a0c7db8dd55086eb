package scope

import (
	"errors"
	"testing"

	"github.com/nao1215/hmfcrawl/internal/model"
)

// TestNewPolicy tests start URL validation.
func TestNewPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   string
		wantErr bool
	}{
		{"https URL", "https://a.test/", false},
		{"http URL with port", "http://a.test:8080/x", false},
		{"missing scheme", "a.test", true},
		{"ftp scheme", "ftp://a.test/", true},
		{"mailto", "mailto:x@a.test", true},
		{"malformed", "http://[::1", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPolicy(tt.start, true, false)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStartURL) {
					t.Errorf("expected ErrInvalidStartURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestPolicyClassify tests scope classification under each policy mode.
func TestPolicyClassify(t *testing.T) {
	t.Parallel()

	t.Run("same origin only", func(t *testing.T) {
		t.Parallel()

		p, err := NewPolicy("https://a.test/", true, false)
		if err != nil {
			t.Fatal(err)
		}
		tests := map[string]model.Scope{
			"https://a.test/about":      model.ScopeInternal,
			"https://A.TEST/about":      model.ScopeInternal,
			"https://a.test:443/x":      model.ScopeInternal,
			"https://a.test:8443/x":     model.ScopeExternal,
			"http://a.test/x":           model.ScopeExternal,
			"https://www.a.test/":       model.ScopeExternal,
			"https://b.test/":           model.ScopeExternal,
			"mailto:x@a.test":           model.ScopeOther,
			"javascript:void(0)":        model.ScopeOther,
			"data:image/png;base64,AAA": model.ScopeOther,
			"http://[::1":               model.ScopeOther,
			"/relative":                 model.ScopeOther,
		}
		for in, want := range tests {
			if got := p.Classify(in); got != want {
				t.Errorf("Classify(%q) = %s, expected %s", in, got, want)
			}
		}
	})

	t.Run("host match ignores scheme and port", func(t *testing.T) {
		t.Parallel()

		p, err := NewPolicy("https://a.test/", false, false)
		if err != nil {
			t.Fatal(err)
		}
		if got := p.Classify("http://a.test:8080/x"); got != model.ScopeInternal {
			t.Errorf("got %s, expected INTERNAL", got)
		}
		if got := p.Classify("https://www.a.test/"); got != model.ScopeExternal {
			t.Errorf("got %s, expected EXTERNAL", got)
		}
	})

	t.Run("subdomains", func(t *testing.T) {
		t.Parallel()

		p, err := NewPolicy("https://a.test/", false, true)
		if err != nil {
			t.Fatal(err)
		}
		tests := map[string]model.Scope{
			"https://a.test/":         model.ScopeInternal,
			"https://www.a.test/":     model.ScopeInternal,
			"http://deep.sub.a.test/": model.ScopeInternal,
			"https://evila.test/":     model.ScopeExternal,
			"https://a.test.evil/":    model.ScopeExternal,
		}
		for in, want := range tests {
			if got := p.Classify(in); got != want {
				t.Errorf("Classify(%q) = %s, expected %s", in, got, want)
			}
		}
	})
}

// TestPolicyInScope verifies InScope agrees with Classify.
func TestPolicyInScope(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy("https://a.test/", true, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []string{"https://a.test/x", "https://b.test/", "mailto:x@a.test", "https://a.test:444/"} {
		if p.InScope(in) != (p.Classify(in) == model.ScopeInternal) {
			t.Errorf("InScope and Classify disagree for %q", in)
		}
	}
}
