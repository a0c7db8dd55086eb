package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher fetches pages with a fresh colly collector per request.
type CollyFetcher struct {
	opts Options
}

// NewCollyFetcher creates a CollyFetcher.
func NewCollyFetcher(opts Options) (*CollyFetcher, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(opts.ProxyURL) != "" {
		if _, err := url.Parse(opts.ProxyURL); err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
	}
	return &CollyFetcher{opts: opts}, nil
}

// Fetch visits rawURL and captures the final response.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(int(f.opts.MaxBodySize)),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.opts.Timeout)
	c.ParseHTTPErrorResponse = true

	if f.opts.ProxyURL != "" {
		if err := c.SetProxy(f.opts.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if f.opts.Cookie != "" {
			r.Headers.Set("Cookie", f.opts.Cookie)
		}
		for k, v := range f.opts.Headers {
			r.Headers.Set(k, v)
		}
	})

	var result *Response
	c.OnResponse(func(r *colly.Response) {
		result = &Response{
			RequestURL:  rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("colly fetch failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("colly fetch failed: no response for %s", rawURL)
	}
	return result, nil
}
