// Package fetcher retrieves pages over HTTP for the crawler.
//
// Two implementations exist: HTTPFetcher on top of net/http, and
// CollyFetcher on top of a colly collector. Both follow redirects and report
// the final URL, so relative references can be resolved against it.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Fetcher kinds accepted by New.
const (
	KindHTTP  = "http"
	KindColly = "colly"
)

// Default option values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
	DefaultUserAgent   = "hmfcrawl/1.0 (+https://github.com/nao1215/hmfcrawl)"
)

// ErrUnknownKind is returned by New for an unsupported fetcher kind.
var ErrUnknownKind = errors.New("unknown fetcher kind")

// Fetcher retrieves a single URL.
//
// An error means no HTTP response was received. Responses with any status
// code are returned without error; judging them is up to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Response is a fetched page.
type Response struct {
	// RequestURL is the URL that was requested.
	RequestURL string

	// FinalURL is the URL after following redirects.
	FinalURL string

	// StatusCode is the HTTP status code of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the response body, decompressed and, for HTML, converted to
	// UTF-8. It is truncated at the configured maximum body size.
	Body []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	return IsHTMLContentType(r.ContentType)
}

// IsHTMLContentType reports whether a Content-Type header value denotes HTML.
// An empty value is not HTML.
func IsHTMLContentType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Options controls fetching behaviour. Zero values select the defaults.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Headers are added to every request.
	Headers map[string]string

	// Cookie is sent as the Cookie header when set.
	Cookie string

	// Timeout bounds each request, redirects and body included.
	Timeout time.Duration

	// MaxBodySize caps the number of body bytes read.
	MaxBodySize int64

	// ProxyURL routes requests through an HTTP or SOCKS5 proxy.
	ProxyURL string
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	return o
}

// New creates a Fetcher of the given kind. An empty kind selects KindHTTP.
func New(kind string, opts Options) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHTTP:
		return NewHTTPFetcher(opts)
	case KindColly:
		return NewCollyFetcher(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
