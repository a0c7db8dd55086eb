package crawler

import "errors"

// Page processing errors. A page that fails with one of these still yields a
// PageRecord; the wrapped error text becomes the record's Error field.
var (
	// ErrTransport is returned when no HTTP response was received: DNS or
	// connection failures, TLS errors, timeouts and cancellation.
	ErrTransport = errors.New("transport error")

	// ErrHTTPStatus is returned when the final response status is not 2xx.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrNonHTML is returned when the response is not an HTML document.
	ErrNonHTML = errors.New("non-HTML response")

	// ErrParse is returned when the response body cannot be parsed as HTML.
	ErrParse = errors.New("html parse error")
)
